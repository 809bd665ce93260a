package frame

import "fmt"

const (
	// externalPowerFlag is set in the battery value byte while the box is on mains power.
	externalPowerFlag byte = 0x80
	magnitudeMask     byte = 0x7F
	maxPercent        byte = 100
)

// BatteryStatus reports how the box is powered.
type BatteryStatus int

const (
	PluggedInMain BatteryStatus = iota
	Discharging
	Charging
)

func (s BatteryStatus) String() string {
	switch s {
	case PluggedInMain:
		return "Plugged in main"
	case Discharging:
		return "Discharging"
	case Charging:
		return "Charging"
	default:
		return fmt.Sprintf("BatteryStatus(%d)", int(s))
	}
}

// Battery is a battery reading. Percent is only meaningful when HasPercent is set.
type Battery struct {
	Status     BatteryStatus
	Percent    uint8
	HasPercent bool
}

func (Battery) Kind() Kind { return KindBattery }

func (b Battery) String() string {
	if !b.HasPercent {
		return b.Status.String()
	}
	return fmt.Sprintf("%s %d %%", b.Status, b.Percent)
}

// DecodeBattery decodes the battery status byte. Bit 7 is the external power
// flag, bits 0-6 the charge level. Exactly 0x80 means fully powered from mains
// with no level reported. The level is clamped to 100 in both other branches.
func DecodeBattery(v byte) Battery {
	switch {
	case v == externalPowerFlag:
		return Battery{Status: PluggedInMain}
	case v&externalPowerFlag == 0:
		return Battery{Status: Discharging, Percent: min(v, maxPercent), HasPercent: true}
	default:
		return Battery{Status: Charging, Percent: min(v&magnitudeMask, maxPercent), HasPercent: true}
	}
}
