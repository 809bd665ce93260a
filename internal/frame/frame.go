// Package frame implements the LifeinaBox telemetry wire format.
//
// Every notification from the box is a fixed 4-byte frame:
//
//	[header 0xAA] [kind] [value] [trailer 0x55]
//
// The kind byte selects a temperature (0x8F) or battery (0x8E) reading. The same
// layout is used for the request commands written to the box.
package frame

import (
	"fmt"
	"math"
)

const (
	// Size is the exact length of a frame in bytes.
	Size = 4

	// Header marks the start of a valid frame.
	Header byte = 0xAA
	// Trailer marks the end of a valid frame.
	Trailer byte = 0x55

	// TemperatureScale converts the raw value byte to degrees Celsius.
	TemperatureScale = 10.0
)

// Kind selects the measurement type carried by a frame.
type Kind byte

const (
	KindTemperature Kind = 0x8F
	KindBattery     Kind = 0x8E
)

func (k Kind) String() string {
	switch k {
	case KindTemperature:
		return "temperature"
	case KindBattery:
		return "battery"
	default:
		return fmt.Sprintf("kind(0x%02x)", byte(k))
	}
}

// Request command payloads. Writing one of these to the box makes it
// notify a fresh reading of the matching kind.
var (
	TemperatureRequest = []byte{Header, byte(KindTemperature), 0x01, Trailer}
	BatteryRequest     = []byte{Header, byte(KindBattery), 0xFF, Trailer}
)

// Request returns a copy of the command payload for the given kind.
func Request(k Kind) ([]byte, error) {
	switch k {
	case KindTemperature:
		return append([]byte(nil), TemperatureRequest...), nil
	case KindBattery:
		return append([]byte(nil), BatteryRequest...), nil
	default:
		return nil, fmt.Errorf("no request command for %s: %w", k, ErrUnknownKind)
	}
}

// Measurement is a decoded frame: either Temperature or Battery.
type Measurement interface {
	Kind() Kind
	String() string
}

// Temperature is a temperature reading in degrees Celsius.
type Temperature struct {
	Celsius float64
}

func (Temperature) Kind() Kind { return KindTemperature }

// Fahrenheit converts the reading for display, rounded to the nearest degree.
func (t Temperature) Fahrenheit() int {
	return int(math.Round(t.Celsius*9/5 + 32))
}

func (t Temperature) String() string {
	return fmt.Sprintf("%.1f °C / %d °F", t.Celsius, t.Fahrenheit())
}

// Decode parses a single notification frame.
//
// Length is checked first, then framing sentinels, then the kind byte. A frame
// that fails any check never yields a partial measurement.
func Decode(b []byte) (Measurement, error) {
	if len(b) != Size {
		return nil, newDecodeError(InvalidLength, b)
	}
	if b[0] != Header || b[3] != Trailer {
		return nil, newDecodeError(InvalidFraming, b)
	}

	value := b[2]
	switch Kind(b[1]) {
	case KindTemperature:
		return Temperature{Celsius: float64(value) / TemperatureScale}, nil
	case KindBattery:
		return DecodeBattery(value), nil
	default:
		return nil, newDecodeError(UnknownKind, b)
	}
}
