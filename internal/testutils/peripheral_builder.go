package testutils

import (
	"encoding/json"
	"fmt"
)

// LifeinaBox GATT profile as advertised by the real box.
const (
	BoxName        = "LifeinaBox"
	BoxAddress     = "C8:FD:19:AA:00:01"
	BoxServiceUUID = "0000fee9-0000-1000-8000-00805f9b34fb"
	BoxNotifyUUID  = "d44bc439-abfd-45a2-b575-925416129601"
	BoxWriteUUID   = "d44bc439-abfd-45a2-b575-925416129600"
)

// ServiceConfig describes one scripted GATT service.
type ServiceConfig struct {
	UUID            string   `json:"uuid"`
	Characteristics []string `json:"characteristics,omitempty"`
}

// PeripheralProfile describes a scripted peripheral.
type PeripheralProfile struct {
	Name     string          `json:"name"`
	Address  string          `json:"address"`
	Services []ServiceConfig `json:"services"`
}

// PeripheralBuilder builds FakePeripheral instances.
type PeripheralBuilder struct {
	profile      PeripheralProfile
	connectErr   error
	serviceErr   error
	subscribeErr error
}

// NewPeripheralBuilder creates an empty builder.
func NewPeripheralBuilder() *PeripheralBuilder {
	return &PeripheralBuilder{}
}

// CreateLifeinaBox returns a builder preconfigured with the box's name, address and GATT profile.
func CreateLifeinaBox() *PeripheralBuilder {
	return NewPeripheralBuilder().
		WithName(BoxName).
		WithAddress(BoxAddress).
		WithService(BoxServiceUUID).
		WithCharacteristic(BoxNotifyUUID).
		WithCharacteristic(BoxWriteUUID)
}

func (b *PeripheralBuilder) WithName(name string) *PeripheralBuilder {
	b.profile.Name = name
	return b
}

func (b *PeripheralBuilder) WithAddress(address string) *PeripheralBuilder {
	b.profile.Address = address
	return b
}

// WithService adds a service to the profile
func (b *PeripheralBuilder) WithService(uuid string) *PeripheralBuilder {
	b.profile.Services = append(b.profile.Services, ServiceConfig{UUID: uuid})
	return b
}

// WithCharacteristic adds a characteristic to the last added service
func (b *PeripheralBuilder) WithCharacteristic(uuid string) *PeripheralBuilder {
	if len(b.profile.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}
	last := len(b.profile.Services) - 1
	b.profile.Services[last].Characteristics = append(b.profile.Services[last].Characteristics, uuid)
	return b
}

// WithConnectError makes ConnectGatt fail.
func (b *PeripheralBuilder) WithConnectError(err error) *PeripheralBuilder {
	b.connectErr = err
	return b
}

// WithServiceError makes every service lookup fail.
func (b *PeripheralBuilder) WithServiceError(err error) *PeripheralBuilder {
	b.serviceErr = err
	return b
}

// WithSubscribeError makes Subscribe fail on every characteristic.
func (b *PeripheralBuilder) WithSubscribeError(err error) *PeripheralBuilder {
	b.subscribeErr = err
	return b
}

// FromJSON fills the profile from JSON
func (b *PeripheralBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)

	var profile PeripheralProfile
	if err := json.Unmarshal([]byte(jsonStr), &profile); err != nil {
		panic(fmt.Sprintf("PeripheralBuilder.FromJSON: failed to unmarshal: %v", err))
	}
	b.profile = profile
	return b
}

// Build creates the scripted peripheral
func (b *PeripheralBuilder) Build() *FakePeripheral {
	p := &FakePeripheral{
		name:       b.profile.Name,
		address:    b.profile.Address,
		connectErr: b.connectErr,
		serviceErr: b.serviceErr,
	}
	for _, svcConfig := range b.profile.Services {
		svc := &FakeService{uuid: svcConfig.UUID}
		for _, charUUID := range svcConfig.Characteristics {
			svc.chars = append(svc.chars, &FakeCharacteristic{
				uuid:         charUUID,
				subscribeErr: b.subscribeErr,
			})
		}
		p.services = append(p.services, svc)
	}
	return p
}
