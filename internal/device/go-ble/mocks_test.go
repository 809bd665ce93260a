package goble

import (
	"context"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

// mockDevice mocks the ble.Device methods the transport uses. Unused
// methods fall through to the nil embedded interface.
type mockDevice struct {
	ble.Device
	mock.Mock
}

func (m *mockDevice) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	args := m.Called(ctx, allowDup, h)
	return args.Error(0)
}

func (m *mockDevice) Dial(ctx context.Context, a ble.Addr) (ble.Client, error) {
	args := m.Called(ctx, a)
	client, _ := args.Get(0).(ble.Client)
	return client, args.Error(1)
}

func (m *mockDevice) Stop() error {
	return m.Called().Error(0)
}

type mockClient struct {
	ble.Client
	mock.Mock
	disconnected chan struct{}
}

func newMockClient() *mockClient {
	return &mockClient{disconnected: make(chan struct{})}
}

func (m *mockClient) Disconnected() <-chan struct{} {
	return m.disconnected
}

func (m *mockClient) DiscoverServices(filter []ble.UUID) ([]*ble.Service, error) {
	args := m.Called(filter)
	services, _ := args.Get(0).([]*ble.Service)
	return services, args.Error(1)
}

func (m *mockClient) DiscoverCharacteristics(filter []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error) {
	args := m.Called(filter, s)
	chars, _ := args.Get(0).([]*ble.Characteristic)
	return chars, args.Error(1)
}

func (m *mockClient) DiscoverDescriptors(filter []ble.UUID, c *ble.Characteristic) ([]*ble.Descriptor, error) {
	args := m.Called(filter, c)
	descs, _ := args.Get(0).([]*ble.Descriptor)
	return descs, args.Error(1)
}

func (m *mockClient) Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error {
	return m.Called(c, ind, h).Error(0)
}

func (m *mockClient) Unsubscribe(c *ble.Characteristic, ind bool) error {
	return m.Called(c, ind).Error(0)
}

func (m *mockClient) WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error {
	return m.Called(c, value, noRsp).Error(0)
}

func (m *mockClient) ClearSubscriptions() error {
	return m.Called().Error(0)
}

func (m *mockClient) CancelConnection() error {
	return m.Called().Error(0)
}

// mockAdvertisement is a static advertisement.
type mockAdvertisement struct {
	ble.Advertisement
	name     string
	addr     string
	services []ble.UUID
	rssi     int
}

func (a *mockAdvertisement) LocalName() string { return a.name }
func (a *mockAdvertisement) Services() []ble.UUID { return a.services }
func (a *mockAdvertisement) Addr() ble.Addr { return ble.NewAddr(a.addr) }
func (a *mockAdvertisement) RSSI() int { return a.rssi }
func (a *mockAdvertisement) Connectable() bool { return true }
func (a *mockAdvertisement) ManufacturerData() []byte { return nil }
