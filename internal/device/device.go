package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents an error when a BLE resource is not found
type NotFoundError struct {
	Resource string   // "peripheral", "service", "characteristic"
	UUIDs    []string // One or more identifiers (e.g., [serviceUUID] or [serviceUUID, charUUID])
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	// characteristic is in service, service is advertised by a named peripheral
	parentResource := "service"
	if e.Resource == "service" || e.Resource == "peripheral" {
		parentResource = "peripheral"
	}
	return fmt.Sprintf("%s %q not found in %s %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], parentResource, e.UUIDs[0])
}

// Is makes every NotFoundError match ErrNotFound
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	BluetoothOff     ConnectionState = "bluetooth_off"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrBluetoothOff     = &ConnectionError{State: BluetoothOff, Msg: "bluetooth is turned off"}
)

// Operation errors
var (
	ErrNotFound    = errors.New("not found")
	ErrUnsupported = errors.New("unsupported")
)

// NormalizeError maps known backend error strings to structured ConnectionError types.
// It ensures consistent handling even if the upstream library changes messages slightly.
// Returns wrapped errors to preserve original context.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}
	// already normalized
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return err
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "is Bluetooth turned on"),
		containsIgnoreCase(msg, "bluetooth is turned off"),
		containsIgnoreCase(msg, "adapter is powered off"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "device not connected"),
		containsIgnoreCase(msg, "disconnected"),
		containsIgnoreCase(msg, "not connected"):
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	case containsIgnoreCase(msg, "device already connected"):
		return fmt.Errorf("%w: %v", ErrAlreadyConnected, err)
	default:
		return err
	}
}

// containsIgnoreCase checks substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// Transport is the host BLE stack as seen by a device session.
// Implementations live in the go-ble and tinygo subpackages.
type Transport interface {
	// RequestPeripheral discovers the peripheral whose local name equals nameFilter
	// and which advertises serviceUUID. Blocks until found or ctx is done.
	RequestPeripheral(ctx context.Context, nameFilter, serviceUUID string) (Peripheral, error)
	// Close releases the host adapter.
	Close() error
}

// Peripheral is a discovered, not yet connected, BLE device.
type Peripheral interface {
	Address() string
	Name() string

	// ConnectGatt establishes the link and returns the remote GATT server.
	ConnectGatt(ctx context.Context) (Server, error)
	// OnUnsolicitedDisconnect registers a callback fired when the link drops
	// without a local Disconnect. Only the most recent callback is kept.
	OnUnsolicitedDisconnect(callback func())
}

// Server is a connected GATT server.
type Server interface {
	Service(ctx context.Context, uuid string) (Service, error)
	// Disconnect tears the link down. It does not fire the unsolicited callback.
	Disconnect() error
}

// Service represents a GATT service
type Service interface {
	UUID() string
	Characteristic(ctx context.Context, uuid string) (Characteristic, error)
}

// Characteristic represents a GATT characteristic
type Characteristic interface {
	UUID() string
	// Subscribe enables notifications. The callback may run on a transport
	// goroutine and must not block; the data slice is only valid during the call.
	Subscribe(callback func(data []byte)) (Subscription, error)
	// Write sends data without waiting for a response when the backend allows it.
	Write(ctx context.Context, data []byte) error
}

// Subscription is an active notification subscription
type Subscription interface {
	Unsubscribe() error
}
