package session

import (
	"errors"
	"fmt"

	"github.com/srg/lifebox/internal/device"
)

var (
	// ErrClosed is returned by operations on a closed Session.
	ErrClosed = errors.New("session closed")

	// ErrLinkLost is reported on Errors() when the transport drops the link on its own.
	// It matches device.ErrNotConnected.
	ErrLinkLost = &device.ConnectionError{State: device.NotConnected, Msg: "link lost"}
)

// DiscoveryError reports that the peripheral could not be found or the
// discovery was cancelled. The session stays Idle.
type DiscoveryError struct {
	Name    string
	Service string
	Err     error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover %q (service %s): %v", e.Name, device.ShortenUUID(device.NormalizeUUID(e.Service)), e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// ConnectStage names the connect step that failed.
type ConnectStage string

const (
	StageGatt           ConnectStage = "gatt"
	StageService        ConnectStage = "service"
	StageCharacteristic ConnectStage = "characteristic"
	StageSubscribe      ConnectStage = "subscribe"
)

// ConnectError reports a failure after the peripheral was found. Everything
// acquired before the failure has been released and the session is Idle again.
type ConnectError struct {
	Stage ConnectStage
	Err   error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect (%s): %v", e.Stage, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}
