package main

import (
	"errors"
	"fmt"

	"github.com/srg/lifebox/internal/device"
	"github.com/srg/lifebox/internal/frame"
	"github.com/srg/lifebox/internal/session"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the box dropped the link while monitoring.
	// Unlike device.ErrNotConnected it is only returned after a successful connect.
	ErrConnectionLost = errors.New("connection lost")
)

// FormatUserError turns an error chain into a one-line message with a hint
// for the failures users can fix themselves.
func FormatUserError(err error) string {
	var (
		discoveryErr *session.DiscoveryError
		connectErr   *session.ConnectError
		decodeErr    *frame.DecodeError
	)

	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return fmt.Sprintf("%v (is Bluetooth turned on and accessible?)", err)
	case errors.Is(err, ErrConnectionLost):
		return fmt.Sprintf("%v (the box went out of range or was switched off)", err)
	case errors.As(err, &discoveryErr):
		if errors.Is(err, device.ErrNotFound) {
			return fmt.Sprintf("no box named %q found (is it switched on and nearby?)", discoveryErr.Name)
		}
		return fmt.Sprintf("discovery failed: %v", discoveryErr.Err)
	case errors.As(err, &connectErr):
		return fmt.Sprintf("connection failed during %s setup: %v", connectErr.Stage, connectErr.Err)
	case errors.Is(err, device.ErrAlreadyConnected):
		return "the box is already connected"
	case errors.As(err, &decodeErr):
		return fmt.Sprintf("invalid frame: %v", decodeErr)
	default:
		return err.Error()
	}
}
