package tinygo

import (
	"fmt"
	"strings"

	"github.com/srg/lifebox/internal/device"
)

// NormalizeError maps BlueZ/D-Bus and CoreBluetooth failures onto device errors.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	// D-Bus not found
	case strings.Contains(msg, "dbus") && strings.HasSuffix(msg, "no such file or directory"):
		return fmt.Errorf("%w: %v (make sure bluez and dbus are installed and running)", device.ErrBluetoothOff, err)
	// D-Bus is running but org.bluez is not found
	case strings.Contains(msg, "The name org.bluez was not provided by any .service files"):
		return fmt.Errorf("%w: %v (make sure bluez and dbus are installed and running)", device.ErrBluetoothOff, err)
	case strings.Contains(msg, "org.bluez.Error.NotReady"),
		strings.Contains(msg, "Resource Not Ready"):
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case strings.Contains(msg, "org.bluez.Error.NotConnected"):
		return fmt.Errorf("%w: %v", device.ErrNotConnected, err)
	case strings.Contains(msg, "org.bluez.Error.AlreadyConnected"):
		return fmt.Errorf("%w: %v", device.ErrAlreadyConnected, err)
	default:
		return device.NormalizeError(err)
	}
}
