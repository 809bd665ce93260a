package goble

import (
	"fmt"
	"strings"

	"github.com/srg/lifebox/internal/device"
)

// NormalizeError maps known go-ble error strings to structured ConnectionError types.
// Anything go-ble specific is handled here, the rest falls through to device.NormalizeError.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case msg == "central manager has invalid state: have=4 want=5: is Bluetooth turned on?":
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "can't init hci"),
		containsIgnoreCase(msg, "operation not permitted"):
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	default:
		return device.NormalizeError(err)
	}
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
