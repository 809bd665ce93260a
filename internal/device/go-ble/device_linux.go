package goble

import (
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

const hciTimeout = 20 * time.Second

func newDevice() (ble.Device, error) {
	dev, err := linux.NewDevice(ble.OptListenerTimeout(hciTimeout), ble.OptDialerTimeout(hciTimeout))
	if err != nil {
		return nil, err
	}
	return dev, nil
}
