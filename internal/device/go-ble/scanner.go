// Package goble implements device.Transport on top of github.com/go-ble/ble.
package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/lifebox/internal/device"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = newDevice

// Transport discovers peripherals with a single HCI/CoreBluetooth device.
type Transport struct {
	dev    ble.Device
	logger *logrus.Logger
	mu     sync.Mutex
}

// NewTransport opens the platform BLE device.
func NewTransport(logger *logrus.Logger) (*Transport, error) {
	if logger == nil {
		logger = logrus.New()
	}
	dev, err := DeviceFactory()
	if err != nil {
		logger.WithField("error", err).Error("Failed to create BLE device")
		return nil, fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}
	return &Transport{dev: dev, logger: logger}, nil
}

// RequestPeripheral scans until an advertisement with the given local name that
// lists serviceUUID is seen, or ctx ends.
func (t *Transport) RequestPeripheral(ctx context.Context, nameFilter, serviceUUID string) (device.Peripheral, error) {
	t.mu.Lock()
	dev := t.dev
	t.mu.Unlock()
	if dev == nil {
		return nil, device.ErrNotConnected
	}

	svc, err := parseUUID(serviceUUID)
	if err != nil {
		return nil, err
	}

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan ble.Advertisement, 1)
	handler := func(adv ble.Advertisement) {
		if adv.LocalName() != nameFilter || !ble.Contains(adv.Services(), svc) {
			return
		}
		select {
		case found <- adv:
			cancel() // stop the scan
		case <-scanCtx.Done():
			// another advertisement already matched
		}
	}

	t.logger.WithFields(logrus.Fields{
		"name":    nameFilter,
		"service": device.ShortenUUID(device.NormalizeUUID(serviceUUID)),
	}).Debug("Scanning for peripheral...")

	// Scan always returns an error once scanCtx is cancelled on darwin
	if err := dev.Scan(scanCtx, false, handler); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, NormalizeError(err)
	}

	select {
	case adv := <-found:
		addr := adv.Addr().String()
		t.logger.WithFields(logrus.Fields{
			"address": addr,
			"rssi":    adv.RSSI(),
		}).Info("Peripheral found")
		return newPeripheral(dev, adv.Addr(), adv.LocalName(), t.logger), nil
	default:
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, &device.NotFoundError{Resource: "peripheral", UUIDs: []string{serviceUUID}}
}

// Close stops the BLE device.
func (t *Transport) Close() error {
	t.mu.Lock()
	dev := t.dev
	t.dev = nil
	t.mu.Unlock()

	if dev == nil {
		return nil
	}
	return NormalizeError(dev.Stop())
}

func parseUUID(s string) (ble.UUID, error) {
	normalized := device.NormalizeUUID(s)
	if normalized == "" {
		return nil, fmt.Errorf("invalid UUID %q", s)
	}
	return ble.Parse(normalized)
}
