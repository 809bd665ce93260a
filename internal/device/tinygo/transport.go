// Package tinygo implements device.Transport on top of tinygo.org/x/bluetooth
// (BlueZ over D-Bus on Linux, CoreBluetooth on macOS, WinRT on Windows).
package tinygo

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/lifebox/internal/device"
	"tinygo.org/x/bluetooth"
)

// Transport scans and connects through the default bluetooth adapter.
type Transport struct {
	adapter *bluetooth.Adapter
	logger  *logrus.Logger

	// mu protects the peripherals map, keyed by address.
	mu          sync.Mutex
	peripherals map[string]*peripheral
	closed      bool
}

// NewTransport enables the default adapter.
func NewTransport(logger *logrus.Logger) (*Transport, error) {
	if logger == nil {
		logger = logrus.New()
	}

	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		logger.WithField("error", err).Error("Failed to enable bluetooth adapter")
		return nil, fmt.Errorf("failed to enable bluetooth adapter: %w", NormalizeError(err))
	}

	t := &Transport{
		adapter:     adapter,
		logger:      logger,
		peripherals: make(map[string]*peripheral),
	}

	// fired with connected=false for every drop, explicit or not
	adapter.SetConnectHandler(func(d bluetooth.Device, connected bool) {
		if connected {
			return
		}
		t.mu.Lock()
		p, ok := t.peripherals[d.Address.String()]
		t.mu.Unlock()
		if ok {
			p.linkDown()
		}
	})

	return t, nil
}

func (t *Transport) RequestPeripheral(ctx context.Context, nameFilter, serviceUUID string) (device.Peripheral, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, device.ErrNotConnected
	}

	svc, err := parseUUID(serviceUUID)
	if err != nil {
		return nil, err
	}

	stopScan := func() {
		if err := t.adapter.StopScan(); err != nil && !strings.Contains(err.Error(), "no scan in progress") {
			t.logger.WithField("error", err).Warn("Failed to stop scan")
		}
	}

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-scanCtx.Done()
		stopScan()
	}()

	t.logger.WithFields(logrus.Fields{
		"name":    nameFilter,
		"service": device.ShortenUUID(device.NormalizeUUID(serviceUUID)),
	}).Debug("Scanning for peripheral...")

	var once sync.Once
	found := make(chan bluetooth.ScanResult, 1)
	err = t.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		if r.LocalName() != nameFilter || !r.HasServiceUUID(svc) {
			return
		}
		once.Do(func() {
			found <- r
			cancel()
		})
	})
	cancel()

	var result bluetooth.ScanResult
	select {
	case result = <-found:
	default:
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("scan: %w", NormalizeError(err))
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &device.NotFoundError{Resource: "peripheral", UUIDs: []string{serviceUUID}}
	}

	p := &peripheral{
		transport: t,
		address:   result.Address,
		name:      result.LocalName(),
		logger:    t.logger,
	}
	t.logger.WithFields(logrus.Fields{
		"address": p.Address(),
		"rssi":    result.RSSI,
	}).Info("Peripheral found")
	return p, nil
}

// Close stops routing disconnect events. The default adapter itself stays enabled.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.peripherals = make(map[string]*peripheral)
	return nil
}

func (t *Transport) track(p *peripheral) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peripherals[p.Address()] = p
}

func (t *Transport) untrack(p *peripheral) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.peripherals[p.Address()] == p {
		delete(t.peripherals, p.Address())
	}
}
