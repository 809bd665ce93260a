package goble

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/lifebox/internal/device"
	"github.com/srg/lifebox/internal/groutine"
)

// blePeripheral is a peripheral seen during the scan.
type blePeripheral struct {
	dev    ble.Device
	addr   ble.Addr
	name   string
	logger *logrus.Logger

	mu     sync.Mutex
	onLost func()
}

func newPeripheral(dev ble.Device, addr ble.Addr, name string, logger *logrus.Logger) *blePeripheral {
	return &blePeripheral{dev: dev, addr: addr, name: name, logger: logger}
}

func (p *blePeripheral) Address() string { return p.addr.String() }
func (p *blePeripheral) Name() string    { return p.name }

func (p *blePeripheral) OnUnsolicitedDisconnect(callback func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLost = callback
}

func (p *blePeripheral) lostCallback() func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onLost
}

// ConnectGatt dials the peripheral and starts watching the link.
func (p *blePeripheral) ConnectGatt(ctx context.Context) (device.Server, error) {
	log := p.logger.WithField("address", p.Address())
	log.Debug("Dialing BLE device...")

	client, err := p.dev.Dial(ctx, p.addr)
	if err != nil {
		log.WithField("error", err).Error("Failed to dial BLE device")
		return nil, fmt.Errorf("failed to connect to device with address %q: %w", p.Address(), NormalizeError(err))
	}

	monitorCtx, cancel := context.WithCancel(context.Background())
	s := &bleServer{
		client:      client,
		logger:      p.logger,
		stopMonitor: cancel,
	}

	// Disconnected() fires for both solicited and unsolicited drops; only the
	// latter is reported, CancelConnection stops the monitor first.
	if watcher, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		groutine.Go(monitorCtx, "ble-connection-monitor", func(ctx context.Context) {
			select {
			case <-watcher.Disconnected():
				if ctx.Err() != nil {
					return
				}
				log.Warn("BLE stack reported disconnection")
				if cb := p.lostCallback(); cb != nil {
					cb()
				}
			case <-ctx.Done():
			}
		})
	} else {
		log.Debug("Client does not support Disconnected() channel")
	}

	log.Info("BLE device connected")
	return s, nil
}

// bleServer is a live GATT connection.
type bleServer struct {
	client      ble.Client
	logger      *logrus.Logger
	stopMonitor context.CancelFunc

	mu       sync.Mutex
	released bool
}

func (s *bleServer) Service(ctx context.Context, uuid string) (device.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := parseUUID(uuid)
	if err != nil {
		return nil, err
	}

	services, err := s.client.DiscoverServices([]ble.UUID{u})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate device services: %w", NormalizeError(err))
	}
	for _, svc := range services {
		if svc.UUID.Equal(u) {
			return &bleService{client: s.client, svc: svc, logger: s.logger}, nil
		}
	}
	return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{uuid}}
}

// Disconnect releases the connection. Safe to call once the link is already gone.
func (s *bleServer) Disconnect() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	s.mu.Unlock()

	s.stopMonitor()
	if err := s.client.ClearSubscriptions(); err != nil {
		s.logger.WithField("error", err).Debug("Failed to clear subscriptions")
	}
	if err := s.client.CancelConnection(); err != nil {
		err = NormalizeError(err)
		if device.IsConnectionState(err, device.NotConnected) {
			// the link was already down
			return nil
		}
		return err
	}
	return nil
}
