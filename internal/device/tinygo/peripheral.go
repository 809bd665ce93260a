package tinygo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/lifebox/internal/device"
	"tinygo.org/x/bluetooth"
)

type peripheral struct {
	transport *Transport
	address   bluetooth.Address
	name      string
	logger    *logrus.Logger

	mu     sync.Mutex
	onLost func()
	server *server
}

func (p *peripheral) Address() string { return p.address.String() }
func (p *peripheral) Name() string    { return p.name }

func (p *peripheral) OnUnsolicitedDisconnect(callback func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLost = callback
}

// ConnectGatt connects to the peripheral. The adapter call cannot be cancelled,
// so on ctx expiry a late connection is released in the background.
func (p *peripheral) ConnectGatt(ctx context.Context) (device.Server, error) {
	params := bluetooth.ConnectionParams{}
	if deadline, ok := ctx.Deadline(); ok {
		params.ConnectionTimeout = bluetooth.NewDuration(time.Until(deadline))
	}

	type connectResult struct {
		dev bluetooth.Device
		err error
	}
	ch := make(chan connectResult, 1)
	go func() {
		dev, err := p.transport.adapter.Connect(p.address, params)
		ch <- connectResult{dev, err}
	}()

	log := p.logger.WithField("address", p.Address())
	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil {
				_ = r.dev.Disconnect()
			}
		}()
		return nil, fmt.Errorf("connect to %s: %w", p.Address(), ctx.Err())
	case r := <-ch:
		if r.err != nil {
			log.WithField("error", r.err).Error("Failed to connect")
			return nil, fmt.Errorf("connect to %s: %w", p.Address(), NormalizeError(r.err))
		}

		s := &server{peripheral: p, dev: r.dev}
		p.mu.Lock()
		p.server = s
		p.mu.Unlock()
		p.transport.track(p)

		log.Info("BLE device connected")
		return s, nil
	}
}

// linkDown runs on the adapter's connect handler.
func (p *peripheral) linkDown() {
	p.mu.Lock()
	s := p.server
	cb := p.onLost
	p.mu.Unlock()

	if s == nil || !s.markReleased() {
		// explicit disconnect already in progress
		return
	}
	p.transport.untrack(p)
	p.logger.WithField("address", p.Address()).Warn("Adapter reported disconnection")
	if cb != nil {
		cb()
	}
}

type server struct {
	peripheral *peripheral
	dev        bluetooth.Device

	mu       sync.Mutex
	released bool
}

// markReleased reports whether this call moved the server to released.
func (s *server) markReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.released = true
	return true
}

func (s *server) Service(ctx context.Context, uuid string) (device.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := parseUUID(uuid)
	if err != nil {
		return nil, err
	}
	services, err := s.dev.DiscoverServices([]bluetooth.UUID{u})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate device services: %w", NormalizeError(err))
	}
	if len(services) == 0 {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{uuid}}
	}
	return &service{svc: services[0]}, nil
}

func (s *server) Disconnect() error {
	if !s.markReleased() {
		return nil
	}
	s.peripheral.transport.untrack(s.peripheral)
	if err := s.dev.Disconnect(); err != nil {
		err = NormalizeError(err)
		if device.IsConnectionState(err, device.NotConnected) {
			return nil
		}
		return err
	}
	return nil
}

type service struct {
	svc bluetooth.DeviceService
}

func (s *service) UUID() string {
	return device.NormalizeUUID(s.svc.UUID().String())
}

func (s *service) Characteristic(ctx context.Context, uuid string) (device.Characteristic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := parseUUID(uuid)
	if err != nil {
		return nil, err
	}
	chars, err := s.svc.DiscoverCharacteristics([]bluetooth.UUID{u})
	if err != nil {
		return nil, fmt.Errorf("failed to discover service characteristics: %w", NormalizeError(err))
	}
	if len(chars) == 0 {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{s.UUID(), uuid}}
	}
	return &characteristic{char: chars[0]}, nil
}

type characteristic struct {
	char bluetooth.DeviceCharacteristic
	mu   sync.Mutex
}

func (c *characteristic) UUID() string {
	return device.NormalizeUUID(c.char.UUID().String())
}

func (c *characteristic) Subscribe(callback func(data []byte)) (device.Subscription, error) {
	if err := c.char.EnableNotifications(callback); err != nil {
		return nil, fmt.Errorf("failed to enable notifications: %w", NormalizeError(err))
	}
	return &subscription{char: c.char}, nil
}

func (c *characteristic) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.char.Write(data)
	return NormalizeError(err)
}

type subscription struct {
	char bluetooth.DeviceCharacteristic
	once sync.Once
	err  error
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		// nil disables notifications
		s.err = NormalizeError(s.char.EnableNotifications(nil))
	})
	return s.err
}
