package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/srg/lifebox/internal/device"
)

// FakeTransport is an in-memory device.Transport serving peripherals built
// with PeripheralBuilder. All methods are safe for concurrent use.
type FakeTransport struct {
	mu          sync.Mutex
	peripherals []*FakePeripheral
	discoverErr error
	gate        chan struct{}
	requests    int
	closed      bool
}

// NewFakeTransport creates a transport advertising the given peripherals.
func NewFakeTransport(peripherals ...*FakePeripheral) *FakeTransport {
	return &FakeTransport{peripherals: peripherals}
}

// WithDiscoveryError makes every RequestPeripheral fail with err.
func (t *FakeTransport) WithDiscoveryError(err error) *FakeTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.discoverErr = err
	return t
}

// HoldDiscovery makes RequestPeripheral block until the returned release
// function is called or the request context ends.
func (t *FakeTransport) HoldDiscovery() (release func()) {
	gate := make(chan struct{})
	t.mu.Lock()
	t.gate = gate
	t.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Requests returns how many discoveries were started.
func (t *FakeTransport) Requests() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requests
}

// Closed reports whether Close was called.
func (t *FakeTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *FakeTransport) RequestPeripheral(ctx context.Context, nameFilter, serviceUUID string) (device.Peripheral, error) {
	t.mu.Lock()
	t.requests++
	gate := t.gate
	discoverErr := t.discoverErr
	peripherals := append([]*FakePeripheral(nil), t.peripherals...)
	t.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if discoverErr != nil {
		return nil, discoverErr
	}

	for _, p := range peripherals {
		if p.name == nameFilter && p.advertises(serviceUUID) {
			return p, nil
		}
	}
	return nil, &device.NotFoundError{Resource: "peripheral", UUIDs: []string{nameFilter}}
}

func (t *FakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// FakePeripheral is a scripted peripheral. Use Notify and DropLink to drive a session.
type FakePeripheral struct {
	name    string
	address string

	mu          sync.Mutex
	services    []*FakeService
	connectErr  error
	serviceErr  error
	onLost      func()
	connects    int
	disconnects int
	linkUp      bool
}

func (p *FakePeripheral) Address() string { return p.address }
func (p *FakePeripheral) Name() string    { return p.name }

func (p *FakePeripheral) advertises(serviceUUID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.services {
		if device.EqualUUID(s.uuid, serviceUUID) {
			return true
		}
	}
	return false
}

func (p *FakePeripheral) ConnectGatt(ctx context.Context) (device.Server, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connects++
	if p.connectErr != nil {
		return nil, p.connectErr
	}
	p.linkUp = true
	return &fakeServer{p: p}, nil
}

func (p *FakePeripheral) OnUnsolicitedDisconnect(callback func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLost = callback
}

// DropLink simulates the box going out of range: the link goes down and the
// registered unsolicited-disconnect callback fires.
func (p *FakePeripheral) DropLink() {
	p.mu.Lock()
	p.linkUp = false
	cb := p.onLost
	p.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Connects returns how many GATT connects were attempted.
func (p *FakePeripheral) Connects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connects
}

// Disconnects returns how many times a server handle was released.
func (p *FakePeripheral) Disconnects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnects
}

// LinkUp reports whether a GATT link is currently held.
func (p *FakePeripheral) LinkUp() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.linkUp
}

// Characteristic returns the scripted characteristic with the given UUID, or nil.
func (p *FakePeripheral) Characteristic(uuid string) *FakeCharacteristic {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.services {
		for _, c := range s.chars {
			if device.EqualUUID(c.uuid, uuid) {
				return c
			}
		}
	}
	return nil
}

type fakeServer struct {
	p        *FakePeripheral
	released bool
}

func (s *fakeServer) Service(ctx context.Context, uuid string) (device.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if s.p.serviceErr != nil {
		return nil, s.p.serviceErr
	}
	for _, svc := range s.p.services {
		if device.EqualUUID(svc.uuid, uuid) {
			return svc, nil
		}
	}
	return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{uuid}}
}

func (s *fakeServer) Disconnect() error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if s.released {
		return errors.New("server handle already released")
	}
	s.released = true
	s.p.disconnects++
	s.p.linkUp = false
	return nil
}

// FakeService is a scripted GATT service.
type FakeService struct {
	uuid  string
	chars []*FakeCharacteristic
}

func (s *FakeService) UUID() string { return s.uuid }

func (s *FakeService) Characteristic(ctx context.Context, uuid string) (device.Characteristic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, c := range s.chars {
		if device.EqualUUID(c.uuid, uuid) {
			return c, nil
		}
	}
	return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{s.uuid, uuid}}
}

// FakeCharacteristic records writes and holds the notification callback.
type FakeCharacteristic struct {
	uuid string

	mu           sync.Mutex
	writes       [][]byte
	writeErr     error
	subscribeErr error
	callback     func([]byte)
	subscribes   int
	unsubscribes int
	onWrite      func(payload []byte)
}

func (c *FakeCharacteristic) UUID() string { return c.uuid }

func (c *FakeCharacteristic) Subscribe(callback func(data []byte)) (device.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeErr != nil {
		return nil, c.subscribeErr
	}
	c.subscribes++
	c.callback = callback
	return &fakeSubscription{c: c}, nil
}

func (c *FakeCharacteristic) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	err := c.writeErr
	onWrite := c.onWrite
	c.mu.Unlock()

	if err == nil && onWrite != nil {
		onWrite(data)
	}
	return err
}

// SetWriteError makes subsequent writes fail with err (nil restores success).
func (c *FakeCharacteristic) SetWriteError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// OnWrite registers a hook run after every successful write, e.g. to answer
// a request command with a notification.
func (c *FakeCharacteristic) OnWrite(hook func(payload []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onWrite = hook
}

// Notify delivers data to the current subscriber. Returns false when nobody is subscribed.
func (c *FakeCharacteristic) Notify(data []byte) bool {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb == nil {
		return false
	}
	cb(data)
	return true
}

// Writes returns a copy of every payload written so far.
func (c *FakeCharacteristic) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

// Subscribed reports whether a notification callback is installed.
func (c *FakeCharacteristic) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callback != nil
}

// Subscribes returns how many subscriptions were created.
func (c *FakeCharacteristic) Subscribes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribes
}

// Unsubscribes returns how many subscriptions were cancelled.
func (c *FakeCharacteristic) Unsubscribes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unsubscribes
}

type fakeSubscription struct {
	c    *FakeCharacteristic
	done bool
}

func (s *fakeSubscription) Unsubscribe() error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if s.done {
		return errors.New("subscription already cancelled")
	}
	s.done = true
	s.c.unsubscribes++
	s.c.callback = nil
	return nil
}
