package goble

import (
	"context"
	"sync"

	"github.com/go-ble/ble"
	"github.com/srg/lifebox/internal/device"
)

type bleCharacteristic struct {
	client ble.Client
	char   *ble.Characteristic

	// go-ble clients are not safe for concurrent writes
	writeMutex sync.Mutex
}

func (c *bleCharacteristic) UUID() string {
	return device.NormalizeUUID(c.char.UUID.String())
}

func (c *bleCharacteristic) Subscribe(callback func(data []byte)) (device.Subscription, error) {
	if c.char.Property&(ble.CharNotify|ble.CharIndicate) == 0 {
		return nil, &device.NotFoundError{Resource: "notify property", UUIDs: []string{c.UUID()}}
	}
	indicate := c.char.Property&ble.CharNotify == 0
	if err := c.client.Subscribe(c.char, indicate, ble.NotificationHandler(callback)); err != nil {
		return nil, NormalizeError(err)
	}
	return &bleSubscription{client: c.client, char: c.char, indicate: indicate}, nil
}

// Write sends data with response; the box acknowledges every request command.
func (c *bleCharacteristic) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	return NormalizeError(c.client.WriteCharacteristic(c.char, data, false))
}

type bleSubscription struct {
	client   ble.Client
	char     *ble.Characteristic
	indicate bool
	once     sync.Once
	err      error
}

func (s *bleSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.err = NormalizeError(s.client.Unsubscribe(s.char, s.indicate))
	})
	return s.err
}
