package session

import (
	"time"

	"github.com/mcuadros/go-defaults"
)

// LifeinaBox GATT profile.
const (
	DeviceName  = "LifeinaBox"
	ServiceUUID = "0000fee9-0000-1000-8000-00805f9b34fb"
	NotifyUUID  = "d44bc439-abfd-45a2-b575-925416129601"
	WriteUUID   = "d44bc439-abfd-45a2-b575-925416129600"
)

// Options configures a Session. Zero fields take the defaults below.
type Options struct {
	Name         string        `default:"LifeinaBox"`
	ServiceUUID  string        `default:"0000fee9-0000-1000-8000-00805f9b34fb"`
	NotifyUUID   string        `default:"d44bc439-abfd-45a2-b575-925416129601"`
	WriteUUID    string        `default:"d44bc439-abfd-45a2-b575-925416129600"`
	PollInterval time.Duration `default:"1s"`

	// EventBuffer sizes the internal queue and each output channel.
	EventBuffer int `default:"64"`
}

// DefaultOptions returns Options with every field set to its default.
func DefaultOptions() Options {
	var opts Options
	defaults.SetDefaults(&opts)
	return opts
}

func (o Options) withDefaults() Options {
	defaults.SetDefaults(&o)
	return o
}
