package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/lifebox/internal/device"
	"github.com/srg/lifebox/internal/devicefactory"
	"github.com/srg/lifebox/internal/session"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds application configuration
type Config struct {
	LogLevel       string        `yaml:"log_level" default:"info"`
	Transport      string        `yaml:"transport" default:"goble"`
	Device         DeviceConfig  `yaml:"device"`
	PollInterval   time.Duration `yaml:"poll_interval" default:"1s"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`
	OutputFormat   string        `yaml:"output_format" default:"text"`
}

// DeviceConfig identifies the box and its GATT profile.
type DeviceConfig struct {
	Name        string `yaml:"name" default:"LifeinaBox"`
	ServiceUUID string `yaml:"service_uuid" default:"0000fee9-0000-1000-8000-00805f9b34fb"`
	NotifyUUID  string `yaml:"notify_uuid" default:"d44bc439-abfd-45a2-b575-925416129601"`
	WriteUUID   string `yaml:"write_uuid" default:"d44bc439-abfd-45a2-b575-925416129600"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// DefaultConfigPath returns ~/.config/lifebox/config.yaml, or "" when the home directory is unknown.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "lifebox", "config.yaml")
}

// Load reads a YAML config file. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists. A missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if _, err := devicefactory.ParseKind(c.Transport); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if strings.TrimSpace(c.Device.Name) == "" {
		return fmt.Errorf("device.name must not be empty")
	}
	if _, err := device.ValidateUUID(c.Device.ServiceUUID, c.Device.NotifyUUID, c.Device.WriteUUID); err != nil {
		return fmt.Errorf("device UUIDs: %w", err)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be > 0, got %s", c.PollInterval)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be > 0, got %s", c.ConnectTimeout)
	}
	switch c.OutputFormat {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("output_format must be %q or %q, got %q", FormatText, FormatJSON, c.OutputFormat)
	}
	return nil
}

// SessionOptions converts the device settings into session options.
func (c *Config) SessionOptions() session.Options {
	opts := session.DefaultOptions()
	opts.Name = c.Device.Name
	opts.ServiceUUID = c.Device.ServiceUUID
	opts.NotifyUUID = c.Device.NotifyUUID
	opts.WriteUUID = c.Device.WriteUUID
	opts.PollInterval = c.PollInterval
	return opts
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
