package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/lifebox/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "goble", cfg.Transport)
	assert.Equal(t, session.DeviceName, cfg.Device.Name)
	assert.Equal(t, session.ServiceUUID, cfg.Device.ServiceUUID)
	assert.Equal(t, session.NotifyUUID, cfg.Device.NotifyUUID)
	assert.Equal(t, session.WriteUUID, cfg.Device.WriteUUID)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, FormatText, cfg.OutputFormat)
	assert.NoError(t, cfg.Validate(), "defaults MUST be valid")
}

func TestLoad(t *testing.T) {
	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := writeConfig(t, `
log_level: debug
transport: tinygo
device:
  name: KitchenBox
poll_interval: 2500ms
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "tinygo", cfg.Transport)
		assert.Equal(t, "KitchenBox", cfg.Device.Name)
		assert.Equal(t, session.ServiceUUID, cfg.Device.ServiceUUID, "unset UUID MUST keep its default")
		assert.Equal(t, 2500*time.Millisecond, cfg.PollInterval)
		assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)

		cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)

		cfg, err = LoadOrDefault("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "device: [unterminated"))
		assert.ErrorContains(t, err, "parsing config file")
	})
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"unknown transport", func(c *Config) { c.Transport = "usb" }, "transport"},
		{"empty name", func(c *Config) { c.Device.Name = "  " }, "device.name"},
		{"bad service uuid", func(c *Config) { c.Device.ServiceUUID = "xyz" }, "device UUIDs"},
		{"empty write uuid", func(c *Config) { c.Device.WriteUUID = "" }, "device UUIDs"},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, "poll_interval"},
		{"negative timeout", func(c *Config) { c.ConnectTimeout = -time.Second }, "connect_timeout"},
		{"unknown output format", func(c *Config) { c.OutputFormat = "csv" }, "output_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}

	t.Run("json format is valid", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.OutputFormat = FormatJSON
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfig_SessionOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device.Name = "KitchenBox"
	cfg.PollInterval = 3 * time.Second

	opts := cfg.SessionOptions()
	assert.Equal(t, "KitchenBox", opts.Name)
	assert.Equal(t, session.ServiceUUID, opts.ServiceUUID)
	assert.Equal(t, 3*time.Second, opts.PollInterval)
	assert.Positive(t, opts.EventBuffer)
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     logrus.Level
	}{
		{"creates logger with debug level", "debug", logrus.DebugLevel},
		{"creates logger with info level", "info", logrus.InfoLevel},
		{"creates logger with warn level", "warn", logrus.WarnLevel},
		{"creates logger with error level", "error", logrus.ErrorLevel},
		{"falls back to info on an invalid level", "loud", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}

			logger := cfg.NewLogger()

			assert.NotNil(t, logger)
			assert.Equal(t, tt.want, logger.GetLevel())

			// Verify formatter is set correctly
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestDefaultConfigPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	assert.Equal(t, filepath.Join(home, ".config", "lifebox", "config.yaml"), DefaultConfigPath())
}
