package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/lifebox/pkg/config"
)

// configureLogger resolves the log level from --log-level, then --verbose,
// then the config file. Logs always go to the command's stderr.
func configureLogger(cmd *cobra.Command, cfg *config.Config) (*logrus.Logger, error) {
	levelStr := cfg.LogLevel

	if s, _ := cmd.Flags().GetString("log-level"); s != "" {
		levelStr = s
	} else if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		levelStr = "debug"
	}

	var level logrus.Level
	switch levelStr {
	case "debug":
		level = logrus.DebugLevel
	case "info":
		level = logrus.InfoLevel
	case "warn", "warning":
		level = logrus.WarnLevel
	case "error":
		level = logrus.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", levelStr)
	}

	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger, nil
}

// loadConfig reads --config, or the default path when the flag is not set,
// and applies no flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.Load(path)
	}
	return config.LoadOrDefault(config.DefaultConfigPath())
}
