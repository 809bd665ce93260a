package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/lifebox/internal/device"
	"github.com/srg/lifebox/internal/devicefactory"
	"github.com/srg/lifebox/internal/session"
	"github.com/srg/lifebox/pkg/config"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Stream temperature and battery readings from the box",
	Long: `Connects to the LifeinaBox, polls it for temperature and battery readings
and prints every reading and connection state change until interrupted.

Examples:
  # Monitor the default box with the default go-ble transport
  lifebox monitor

  # Poll every 5 seconds and emit JSON lines
  lifebox monitor --interval 5s --json

  # Use the BlueZ D-Bus transport
  lifebox monitor --transport tinygo`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

var (
	monitorName      string
	monitorTransport string
	monitorInterval  time.Duration
	monitorTimeout   time.Duration
	monitorJSON      bool
)

// newTransport is replaced in tests.
var newTransport = devicefactory.NewTransport

// disconnectTimeout bounds the explicit disconnect on Ctrl+C.
const disconnectTimeout = 5 * time.Second

func init() {
	monitorCmd.Flags().StringVar(&monitorName, "name", session.DeviceName, "Advertised device name")
	monitorCmd.Flags().StringVar(&monitorTransport, "transport", string(devicefactory.DefaultKind), "BLE transport: goble or tinygo")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", time.Second, "Polling interval")
	monitorCmd.Flags().DurationVar(&monitorTimeout, "timeout", 30*time.Second, "Discovery and connection timeout")
	monitorCmd.Flags().BoolVar(&monitorJSON, "json", false, "Output JSON lines")
}

// monitorConfig loads the config file and applies explicitly set flags on top.
func monitorConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		cfg.Device.Name = monitorName
	}
	if flags.Changed("transport") {
		cfg.Transport = monitorTransport
	}
	if flags.Changed("interval") {
		cfg.PollInterval = monitorInterval
	}
	if flags.Changed("timeout") {
		cfg.ConnectTimeout = monitorTimeout
	}
	if flags.Changed("json") {
		cfg.OutputFormat = config.FormatText
		if monitorJSON {
			cfg.OutputFormat = config.FormatJSON
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfg, err := monitorConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	transport, err := newTransport(cfg.Transport, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := transport.Close(); err != nil {
			logger.WithField("error", err).Warn("Failed to close transport")
		}
	}()

	return monitor(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), transport, cfg, logger)
}

// monitor runs one session until ctx is cancelled or the link drops.
// Cancellation disconnects explicitly and returns nil.
func monitor(ctx context.Context, out, errOut io.Writer, transport device.Transport, cfg *config.Config, logger *logrus.Logger) error {
	sess := session.New(transport, cfg.SessionOptions(), logger)
	defer sess.Close()

	printer := newEventPrinter(out, cfg.OutputFormat)

	var progress *ProgressPrinter
	if isTerminal(errOut) {
		progress = NewProgressPrinter(errOut, fmt.Sprintf("Looking for %s", cfg.Device.Name), "Scanning")
		progress.Start()
		defer progress.Stop()
	}

	connectCtx, cancelConnect := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancelConnect()

	connected := make(chan error, 1)
	go func() {
		connected <- sess.Connect(connectCtx)
	}()

	for {
		select {
		case <-ctx.Done():
			if progress != nil {
				progress.Stop()
			}
			return shutdown(sess, printer, logger)

		case err := <-connected:
			connected = nil
			cancelConnect()
			if progress != nil {
				progress.Stop()
			}
			if err != nil {
				if ctx.Err() != nil {
					return shutdown(sess, printer, logger)
				}
				return err
			}
			info, _ := sess.Peripheral()
			fmt.Fprintf(errOut, "Connected to %s (%s). Press Ctrl+C to stop...\n", info.Name, info.Address)

		case st := <-sess.States():
			if progress != nil && st == session.Connecting {
				progress.SetPhase("Connecting")
			}
			info, _ := sess.Peripheral()
			printer.State(st, info)

		case m := <-sess.Measurements():
			printer.Measurement(m)

		case err := <-sess.Errors():
			if err == session.ErrLinkLost {
				flushStates(sess, printer)
				return fmt.Errorf("%w: %s", ErrConnectionLost, cfg.Device.Name)
			}
			logger.WithField("error", err).Warn("Monitor error")
			fmt.Fprintf(errOut, "warning: %v\n", err)
		}
	}
}

// shutdown disconnects explicitly and prints the final state changes.
func shutdown(sess *session.Session, printer eventPrinter, logger *logrus.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()

	if err := sess.Disconnect(ctx); err != nil {
		logger.WithField("error", err).Warn("Disconnect failed")
		return err
	}
	flushStates(sess, printer)
	return nil
}

// flushStates prints state changes already queued on the session.
func flushStates(sess *session.Session, printer eventPrinter) {
	for {
		select {
		case st := <-sess.States():
			printer.State(st, session.PeripheralInfo{})
		default:
			return
		}
	}
}
