// Package poller periodically writes the request commands that make the box
// notify fresh temperature and battery readings.
package poller

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/lifebox/internal/frame"
	"github.com/srg/lifebox/internal/groutine"
)

// DefaultInterval is the polling period used when none is configured.
const DefaultInterval = time.Second

// WriteFunc writes one command payload to the box.
type WriteFunc func(ctx context.Context, payload []byte) error

// ErrorFunc receives write failures. It runs on the poller goroutine.
type ErrorFunc func(err error)

// WriteError reports a failed command write during a tick.
type WriteError struct {
	Command frame.Kind
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s request: %v", e.Command, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Handle controls a running poller. The zero value and nil are valid, stopped handles.
type Handle struct {
	cancel  context.CancelFunc
	done    <-chan struct{}
	stopped atomic.Bool
}

// commands are written in this order on every tick.
var commands = []frame.Kind{frame.KindTemperature, frame.KindBattery}

// Start begins ticking every interval. The first tick fires one interval after Start.
// Each tick writes the temperature request then the battery request; a failed write
// goes to onError and never stops the poller or the rest of the tick.
func Start(ctx context.Context, interval time.Duration, write WriteFunc, onError ErrorFunc, logger *logrus.Logger) *Handle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = logrus.New()
	}
	if onError == nil {
		onError = func(error) {}
	}

	pollCtx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel}

	h.done = groutine.Go(pollCtx, "lifebox-poller", func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		logger.WithField("interval", interval).Debug("Poller started")
		for {
			select {
			case <-ctx.Done():
				logger.Debug("Poller stopped")
				return
			case <-ticker.C:
				tick(ctx, write, onError, logger)
			}
		}
	})

	return h
}

func tick(ctx context.Context, write WriteFunc, onError ErrorFunc, logger *logrus.Logger) {
	for _, kind := range commands {
		// stopped between writes: the rest of the tick is skipped
		if ctx.Err() != nil {
			return
		}

		payload, _ := frame.Request(kind)
		logger.WithFields(logrus.Fields{
			"command": kind.String(),
			"payload": fmt.Sprintf("% x", payload),
		}).Debug("Writing request")

		if err := write(ctx, payload); err != nil {
			if ctx.Err() != nil {
				// teardown began while the write was in flight
				return
			}
			logger.WithFields(logrus.Fields{
				"command": kind.String(),
				"error":   err,
			}).Warn("Request write failed")
			onError(&WriteError{Command: kind, Err: err})
		}
	}
}

// Stop cancels the poller. No tick starts after Stop returns; a write already in
// flight may still complete. Safe to call repeatedly and on a nil handle.
func (h *Handle) Stop() {
	if h == nil || h.cancel == nil {
		return
	}
	if h.stopped.CompareAndSwap(false, true) {
		h.cancel()
	}
}

// Wait blocks until the poller goroutine has exited or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	if h == nil || h.done == nil {
		return nil
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active reports whether the poller is running and has not been stopped.
func (h *Handle) Active() bool {
	if h == nil || h.done == nil {
		return false
	}
	// cancelled but still draining an in-flight write counts as stopped
	if h.stopped.Load() {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}
