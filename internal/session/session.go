// Package session manages the lifecycle of a connection to a LifeinaBox:
// discovery, GATT setup, notification subscription, request polling and teardown.
//
// A Session is an actor. One goroutine owns every handle and consumes an event
// queue fed by Connect/Disconnect calls, transport notifications, link loss and
// poller failures, so each event is processed to completion before the next.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/lifebox/internal/device"
	"github.com/srg/lifebox/internal/frame"
	"github.com/srg/lifebox/internal/groutine"
	"github.com/srg/lifebox/internal/poller"
)

// PeripheralInfo identifies the connected box.
type PeripheralInfo struct {
	Address string
	Name    string
}

// Session is a single connection lifecycle to one peripheral.
type Session struct {
	transport device.Transport
	opts      Options
	logger    *logrus.Logger

	events chan any
	ctx    context.Context
	cancel context.CancelFunc
	done   <-chan struct{}

	// mu guards state, the poller handle and peripheral. State and poller are
	// always changed together so the poller is never seen running outside Connected.
	mu         sync.RWMutex
	state      State
	poll       *poller.Handle
	peripheral device.Peripheral

	// owned by the loop goroutine
	gen    uint64
	server device.Server
	sub    device.Subscription

	last *hashmap.Map[frame.Kind, frame.Measurement]

	measurements chan frame.Measurement
	errs         chan error
	states       chan State

	closeOnce sync.Once
	closeErr  error
}

type connectRequest struct {
	ctx   context.Context
	reply chan error
}

type disconnectRequest struct {
	reply chan error
}

type frameEvent struct {
	gen  uint64
	data []byte
}

type linkLostEvent struct {
	gen uint64
}

type writeFailedEvent struct {
	gen uint64
	err error
}

// New creates an Idle session and starts its event loop. Close must be called
// to release the loop goroutine.
func New(transport device.Transport, opts Options, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	opts = opts.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		transport:    transport,
		opts:         opts,
		logger:       logger,
		events:       make(chan any, opts.EventBuffer),
		ctx:          ctx,
		cancel:       cancel,
		last:         hashmap.New[frame.Kind, frame.Measurement](),
		measurements: make(chan frame.Measurement, opts.EventBuffer),
		errs:         make(chan error, opts.EventBuffer),
		states:       make(chan State, opts.EventBuffer),
	}
	s.done = groutine.Go(ctx, "lifebox-session", s.run)
	return s
}

// Measurements delivers every successfully decoded frame. Closed by Close.
func (s *Session) Measurements() <-chan frame.Measurement { return s.measurements }

// Errors delivers non-fatal failures: *frame.DecodeError, *poller.WriteError and
// ErrLinkLost. Closed by Close.
func (s *Session) Errors() <-chan error { return s.errs }

// States delivers every state transition. Closed by Close.
func (s *Session) States() <-chan State { return s.states }

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// PollerActive reports whether request polling is running.
func (s *Session) PollerActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.poll.Active()
}

// Snapshot returns the state and poller activity observed atomically.
func (s *Session) Snapshot() (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.poll.Active()
}

// Peripheral returns the connected box, if any.
func (s *Session) Peripheral() (PeripheralInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.peripheral == nil {
		return PeripheralInfo{}, false
	}
	return PeripheralInfo{Address: s.peripheral.Address(), Name: s.peripheral.Name()}, true
}

// Temperature returns the last temperature received on the current connection.
func (s *Session) Temperature() (frame.Temperature, bool) {
	m, ok := s.last.Get(frame.KindTemperature)
	if !ok {
		return frame.Temperature{}, false
	}
	t, ok := m.(frame.Temperature)
	return t, ok
}

// Battery returns the last battery reading received on the current connection.
func (s *Session) Battery() (frame.Battery, bool) {
	m, ok := s.last.Get(frame.KindBattery)
	if !ok {
		return frame.Battery{}, false
	}
	b, ok := m.(frame.Battery)
	return b, ok
}

// Connect discovers the box, connects, subscribes to notifications and starts
// polling. A Connect issued while another is in flight waits for it and then
// fails with device.ErrAlreadyConnected.
func (s *Session) Connect(ctx context.Context) error {
	req := connectRequest{ctx: ctx, reply: make(chan error, 1)}
	if err := s.post(ctx, req); err != nil {
		return err
	}
	select {
	case err := <-req.reply:
		return err
	case <-s.done:
		return ErrClosed
	}
}

// Disconnect stops polling, unsubscribes, releases the link and clears cached
// measurements. It waits for an in-flight Connect to settle first. Disconnecting
// an Idle session is a no-op.
func (s *Session) Disconnect(ctx context.Context) error {
	req := disconnectRequest{reply: make(chan error, 1)}
	if err := s.post(ctx, req); err != nil {
		return err
	}
	select {
	case err := <-req.reply:
		return err
	case <-s.done:
		// Close ran the teardown
		return nil
	}
}

// Close disconnects if needed, stops the event loop and closes the output channels.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
	return s.closeErr
}

func (s *Session) post(ctx context.Context, ev any) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// tryPost enqueues without blocking. Used from transport and poller goroutines.
func (s *Session) tryPost(ev any) bool {
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

func (s *Session) run(ctx context.Context) {
	defer func() {
		close(s.measurements)
		close(s.errs)
		close(s.states)
	}()

	for {
		select {
		case <-ctx.Done():
			if s.State() != Idle {
				s.closeErr = s.teardown("session closed")
			}
			s.logger.Debug("Session loop exited")
			return
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

func (s *Session) handle(loopCtx context.Context, ev any) {
	switch ev := ev.(type) {
	case connectRequest:
		ev.reply <- s.handleConnect(loopCtx, ev.ctx)
	case disconnectRequest:
		ev.reply <- s.handleDisconnect()
	case frameEvent:
		s.handleFrame(ev)
	case linkLostEvent:
		s.handleLinkLost(ev)
	case writeFailedEvent:
		if ev.gen == s.gen && s.State() == Connected {
			s.emitError(ev.err)
		}
	default:
		s.logger.WithField("event", fmt.Sprintf("%T", ev)).Warn("Unknown session event")
	}
}

func (s *Session) handleConnect(loopCtx, reqCtx context.Context) error {
	if st := s.State(); st != Idle {
		s.logger.WithField("state", st.String()).Warn("Connection attempt while not idle")
		return fmt.Errorf("%w: session is %s", device.ErrAlreadyConnected, st)
	}

	// Close must be able to abort a pending discovery
	ctx, cancel := context.WithCancel(reqCtx)
	defer cancel()
	stop := context.AfterFunc(loopCtx, cancel)
	defer stop()

	s.setState(Connecting)
	log := s.logger.WithFields(logrus.Fields{
		"name":    s.opts.Name,
		"service": s.opts.ServiceUUID,
	})
	log.Info("Searching for peripheral...")

	p, err := s.transport.RequestPeripheral(ctx, s.opts.Name, s.opts.ServiceUUID)
	if err != nil {
		s.setState(Idle)
		log.WithField("error", err).Error("Peripheral discovery failed")
		return &DiscoveryError{Name: s.opts.Name, Service: s.opts.ServiceUUID, Err: device.NormalizeError(err)}
	}

	s.gen++
	gen := s.gen
	log = log.WithField("address", p.Address())
	p.OnUnsolicitedDisconnect(func() {
		// the loop may be busy inside a transport call; never block the transport
		go func() {
			select {
			case s.events <- linkLostEvent{gen: gen}:
			case <-s.done:
			}
		}()
	})

	log.Info("Connecting to peripheral...")
	server, err := p.ConnectGatt(ctx)
	if err != nil {
		return s.connectFailed(log, StageGatt, err, nil)
	}

	svc, err := server.Service(ctx, s.opts.ServiceUUID)
	if err != nil {
		return s.connectFailed(log, StageService, err, server)
	}

	notifyChar, err := svc.Characteristic(ctx, s.opts.NotifyUUID)
	if err != nil {
		return s.connectFailed(log, StageCharacteristic, err, server)
	}
	writeChar, err := svc.Characteristic(ctx, s.opts.WriteUUID)
	if err != nil {
		return s.connectFailed(log, StageCharacteristic, err, server)
	}

	sub, err := notifyChar.Subscribe(s.notificationHandler(gen))
	if err != nil {
		return s.connectFailed(log, StageSubscribe, err, server)
	}

	s.server = server
	s.sub = sub

	s.mu.Lock()
	s.peripheral = p
	s.state = Connected
	s.poll = poller.Start(loopCtx, s.opts.PollInterval, writeFunc(writeChar), s.pollErrorHandler(gen), s.logger)
	s.mu.Unlock()
	s.emitState(Connected)

	log.WithField("poll_interval", s.opts.PollInterval).Info("Peripheral connected, polling started")
	return nil
}

func (s *Session) connectFailed(log *logrus.Entry, stage ConnectStage, err error, server device.Server) error {
	err = device.NormalizeError(err)
	log.WithFields(logrus.Fields{
		"stage": string(stage),
		"error": err,
	}).Error("Connection failed")

	if server != nil {
		if derr := server.Disconnect(); derr != nil {
			log.WithField("error", derr).Warn("Failed to release link after connect failure")
		}
	}
	s.setState(Idle)
	return &ConnectError{Stage: stage, Err: err}
}

func (s *Session) handleDisconnect() error {
	if s.State() == Idle {
		s.logger.Debug("Disconnect called but already disconnected")
		return nil
	}
	return s.teardown("disconnect requested")
}

func (s *Session) handleLinkLost(ev linkLostEvent) {
	if ev.gen != s.gen || s.State() != Connected {
		s.logger.WithField("generation", ev.gen).Debug("Ignoring stale link loss")
		return
	}
	s.logger.Warn("Peripheral dropped the link")
	if err := s.teardown("link lost"); err != nil {
		s.logger.WithField("error", err).Debug("Cleanup after link loss reported errors")
	}
	s.emitError(ErrLinkLost)
}

// teardown runs the identical cleanup for explicit disconnect, link loss and Close.
func (s *Session) teardown(reason string) error {
	log := s.logger.WithField("reason", reason)
	log.Info("Disconnecting peripheral...")

	s.mu.Lock()
	s.poll.Stop()
	s.poll = nil
	s.state = Disconnecting
	s.mu.Unlock()
	s.emitState(Disconnecting)

	var errs []error
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribe: %w", device.NormalizeError(err)))
		}
	}
	if s.server != nil {
		if err := s.server.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("release link: %w", device.NormalizeError(err)))
		}
	}
	s.sub = nil
	s.server = nil

	s.last.Del(frame.KindTemperature)
	s.last.Del(frame.KindBattery)

	s.mu.Lock()
	s.peripheral = nil
	s.state = Idle
	s.mu.Unlock()
	s.emitState(Idle)

	err := errors.Join(errs...)
	if err != nil {
		log.WithField("error", err).Warn("Peripheral disconnected with errors")
	} else {
		log.Info("Peripheral disconnected")
	}
	return err
}

func (s *Session) handleFrame(ev frameEvent) {
	if ev.gen != s.gen || s.State() != Connected {
		s.logger.WithField("generation", ev.gen).Debug("Dropping frame from a closed connection")
		return
	}

	m, err := frame.Decode(ev.data)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"frame": fmt.Sprintf("% x", ev.data),
			"error": err,
		}).Warn("Discarding undecodable frame")
		s.emitError(err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"kind":  m.Kind().String(),
		"value": m.String(),
	}).Debug("Measurement received")
	s.last.Set(m.Kind(), m)
	select {
	case s.measurements <- m:
	default:
		s.logger.Debug("Measurement consumer not keeping up, dropping measurement")
	}
}

func (s *Session) notificationHandler(gen uint64) func([]byte) {
	return func(data []byte) {
		ev := frameEvent{gen: gen, data: append([]byte(nil), data...)}
		if !s.tryPost(ev) {
			s.logger.WithField("frame", fmt.Sprintf("% x", data)).Warn("Session queue full, dropping frame")
		}
	}
}

func (s *Session) pollErrorHandler(gen uint64) poller.ErrorFunc {
	return func(err error) {
		if !s.tryPost(writeFailedEvent{gen: gen, err: err}) {
			s.logger.WithField("error", err).Debug("Session queue full, dropping write failure")
		}
	}
}

func writeFunc(char device.Characteristic) poller.WriteFunc {
	return func(ctx context.Context, payload []byte) error {
		return device.NormalizeError(char.Write(ctx, payload))
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.emitState(st)
}

func (s *Session) emitState(st State) {
	select {
	case s.states <- st:
	default:
		s.logger.WithField("state", st.String()).Debug("State consumer not keeping up, dropping state change")
	}
}

func (s *Session) emitError(err error) {
	select {
	case s.errs <- err:
	default:
		s.logger.WithField("error", err).Debug("Error consumer not keeping up, dropping error")
	}
}
