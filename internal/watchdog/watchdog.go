package watchdog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/klf200-bridge/internal/gateway"
	"github.com/nerrad567/klf200-bridge/internal/reconcile"
	"github.com/nerrad567/klf200-bridge/internal/store"
)

// Defaults for Config.
const (
	DefaultReconnectDelay  = time.Second
	DefaultLoginTimeout    = 30 * time.Second
	DefaultTeardownTimeout = 30 * time.Second
)

// Connection indicator IDs.
const (
	InfoChannel     = "info"
	StateConnection = "info.connection"
)

// ErrNotConnected is returned by Reboot without an active session.
var ErrNotConnected = errors.New("watchdog: not connected")

var errShutdown = errors.New("watchdog: shutting down")

// State is the connection state of the watchdog.
type State int

// Watchdog states.
const (
	StateIdle State = iota
	StateConnected
	StateDisconnecting
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Initializer builds everything a new session needs. It runs on the
// dispatch queue and must not wait on the queue itself.
type Initializer interface {
	Initialize(ctx context.Context, gen *Generation) error
}

// Queue runs functions on the dispatch goroutine.
type Queue interface {
	Do(ctx context.Context, fn func()) error
}

// Store is the subset of the state store the watchdog writes to.
type Store interface {
	EnsureChannel(ctx context.Context, id string, meta store.ChannelMeta) error
	EnsureState(ctx context.Context, id string, meta store.StateMeta) error
	WriteState(ctx context.Context, id string, value any, ack bool) error
}

// Logger is the logging interface used by the watchdog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the watchdog settings.
type Config struct {
	Dialer      gateway.Dialer
	Password    string
	Initializer Initializer
	Store       Store
	Queue       Queue

	// ReconnectDelay is the fixed wait between failed logins. Default: 1s.
	ReconnectDelay time.Duration

	// LoginTimeout bounds a single login. Default: 30s.
	LoginTimeout time.Duration

	// TeardownTimeout bounds waiting for the queue during teardown.
	// Default: 30s.
	TeardownTimeout time.Duration

	Logger Logger
}

// Watchdog keeps a session to the gateway alive.
type Watchdog struct {
	cfg Config
	log Logger

	mu           sync.Mutex
	state        State
	gen          *Generation
	shuttingDown bool
	started      bool

	shutdown     chan struct{}
	shutdownOnce sync.Once
	stopped      chan struct{}
}

// New creates a watchdog. Call Run to connect.
func New(cfg Config) *Watchdog {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = DefaultLoginTimeout
	}
	if cfg.TeardownTimeout <= 0 {
		cfg.TeardownTimeout = DefaultTeardownTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = nopLogger{}
	}
	return &Watchdog{
		cfg:      cfg,
		log:      log,
		shutdown: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// State returns the current connection state.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Generation returns the active generation, or nil while disconnected.
func (w *Watchdog) Generation() *Generation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gen
}

// Run connects and keeps the session alive until ctx is cancelled or
// Shutdown is called. A failed first login ends Run with that error; so does
// a rejected password at any time.
func (w *Watchdog) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("watchdog: already running")
	}
	w.started = true
	w.mu.Unlock()

	defer func() {
		w.setState(StateStopped)
		close(w.stopped)
	}()

	w.ensureIndicator(ctx)

	gen, err := w.connect(ctx)
	switch {
	case err == nil:
	case errors.Is(err, errInit):
		w.log.Warn("initialisation failed, retrying", "error", err)
		if gen, err = w.reconnect(ctx); err != nil {
			return w.exitErr(err)
		}
	case w.isShuttingDown() || ctx.Err() != nil:
		return nil
	default:
		return fmt.Errorf("initial login: %w", err)
	}

	for {
		select {
		case <-gen.Session.Done():
			if w.isShuttingDown() {
				w.teardown(gen)
				return nil
			}
			if sessErr := gen.Session.Err(); sessErr != nil {
				w.log.Error("connection to gateway closed with error", "generation", gen.ID, "error", sessErr)
			} else {
				w.log.Warn("connection to gateway closed", "generation", gen.ID)
			}

			w.setState(StateDisconnecting)
			w.teardown(gen)

			if gen, err = w.reconnect(ctx); err != nil {
				return w.exitErr(err)
			}

		case <-w.shutdown:
			w.stopGeneration(gen)
			return nil

		case <-ctx.Done():
			w.stopGeneration(gen)
			return nil
		}
	}
}

// Shutdown stops Run: the active generation is torn down and the session
// logged out. Teardown failures are logged and swallowed. Safe to call
// multiple times; it returns once Run has exited or ctx is done.
func (w *Watchdog) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() {
		w.mu.Lock()
		w.shuttingDown = true
		w.mu.Unlock()
		close(w.shutdown)
	})

	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if !started {
		return nil
	}

	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reboot stops the refresher and requests a gateway reboot through the
// gateway.RebootGateway state. The session close that follows drives the
// reconnect.
func (w *Watchdog) Reboot(ctx context.Context) error {
	gen := w.Generation()
	if gen == nil {
		return ErrNotConnected
	}
	w.log.Info("rebooting gateway", "generation", gen.ID)
	gen.stopRefresher()
	return w.cfg.Store.WriteState(ctx, reconcile.StateRebootGateway, true, false)
}

var errInit = errors.New("watchdog: initialisation failed")

// connect logs in and initialises a new generation.
func (w *Watchdog) connect(ctx context.Context) (*Generation, error) {
	loginCtx, cancel := context.WithTimeout(ctx, w.cfg.LoginTimeout)
	sess, err := w.cfg.Dialer.Login(loginCtx, w.cfg.Password)
	cancel()
	if err != nil {
		return nil, err
	}

	gen := NewGeneration(ctx, sess)
	w.log.Info("logged in to gateway", "generation", gen.ID)

	var initErr error
	if err := w.cfg.Queue.Do(ctx, func() {
		if initErr = w.cfg.Initializer.Initialize(gen.Context(), gen); initErr != nil {
			return
		}
		w.writeIndicator(ctx, true)
	}); err != nil {
		initErr = err
	}

	if initErr != nil {
		w.teardown(gen)
		w.logout(gen)
		return nil, fmt.Errorf("%w: %w", errInit, initErr)
	}

	w.mu.Lock()
	w.gen = gen
	w.state = StateConnected
	w.mu.Unlock()
	w.log.Info("gateway session ready", "generation", gen.ID)
	return gen, nil
}

// reconnect retries connect with the fixed delay until it succeeds, the
// password is rejected, or shutdown begins.
func (w *Watchdog) reconnect(ctx context.Context) (*Generation, error) {
	w.setState(StateReconnecting)

	for attempt := 1; ; attempt++ {
		if w.isShuttingDown() {
			return nil, errShutdown
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		w.log.Info("reconnecting to gateway", "attempt", attempt)
		gen, err := w.connect(ctx)
		if err == nil {
			return gen, nil
		}
		if errors.Is(err, gateway.ErrAuth) {
			return nil, err
		}
		w.log.Warn("reconnect failed", "attempt", attempt, "retry_in", w.cfg.ReconnectDelay, "error", err)

		timer := time.NewTimer(w.cfg.ReconnectDelay)
		select {
		case <-timer.C:
		case <-w.shutdown:
			timer.Stop()
			return nil, errShutdown
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

// teardown stops the refresher, clears the indicator and disposes the
// generation, in that order, on the dispatch queue. If the queue does not
// respond in time the steps run directly; all of them are idempotent.
func (w *Watchdog) teardown(gen *Generation) {
	w.mu.Lock()
	if w.gen == gen {
		w.gen = nil
	}
	w.mu.Unlock()

	steps := func() {
		gen.stopRefresher()
		w.writeIndicator(context.Background(), false)
		gen.dispose()
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.TeardownTimeout)
	defer cancel()
	if err := w.cfg.Queue.Do(ctx, steps); err != nil {
		w.log.Warn("teardown on queue failed, running directly", "generation", gen.ID, "error", err)
		steps()
	}
	w.log.Info("generation disposed", "generation", gen.ID)
}

// stopGeneration is the shutdown path: teardown and logout.
func (w *Watchdog) stopGeneration(gen *Generation) {
	w.mu.Lock()
	w.shuttingDown = true
	w.mu.Unlock()

	w.teardown(gen)
	w.logout(gen)
}

func (w *Watchdog) logout(gen *Generation) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.LoginTimeout)
	defer cancel()
	if err := gen.Session.Logout(ctx); err != nil {
		w.log.Debug("logout failed", "generation", gen.ID, "error", err)
	}
}

func (w *Watchdog) exitErr(err error) error {
	if errors.Is(err, errShutdown) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Watchdog) ensureIndicator(ctx context.Context) {
	if err := w.cfg.Store.EnsureChannel(ctx, InfoChannel, store.ChannelMeta{Name: "Information"}); err != nil {
		w.log.Error("failed to ensure info channel", "error", err)
	}
	meta := store.StateMeta{
		Name: "Device or service connected",
		Role: "indicator.connected",
		Type: store.TypeBoolean,
		Read: true,
	}
	if err := w.cfg.Store.EnsureState(ctx, StateConnection, meta); err != nil {
		w.log.Error("failed to ensure connection indicator", "error", err)
	}
	w.writeIndicator(ctx, false)
}

func (w *Watchdog) writeIndicator(ctx context.Context, connected bool) {
	if err := w.cfg.Store.WriteState(ctx, StateConnection, connected, true); err != nil {
		w.log.Error("failed to write connection indicator", "connected", connected, "error", err)
	}
}

func (w *Watchdog) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *Watchdog) isShuttingDown() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.shuttingDown
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
