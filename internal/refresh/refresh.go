// Package refresh polls the gateway state at a fixed interval and whenever
// the gateway reports activity.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/klf200-bridge/internal/gateway"
	"github.com/nerrad567/klf200-bridge/internal/link"
	"github.com/nerrad567/klf200-bridge/internal/reconcile"
)

// Defaults for Config.
const (
	DefaultInterval = 30 * time.Second
	DefaultTimeout  = 10 * time.Second
)

// Suppressed reports whether frames of kind must not trigger a refresh. The
// confirmation of a state request is the answer to the refresher's own poll,
// and a reboot confirmation precedes the connection dropping; refreshing on
// either would feed back into itself.
func Suppressed(kind gateway.FrameKind) bool {
	switch kind {
	case gateway.FrameGetStateConfirm, gateway.FrameRebootConfirm:
		return true
	default:
		return false
	}
}

// StateSource provides gateway state snapshots. gateway.Session satisfies it.
type StateSource interface {
	State(ctx context.Context) (gateway.State, error)
}

// Config holds the refresher settings.
type Config struct {
	// Source is the session of the current generation.
	Source StateSource

	// Store receives the snapshots.
	Store link.Store

	// Dispatcher serialises refreshes with all other handlers.
	Dispatcher link.Dispatcher

	// Interval between polls. Default: 30 seconds.
	Interval time.Duration

	// Timeout bounds a single state request. Default: 10 seconds.
	Timeout time.Duration

	// Logger is optional.
	Logger link.Logger
}

// Refresher requests gateway state snapshots and writes them to the
// gateway channel.
type Refresher struct {
	source     StateSource
	store      link.Store
	dispatcher link.Dispatcher
	interval   time.Duration
	timeout    time.Duration
	logger     link.Logger

	mu      sync.Mutex
	running bool
	pending bool
	ctx     context.Context

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a refresher. Call Start to begin polling.
func New(cfg Config) *Refresher {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Refresher{
		source:     cfg.Source,
		store:      cfg.Store,
		dispatcher: cfg.Dispatcher,
		interval:   interval,
		timeout:    timeout,
		logger:     cfg.Logger,
		ctx:        context.Background(),
		done:       make(chan struct{}),
	}
}

// Start begins polling until Stop is called or ctx is cancelled. Calls
// after the first, or after Stop, do nothing.
func (r *Refresher) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.mu.Lock()
		select {
		case <-r.done:
			r.mu.Unlock()
			return
		default:
		}
		r.running = true
		r.ctx = ctx
		r.mu.Unlock()

		r.wg.Add(1)
		go r.loop(ctx)
	})
}

// Stop ends polling and waits for the ticker goroutine to exit. A refresh
// already queued on the dispatcher becomes a no-op. Safe to call multiple
// times.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.running = false
		close(r.done)
		r.mu.Unlock()

		r.wg.Wait()
	})
}

// Running reports whether the refresher has been started and not stopped.
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// HandleFrame schedules a refresh for an inbound frame unless the frame kind
// is suppressed.
func (r *Refresher) HandleFrame(f gateway.Frame) {
	if Suppressed(f.Kind) {
		return
	}
	r.schedule()
}

// Refresh requests a snapshot and writes it. It runs on the caller's
// goroutine.
func (r *Refresher) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	state, err := r.source.State(ctx)
	if err != nil {
		return err
	}
	reconcile.WriteGatewayState(ctx, r.store, r.log(), state)
	return nil
}

// schedule posts a refresh unless one is already waiting on the dispatcher.
func (r *Refresher) schedule() {
	r.mu.Lock()
	if !r.running || r.pending {
		r.mu.Unlock()
		return
	}
	r.pending = true
	ctx := r.ctx
	r.mu.Unlock()

	r.dispatcher.Post(func() {
		r.mu.Lock()
		r.pending = false
		running := r.running
		r.mu.Unlock()
		if !running {
			return
		}
		if err := r.Refresh(ctx); err != nil {
			r.log().Warn("gateway state refresh failed", "error", err)
		}
	})
}

func (r *Refresher) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			r.schedule()
		}
	}
}

func (r *Refresher) log() link.Logger {
	if r.logger == nil {
		return nopLogger{}
	}
	return r.logger
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
