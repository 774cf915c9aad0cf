package link

import (
	"context"
	"time"

	"github.com/nerrad567/klf200-bridge/internal/event"
	"github.com/nerrad567/klf200-bridge/internal/store"
)

// DefaultCommandTimeout bounds a single device command.
const DefaultCommandTimeout = 10 * time.Second

// Dispatcher serialises handler execution.
type Dispatcher interface {
	Post(fn func()) bool
}

// Store is the subset of the state store links use.
type Store interface {
	ReadState(ctx context.Context, id string) (store.State, bool, error)
	WriteState(ctx context.Context, id string, value any, ack bool) error
	SubscribeExternal(pattern string, fn func(store.Change)) *event.Subscription
}

// Logger is the logging interface used by links.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Env carries what every link of one session generation shares.
type Env struct {
	// Ctx is the generation context. It is cancelled on teardown and bounds
	// every store write and command a link issues.
	Ctx context.Context

	Store      Store
	Dispatcher Dispatcher
	Logger     Logger

	// CommandTimeout bounds each device command. Zero means
	// DefaultCommandTimeout.
	CommandTimeout time.Duration
}

// Log returns the configured logger or a no-op one.
func (e *Env) Log() Logger {
	if e.Logger == nil {
		return noopLogger{}
	}
	return e.Logger
}

func (e *Env) ctx() context.Context {
	if e.Ctx == nil {
		return context.Background()
	}
	return e.Ctx
}

// CommandContext derives the context for one device command.
func (e *Env) CommandContext() (context.Context, context.CancelFunc) {
	timeout := e.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return context.WithTimeout(e.ctx(), timeout)
}
