// Package history records acknowledged state changes as time series.
//
// A Recorder listens to every accepted store write and forwards the
// acknowledged numeric and boolean ones to a Writer, normally the InfluxDB
// client. Unacknowledged writes are commands in flight and are not recorded.
// Repeated writes of an unchanged value, such as the periodic gateway state
// refresh, are recorded once.
package history

import (
	"reflect"
	"sync"
	"time"

	"github.com/nerrad567/klf200-bridge/internal/event"
	"github.com/nerrad567/klf200-bridge/internal/store"
)

// Writer stores one state value. It reports false when the value was not
// written.
type Writer interface {
	WriteState(id string, value any, ts time.Time) bool
}

// Source delivers store changes.
type Source interface {
	OnChange(pattern string, fn func(store.Change)) *event.Subscription
}

// Logger is the logging interface used by the recorder.
type Logger interface {
	Debug(msg string, args ...any)
}

// Config wires a Recorder.
type Config struct {
	Writer Writer
	Source Source

	// Pattern limits the recorded states. Empty records every state.
	Pattern string

	Logger Logger
}

// Stats counts what a Recorder did with the changes it saw.
type Stats struct {
	Recorded  int
	Unchanged int
	Rejected  int
}

// Recorder forwards acknowledged changes to a Writer.
type Recorder struct {
	cfg Config

	mu    sync.Mutex
	sub   *event.Subscription
	last  map[string]any
	stats Stats
}

// New creates a recorder. Start subscribes it.
func New(cfg Config) *Recorder {
	if cfg.Pattern == "" {
		cfg.Pattern = "*"
	}
	return &Recorder{cfg: cfg, last: make(map[string]any)}
}

// Start subscribes to store changes. Calling it twice has no effect.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub != nil {
		return
	}
	r.sub = r.cfg.Source.OnChange(r.cfg.Pattern, r.record)
}

// Stop releases the subscription. Calling it twice has no effect.
func (r *Recorder) Stop() {
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	r.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// Stats returns the counters accumulated since New.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Recorder) record(c store.Change) {
	if !c.State.Ack {
		return
	}

	r.mu.Lock()
	prev, seen := r.last[c.ID]
	if seen && reflect.DeepEqual(prev, c.State.Value) {
		r.stats.Unchanged++
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	if !r.cfg.Writer.WriteState(c.ID, c.State.Value, c.State.Timestamp) {
		r.mu.Lock()
		r.stats.Rejected++
		r.mu.Unlock()
		if r.cfg.Logger != nil {
			r.cfg.Logger.Debug("state not recorded", "id", c.ID)
		}
		return
	}

	r.mu.Lock()
	r.last[c.ID] = c.State.Value
	r.stats.Recorded++
	r.mu.Unlock()
}
