package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/klf200-bridge/internal/event"
	"github.com/nerrad567/klf200-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/klf200-bridge/internal/store"
)

// Broker is the subset of the MQTT client the mirror uses.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Store is the subset of the state store the mirror uses.
type Store interface {
	StateIDs(pattern string) []string
	StateMeta(id string) (store.StateMeta, bool)
	ReadState(ctx context.Context, id string) (store.State, bool, error)
	WriteState(ctx context.Context, id string, value any, ack bool) error
	OnChange(pattern string, fn func(store.Change)) *event.Subscription
}

// Dispatcher serialises store writes with the rest of the bridge.
type Dispatcher interface {
	Post(fn func()) bool
}

// Logger is the logging interface used by the mirror.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config wires a Mirror.
type Config struct {
	Broker     Broker
	Store      Store
	Dispatcher Dispatcher
	Topics     mqtt.Topics
	QoS        byte

	// Pattern limits the mirrored states. Empty mirrors every state.
	Pattern string

	Logger Logger
}

// Mirror publishes store changes and applies set messages.
type Mirror struct {
	cfg     Config
	log     Logger
	running atomic.Bool

	mu      sync.Mutex
	pending map[string]store.State
	order   []string
	wake    chan struct{}
}

// New creates a mirror. Run starts it.
func New(cfg Config) *Mirror {
	if cfg.Pattern == "" {
		cfg.Pattern = "*"
	}
	m := &Mirror{
		cfg:     cfg,
		log:     cfg.Logger,
		pending: make(map[string]store.State),
		wake:    make(chan struct{}, 1),
	}
	if m.log == nil {
		m.log = nopLogger{}
	}
	return m
}

// Run publishes the current tree, subscribes to set messages and publishes
// changes until ctx is done. Values still pending at that point are flushed
// before Run returns.
func (m *Mirror) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer m.running.Store(false)

	changes := m.cfg.Store.OnChange(m.cfg.Pattern, func(c store.Change) {
		m.enqueue(c.ID, c.State)
	})
	defer changes.Unsubscribe()

	m.Resync(ctx)

	setTopic := m.cfg.Topics.AllSets()
	if err := m.cfg.Broker.Subscribe(setTopic, m.cfg.QoS, m.handleSet); err != nil {
		return fmt.Errorf("subscribing to %s: %w", setTopic, err)
	}
	defer func() {
		if err := m.cfg.Broker.Unsubscribe(setTopic); err != nil {
			m.log.Warn("mqtt unsubscribe failed", "topic", setTopic, "error", err)
		}
	}()

	m.log.Info("mqtt mirror started", "prefix", m.cfg.Topics.Prefix)
	for {
		select {
		case <-ctx.Done():
			m.flush()
			m.log.Info("mqtt mirror stopped")
			return nil
		case <-m.wake:
			m.flush()
		}
	}
}

// Resync queues every current value for publishing. It is called on start
// and should be called whenever the broker connection is re-established.
func (m *Mirror) Resync(ctx context.Context) {
	for _, id := range m.cfg.Store.StateIDs(m.cfg.Pattern) {
		st, ok, err := m.cfg.Store.ReadState(ctx, id)
		if err != nil {
			m.log.Warn("reading state for mqtt failed", "id", id, "error", err)
			continue
		}
		if ok {
			m.enqueue(id, st)
		}
	}
}

// Pending returns the number of states waiting to be published.
func (m *Mirror) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// enqueue records the latest value of id and wakes the publisher. Earlier
// unpublished values of the same state are replaced.
func (m *Mirror) enqueue(id string, st store.State) {
	m.mu.Lock()
	if _, queued := m.pending[id]; !queued {
		m.order = append(m.order, id)
	}
	m.pending[id] = st
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Mirror) flush() {
	m.mu.Lock()
	order, pending := m.order, m.pending
	m.order, m.pending = nil, make(map[string]store.State)
	m.mu.Unlock()

	for _, id := range order {
		m.publish(id, pending[id])
	}
}

func (m *Mirror) publish(id string, st store.State) {
	payload, err := json.Marshal(st)
	if err != nil {
		m.log.Warn("encoding state for mqtt failed", "id", id, "error", err)
		return
	}
	if err := m.cfg.Broker.Publish(m.cfg.Topics.State(id), payload, m.cfg.QoS, true); err != nil {
		m.log.Warn("mqtt publish failed", "id", id, "error", err)
	}
}

// handleSet runs on the MQTT client's goroutine. The write itself is posted
// to the dispatcher.
func (m *Mirror) handleSet(topic string, payload []byte) error {
	id, ok := m.cfg.Topics.SetID(topic)
	if !ok {
		return nil
	}
	body := append([]byte(nil), payload...)
	if !m.cfg.Dispatcher.Post(func() { m.apply(id, body) }) {
		m.log.Warn("set message dropped, dispatcher closed", "id", id)
	}
	return nil
}

// apply validates a set message and writes it unacknowledged.
func (m *Mirror) apply(id string, payload []byte) {
	value, err := m.decode(id, payload)
	if err != nil {
		level := m.log.Warn
		if errors.Is(err, ErrUnknownState) {
			level = m.log.Debug
		}
		level("set message rejected", "id", id, "error", err)
		return
	}
	if err := m.cfg.Store.WriteState(context.Background(), id, value, false); err != nil {
		m.log.Warn("writing set value failed", "id", id, "error", err)
		return
	}
	m.log.Debug("set message applied", "id", id, "value", value)
}

func (m *Mirror) decode(id string, payload []byte) (any, error) {
	if !store.Match(m.cfg.Pattern, id) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownState, id)
	}
	meta, ok := m.cfg.Store.StateMeta(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownState, id)
	}
	if !meta.Write {
		return nil, fmt.Errorf("%w: %s", ErrReadOnly, id)
	}
	return DecodeSet(payload, meta)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
