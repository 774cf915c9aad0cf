package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/klf200-bridge/internal/event"
)

// Persister makes the tree durable. Implementations must be safe for
// concurrent use.
type Persister interface {
	// Load returns every persisted node.
	Load(ctx context.Context) ([]Record, error)

	// SaveChannel creates or replaces a channel node.
	SaveChannel(ctx context.Context, id string, meta ChannelMeta) error

	// SaveState creates or replaces a state node's metadata.
	SaveState(ctx context.Context, id string, meta StateMeta) error

	// SaveValue stores the current value of a state node.
	SaveValue(ctx context.Context, id string, st State) error

	// DeleteTree removes a node and all its descendants.
	DeleteTree(ctx context.Context, id string) error
}

type stateNode struct {
	meta  StateMeta
	value State
	set   bool
}

// Store is the in-memory state tree.
//
// Thread Safety: all methods are safe for concurrent use. Observers are
// called synchronously on the writing goroutine after the write is applied.
type Store struct {
	mu       sync.RWMutex
	channels map[string]ChannelMeta
	states   map[string]*stateNode

	persist Persister
	now     func() time.Time

	changes  event.Source[Change]
	external event.Source[Change]
}

// Option configures a Store.
type Option func(*Store)

// WithPersister makes every mutation durable through p.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persist = p }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		channels: make(map[string]ChannelMeta),
		states:   make(map[string]*stateNode),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load populates the tree from the persister. It is a no-op without one.
func (s *Store) Load(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	records, err := s.persist.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: loading tree: %w", ErrRead, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		switch r.Kind {
		case KindChannel:
			s.channels[r.ID] = r.Channel
		case KindState:
			n := &stateNode{meta: r.Meta}
			if r.State != nil {
				n.value = *r.State
				n.set = true
			}
			s.states[r.ID] = n
		}
	}
	return nil
}

// EnsureChannel creates a channel or updates its metadata.
func (s *Store) EnsureChannel(ctx context.Context, id string, meta ChannelMeta) error {
	if id == "" {
		return fmt.Errorf("%w: empty channel id", ErrWrite)
	}
	if s.persist != nil {
		if err := s.persist.SaveChannel(ctx, id, meta); err != nil {
			return fmt.Errorf("%w: channel %s: %w", ErrWrite, id, err)
		}
	}

	s.mu.Lock()
	s.channels[id] = meta
	s.mu.Unlock()
	return nil
}

// EnsureState creates a state or updates its metadata. An existing value is
// kept.
func (s *Store) EnsureState(ctx context.Context, id string, meta StateMeta) error {
	if id == "" {
		return fmt.Errorf("%w: empty state id", ErrWrite)
	}
	if s.persist != nil {
		if err := s.persist.SaveState(ctx, id, meta); err != nil {
			return fmt.Errorf("%w: state %s: %w", ErrWrite, id, err)
		}
	}

	s.mu.Lock()
	if n, ok := s.states[id]; ok {
		n.meta = meta
	} else {
		s.states[id] = &stateNode{meta: meta}
	}
	s.mu.Unlock()
	return nil
}

// ReadState returns the current value of a state. ok is false when the state
// does not exist or has never been written.
func (s *Store) ReadState(ctx context.Context, id string) (State, bool, error) {
	if err := ctx.Err(); err != nil {
		return State{}, false, fmt.Errorf("%w: %w", ErrRead, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.states[id]
	if !ok || !n.set {
		return State{}, false, nil
	}
	return n.value, true, nil
}

// StateMeta returns the metadata of a state.
func (s *Store) StateMeta(id string) (StateMeta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.states[id]
	if !ok {
		return StateMeta{}, false
	}
	return n.meta, true
}

// WriteState sets the value of an existing state. Unacknowledged writes are
// additionally delivered to SubscribeExternal handlers.
func (s *Store) WriteState(ctx context.Context, id string, value any, ack bool) error {
	st := State{Value: value, Ack: ack, Timestamp: s.now()}

	s.mu.RLock()
	_, ok := s.states[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %w: %s", ErrWrite, ErrNotFound, id)
	}

	if s.persist != nil {
		if err := s.persist.SaveValue(ctx, id, st); err != nil {
			return fmt.Errorf("%w: value %s: %w", ErrWrite, id, err)
		}
	}

	s.mu.Lock()
	n, ok := s.states[id]
	if ok {
		n.value = st
		n.set = true
	}
	s.mu.Unlock()
	if !ok {
		// Deleted while persisting.
		return fmt.Errorf("%w: %w: %s", ErrWrite, ErrNotFound, id)
	}

	c := Change{ID: id, State: st}
	s.changes.Emit(c)
	if !ack {
		s.external.Emit(c)
	}
	return nil
}

// DeleteChannel removes a channel and every node below it.
func (s *Store) DeleteChannel(ctx context.Context, id string) error {
	if s.persist != nil {
		if err := s.persist.DeleteTree(ctx, id); err != nil {
			return fmt.Errorf("%w: deleting %s: %w", ErrWrite, id, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, id)
	delete(s.states, id)
	for cid := range s.channels {
		if IsDescendant(cid, id) {
			delete(s.channels, cid)
		}
	}
	for sid := range s.states {
		if IsDescendant(sid, id) {
			delete(s.states, sid)
		}
	}
	return nil
}

// ListChannels returns the IDs of the channels directly below parent, sorted.
func (s *Store) ListChannels(ctx context.Context, parent string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id := range s.channels {
		if IsDescendant(id, parent) && !strings.Contains(id[len(parent)+1:], Sep) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Exists reports whether a channel or state with the given ID exists.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, isChannel := s.channels[id]
	_, isState := s.states[id]
	return isChannel || isState
}

// StateIDs returns every state ID matching pattern, sorted.
func (s *Store) StateIDs(pattern string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id := range s.states {
		if Match(pattern, id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// SubscribeExternal registers fn for unacknowledged writes to states matching
// pattern.
func (s *Store) SubscribeExternal(pattern string, fn func(Change)) *event.Subscription {
	return s.external.Subscribe(filter(pattern, fn))
}

// OnChange registers fn for every accepted write to states matching pattern.
func (s *Store) OnChange(pattern string, fn func(Change)) *event.Subscription {
	return s.changes.Subscribe(filter(pattern, fn))
}

func filter(pattern string, fn func(Change)) func(Change) {
	return func(c Change) {
		if Match(pattern, c.ID) {
			fn(c)
		}
	}
}
