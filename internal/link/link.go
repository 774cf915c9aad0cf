package link

import (
	"context"
	"errors"
	"sync"

	"github.com/nerrad567/klf200-bridge/internal/event"
)

// Link is a property binding.
type Link interface {
	// Initialize registers the link's subscription. Calling it on a bound
	// or disposed link is an error.
	Initialize(ctx context.Context) error

	// Dispose releases the subscription. It is idempotent and a no-op on a
	// link that was never initialised.
	Dispose()
}

// Lifecycle states.
type phase int

const (
	unbound phase = iota
	bound
	disposed
)

// Errors returned by Initialize.
var (
	ErrAlreadyBound = errors.New("link: already initialised")
	ErrDisposed     = errors.New("link: disposed")
)

// lifecycle implements the Unbound → Bound → Disposed state machine shared
// by all link kinds.
type lifecycle struct {
	mu    sync.Mutex
	phase phase
	sub   *event.Subscription
}

// bind runs subscribe and records its subscription.
func (l *lifecycle) bind(subscribe func() *event.Subscription) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.phase {
	case bound:
		return ErrAlreadyBound
	case disposed:
		return ErrDisposed
	}
	l.sub = subscribe()
	l.phase = bound
	return nil
}

func (l *lifecycle) Dispose() {
	l.mu.Lock()
	if l.phase != bound {
		l.mu.Unlock()
		return
	}
	l.phase = disposed
	sub := l.sub
	l.sub = nil
	l.mu.Unlock()

	sub.Unsubscribe()
}

func (l *lifecycle) active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase == bound
}

// Set owns the links of one object or generation, plus any other release
// functions tied to the same lifetime.
//
// Thread Safety: all methods are safe for concurrent use.
type Set struct {
	mu       sync.Mutex
	release  []func()
	links    int
	disposed bool
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{}
}

// Add initialises l and keeps it for disposal. A link added to a disposed
// set is disposed immediately.
func (s *Set) Add(ctx context.Context, l Link) error {
	if !s.Track(l.Dispose) {
		return ErrDisposed
	}
	s.mu.Lock()
	s.links++
	s.mu.Unlock()

	return l.Initialize(ctx)
}

// Track registers fn to run on Dispose. On a disposed set fn runs at once
// and Track returns false.
func (s *Set) Track(fn func()) bool {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		fn()
		return false
	}
	s.release = append(s.release, fn)
	s.mu.Unlock()
	return true
}

// Len returns the number of links added.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.links
}

// Disposed reports whether Dispose has run.
func (s *Set) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Dispose releases everything, in reverse order of registration. Further
// calls are no-ops.
func (s *Set) Dispose() {
	s.mu.Lock()
	release := s.release
	s.release = nil
	s.links = 0
	s.disposed = true
	s.mu.Unlock()

	for i := len(release) - 1; i >= 0; i-- {
		release[i]()
	}
}
