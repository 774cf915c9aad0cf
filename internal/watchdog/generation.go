package watchdog

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/klf200-bridge/internal/gateway"
	"github.com/nerrad567/klf200-bridge/internal/link"
	"github.com/nerrad567/klf200-bridge/internal/refresh"
)

// Generation is everything that belongs to one session: from a successful
// login until the session closes. Components created for a generation
// register their release with Track and use Context, which is cancelled on
// teardown.
type Generation struct {
	// ID identifies the generation in logs.
	ID string

	// Session is valid for the lifetime of the generation only.
	Session gateway.Session

	ctx    context.Context
	cancel context.CancelFunc
	owned  *link.Set

	mu        sync.Mutex
	refresher *refresh.Refresher
}

// NewGeneration starts a generation for sess. The watchdog creates one per
// successful login; it is exported for initialisers tested on their own.
func NewGeneration(parent context.Context, sess gateway.Session) *Generation {
	ctx, cancel := context.WithCancel(parent)
	return &Generation{
		ID:      uuid.NewString(),
		Session: sess,
		ctx:     ctx,
		cancel:  cancel,
		owned:   link.NewSet(),
	}
}

// Context is cancelled when the generation is torn down.
func (g *Generation) Context() context.Context { return g.ctx }

// Track registers fn to run on teardown, in reverse order of registration.
// On a torn down generation fn runs immediately and Track returns false.
func (g *Generation) Track(fn func()) bool { return g.owned.Track(fn) }

// SetRefresher hands the generation's refresher to the watchdog, which stops
// it first on teardown and on Reboot.
func (g *Generation) SetRefresher(r *refresh.Refresher) {
	g.mu.Lock()
	g.refresher = r
	g.mu.Unlock()
	g.Track(r.Stop)
}

// Refresher returns the refresher set with SetRefresher, if any.
func (g *Generation) Refresher() *refresh.Refresher {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refresher
}

// Closed reports whether the generation has been torn down.
func (g *Generation) Closed() bool { return g.owned.Disposed() }

func (g *Generation) stopRefresher() {
	if r := g.Refresher(); r != nil {
		r.Stop()
	}
}

func (g *Generation) dispose() {
	g.cancel()
	g.owned.Dispose()
}
