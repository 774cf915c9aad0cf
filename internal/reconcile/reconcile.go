package reconcile

import (
	"context"
	"sync"

	"github.com/nerrad567/klf200-bridge/internal/event"
	"github.com/nerrad567/klf200-bridge/internal/gateway"
	"github.com/nerrad567/klf200-bridge/internal/link"
	"github.com/nerrad567/klf200-bridge/internal/store"
)

// Store is the subset of the state store the reconciler uses.
type Store interface {
	link.Store
	EnsureChannel(ctx context.Context, id string, meta store.ChannelMeta) error
	EnsureState(ctx context.Context, id string, meta store.StateMeta) error
	DeleteChannel(ctx context.Context, id string) error
	ListChannels(ctx context.Context, parent string) ([]string, error)
}

var _ Store = (*store.Store)(nil)

// Reconciler maintains the channels and links of one collection for one
// session generation.
//
// Thread Safety: methods are safe for concurrent use; passes are serialised.
type Reconciler[T gateway.Object] struct {
	catalog Catalog[T]
	store   Store
	env     *link.Env
	logger  link.Logger

	mu       sync.Mutex
	bound    map[int]*link.Set
	disposed bool
}

// New creates a reconciler. Links it binds use env; env.Store must be st.
func New[T gateway.Object](catalog Catalog[T], st Store, env *link.Env) *Reconciler[T] {
	logger := env.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &Reconciler[T]{
		catalog: catalog,
		store:   st,
		env:     env,
		logger:  logger,
		bound:   make(map[int]*link.Set),
	}
}

// Namespace returns the collection's top-level channel ID.
func (r *Reconciler[T]) Namespace() string { return r.catalog.Namespace }

// Reconcile runs a full pass over objects and returns the links bound for
// them. Channels below the namespace whose trailing segment is not a live ID
// are deleted with all their descendants.
func (r *Reconciler[T]) Reconcile(ctx context.Context, objects []T) *link.Set {
	r.mu.Lock()
	defer r.mu.Unlock()

	ns := r.catalog.Namespace
	if err := r.store.EnsureChannel(ctx, ns, store.ChannelMeta{Name: ns}); err != nil {
		r.logger.Error("failed to ensure namespace channel", "channel", ns, "error", err)
	}

	live := make(map[int]bool, len(objects))
	for _, obj := range objects {
		live[obj.ID()] = true
	}
	r.purge(ctx, live)

	pass := link.NewSet()
	for _, obj := range objects {
		set := r.bind(ctx, obj)
		pass.Track(set.Dispose)
	}
	r.writeCounter(ctx)

	r.logger.Info("collection reconciled", "namespace", ns, "objects", len(objects))
	return pass
}

// AddOne binds a single new or changed object. Links from an earlier bind
// of the same ID are disposed first.
func (r *Reconciler[T]) AddOne(ctx context.Context, obj T) *link.Set {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.bind(ctx, obj)
	r.writeCounter(ctx)
	r.logger.Info("object added", "namespace", r.catalog.Namespace, "id", obj.ID(), "name", obj.Name())
	return set
}

// RemoveOne disposes an object's links and deletes its channel.
func (r *Reconciler[T]) RemoveOne(ctx context.Context, id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unbind(id)
	channel := store.Join(r.catalog.Namespace, id)
	if err := r.store.DeleteChannel(ctx, channel); err != nil {
		r.logger.Error("failed to delete channel", "channel", channel, "error", err)
	}
	r.writeCounter(ctx)
	r.logger.Info("object removed", "namespace", r.catalog.Namespace, "id", id)
}

// Watch drives AddOne and RemoveOne from the collection's notifications.
// Handlers run on the env dispatcher. The returned set releases both
// subscriptions.
func (r *Reconciler[T]) Watch(coll gateway.Collection[T]) *link.Set {
	subs := link.NewSet()
	track := func(sub *event.Subscription) { subs.Track(sub.Unsubscribe) }

	track(coll.OnAdded(func(id int) {
		r.env.Dispatcher.Post(func() {
			if subs.Disposed() {
				return
			}
			obj, ok := coll.Get(id)
			if !ok {
				r.logger.Warn("added object not found", "namespace", r.catalog.Namespace, "id", id)
				return
			}
			r.AddOne(r.ctx(), obj)
		})
	}))
	track(coll.OnRemoved(func(id int) {
		r.env.Dispatcher.Post(func() {
			if subs.Disposed() {
				return
			}
			r.RemoveOne(r.ctx(), id)
		})
	}))
	return subs
}

func (r *Reconciler[T]) ctx() context.Context {
	if r.env.Ctx == nil {
		return context.Background()
	}
	return r.env.Ctx
}

// Bound returns the number of objects with live links.
func (r *Reconciler[T]) Bound() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bound)
}

// Dispose releases every link the reconciler bound. Later passes bind
// nothing.
func (r *Reconciler[T]) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.disposed = true
	for id := range r.bound {
		r.unbind(id)
	}
}

func (r *Reconciler[T]) purge(ctx context.Context, live map[int]bool) {
	ns := r.catalog.Namespace
	channels, err := r.store.ListChannels(ctx, ns)
	if err != nil {
		r.logger.Error("failed to list channels", "namespace", ns, "error", err)
		return
	}

	for _, channel := range channels {
		id, ok := store.TrailingID(channel)
		if ok && live[id] {
			continue
		}
		if ok {
			r.unbind(id)
		}
		if err := r.store.DeleteChannel(ctx, channel); err != nil {
			r.logger.Error("failed to delete stale channel", "channel", channel, "error", err)
			continue
		}
		r.logger.Info("stale channel deleted", "channel", channel)
	}
}

// bind creates or refreshes the nodes of obj and binds its links. Caller
// holds r.mu.
func (r *Reconciler[T]) bind(ctx context.Context, obj T) *link.Set {
	id := obj.ID()
	r.unbind(id)

	set := link.NewSet()
	if r.disposed {
		set.Dispose()
		return set
	}

	channel := store.Join(r.catalog.Namespace, id)
	meta := store.ChannelMeta{Name: obj.Name()}
	if r.catalog.Channel != nil {
		meta = r.catalog.Channel(obj)
	}
	if err := r.store.EnsureChannel(ctx, channel, meta); err != nil {
		r.logger.Error("failed to ensure channel", "channel", channel, "error", err)
	}

	for _, f := range r.catalog.Fields {
		stateID := store.Join(channel, f.ID)
		if err := r.store.EnsureState(ctx, stateID, f.stateMeta(obj)); err != nil {
			r.logger.Error("failed to ensure state", "state", stateID, "error", err)
			continue
		}
		r.writeInitial(ctx, f, obj, stateID)

		if f.Property != "" {
			r.add(ctx, set, link.NewPush(r.env, obj, f.Property, stateID, f.Kind), stateID)
		}
		if f.Links != nil {
			for _, l := range f.Links(r.env, obj, stateID) {
				r.add(ctx, set, l, stateID)
			}
		}
	}

	r.bound[id] = set
	return set
}

func (r *Reconciler[T]) writeInitial(ctx context.Context, f Field[T], obj T, stateID string) {
	if f.KeepExisting {
		if _, ok, err := r.store.ReadState(ctx, stateID); err == nil && ok {
			return
		}
	}
	v, ok, err := f.initial(obj)
	if err != nil {
		r.logger.Warn("skipping initial value", "state", stateID, "error", err)
		return
	}
	if !ok {
		return
	}
	if err := r.store.WriteState(ctx, stateID, v, true); err != nil {
		r.logger.Error("failed to write initial value", "state", stateID, "error", err)
	}
}

func (r *Reconciler[T]) add(ctx context.Context, set *link.Set, l link.Link, stateID string) {
	if err := set.Add(ctx, l); err != nil {
		r.logger.Error("failed to bind link", "state", stateID, "error", err)
	}
}

func (r *Reconciler[T]) unbind(id int) {
	if set, ok := r.bound[id]; ok {
		set.Dispose()
		delete(r.bound, id)
	}
}

func (r *Reconciler[T]) writeCounter(ctx context.Context) {
	if r.catalog.Counter == "" {
		return
	}
	id := store.Join(r.catalog.Namespace, r.catalog.Counter)
	meta := store.StateMeta{
		Name:  r.catalog.CounterName,
		Role:  "value",
		Type:  store.TypeNumber,
		Read:  true,
		Write: false,
	}
	if err := r.store.EnsureState(ctx, id, meta); err != nil {
		r.logger.Error("failed to ensure counter", "state", id, "error", err)
		return
	}
	if err := r.store.WriteState(ctx, id, len(r.bound), true); err != nil {
		r.logger.Error("failed to write counter", "state", id, "error", err)
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
