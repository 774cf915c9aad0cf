package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/klf200-bridge/internal/gateway"
	"github.com/nerrad567/klf200-bridge/internal/link"
	"github.com/nerrad567/klf200-bridge/internal/reconcile"
	"github.com/nerrad567/klf200-bridge/internal/refresh"
	"github.com/nerrad567/klf200-bridge/internal/watchdog"
)

// DefaultTimeZone is the gateway time zone string for central Europe.
const DefaultTimeZone = ":GMT+1:GMT+2:0060:(1994)040102-0:110102-0"

// Config holds the bridge settings.
type Config struct {
	Store      reconcile.Store
	Dispatcher link.Dispatcher

	// TimeZone is sent to the gateway on every login. Default:
	// DefaultTimeZone.
	TimeZone string

	// CommandTimeout bounds each device command. Default:
	// link.DefaultCommandTimeout.
	CommandTimeout time.Duration

	// RefreshInterval is the gateway state polling interval. Default:
	// refresh.DefaultInterval.
	RefreshInterval time.Duration

	// Now returns the time sent to the gateway clock. Default: time.Now.
	Now func() time.Time

	Logger link.Logger
}

// Bridge sets up the store side of every new session.
type Bridge struct {
	cfg Config
	log link.Logger
}

var _ watchdog.Initializer = (*Bridge)(nil)

// New creates a bridge.
func New(cfg Config) *Bridge {
	if cfg.TimeZone == "" {
		cfg.TimeZone = DefaultTimeZone
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = nopLogger{}
	}
	return &Bridge{cfg: cfg, log: log}
}

// Initialize runs the startup sequence for gen. It is called on the dispatch
// queue. An error means the generation is unusable; anything it already
// registered on gen is released by the caller.
func (b *Bridge) Initialize(ctx context.Context, gen *watchdog.Generation) error {
	sess := gen.Session
	log := b.log

	if err := sess.EnableHouseStatusMonitor(ctx); err != nil {
		return fmt.Errorf("enable house status monitor: %w", err)
	}
	if err := sess.SetUTCTime(ctx, b.cfg.Now().UTC()); err != nil {
		log.Warn("failed to set gateway clock", "error", err)
	}
	if err := sess.SetTimeZone(ctx, b.cfg.TimeZone); err != nil {
		log.Warn("failed to set gateway time zone", "error", err)
	}

	env := &link.Env{
		Ctx:            gen.Context(),
		Store:          b.cfg.Store,
		Dispatcher:     b.cfg.Dispatcher,
		Logger:         log,
		CommandTimeout: b.cfg.CommandTimeout,
	}

	scenes, err := sess.Scenes(ctx)
	if err != nil {
		return fmt.Errorf("fetch scenes: %w", err)
	}
	bindCollection(ctx, gen, reconcile.New(reconcile.Scenes(), b.cfg.Store, env), scenes)

	groups, err := sess.Groups(ctx)
	if err != nil {
		return fmt.Errorf("fetch groups: %w", err)
	}
	bindCollection(ctx, gen, reconcile.New(reconcile.Groups(), b.cfg.Store, env), groups)

	products, err := sess.Products(ctx)
	if err != nil {
		return fmt.Errorf("fetch products: %w", err)
	}
	bindCollection(ctx, gen, reconcile.New(reconcile.Products(), b.cfg.Store, env), products)

	gw := reconcile.BindGateway(ctx, b.cfg.Store, env, sess)
	gen.Track(gw.Dispose)

	r := refresh.New(refresh.Config{
		Source:     sess,
		Store:      b.cfg.Store,
		Dispatcher: b.cfg.Dispatcher,
		Interval:   b.cfg.RefreshInterval,
		Logger:     log,
	})
	gen.SetRefresher(r)
	frames := sess.OnFrame(r.HandleFrame)
	gen.Track(frames.Unsubscribe)

	if err := r.Refresh(ctx); err != nil {
		log.Warn("initial gateway state refresh failed", "error", err)
	}
	r.Start(gen.Context())

	log.Info("bridge initialised",
		"generation", gen.ID,
		"scenes", len(scenes.All()),
		"groups", len(groups.All()),
		"products", len(products.All()),
	)
	return nil
}

// bindCollection reconciles coll and keeps it in step with later additions
// and removals. The watch is released before the links.
func bindCollection[T gateway.Object](ctx context.Context, gen *watchdog.Generation, r *reconcile.Reconciler[T], coll gateway.Collection[T]) {
	gen.Track(r.Dispose)
	r.Reconcile(ctx, coll.All())
	gen.Track(r.Watch(coll).Dispose)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
