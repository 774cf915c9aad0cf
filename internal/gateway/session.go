package gateway

import (
	"context"
	"time"

	"github.com/nerrad567/klf200-bridge/internal/event"
)

// Dialer opens authenticated sessions.
type Dialer interface {
	// Login connects and authenticates. A rejected password returns an error
	// wrapping ErrAuth; unreachable gateways return one wrapping ErrConnection.
	Login(ctx context.Context, password string) (Session, error)
}

// State is the gateway's own operating state.
type State struct {
	GatewayState    int
	GatewaySubState int
}

// Versions holds the gateway's firmware and protocol identification.
type Versions struct {
	Software        string
	Hardware        int
	ProductGroup    int
	ProductType     int
	ProtocolVersion string
}

// Session is an authenticated connection to the gateway.
type Session interface {
	// Products fetches the product collection.
	Products(ctx context.Context) (Collection[Product], error)

	// Scenes fetches the scene collection.
	Scenes(ctx context.Context) (Collection[Scene], error)

	// Groups fetches the group collection.
	Groups(ctx context.Context) (Collection[Group], error)

	// State requests the gateway state snapshot.
	State(ctx context.Context) (State, error)

	// Versions requests firmware and protocol versions.
	Versions(ctx context.Context) (Versions, error)

	// EnableHouseStatusMonitor asks the gateway to push node state changes.
	EnableHouseStatusMonitor(ctx context.Context) error

	// SetUTCTime sets the gateway clock.
	SetUTCTime(ctx context.Context, now time.Time) error

	// SetTimeZone sets the gateway time zone string.
	SetTimeZone(ctx context.Context, tz string) error

	// Reboot restarts the gateway. The session closes shortly after.
	Reboot(ctx context.Context) error

	// OnFrame registers a handler for every inbound frame.
	OnFrame(fn func(Frame)) *event.Subscription

	// Done is closed when the session ends.
	Done() <-chan struct{}

	// Err returns the error that closed the session, or nil for a clean close
	// or a session that is still open.
	Err() error

	// Logout ends the session cleanly.
	Logout(ctx context.Context) error
}
