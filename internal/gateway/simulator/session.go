package simulator

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/klf200-bridge/internal/event"
	"github.com/nerrad567/klf200-bridge/internal/gateway"
)

type session struct {
	g *Gateway

	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	err  error
	subs []*event.Subscription

	frames event.Source[gateway.Frame]
}

func newSession(g *Gateway) *session {
	return &session{g: g, done: make(chan struct{})}
}

// track ties a model subscription to the session lifetime.
func (s *session) track(sub *event.Subscription) *event.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed() {
		sub.Unsubscribe()
		return sub
	}
	s.subs = append(s.subs, sub)
	return sub
}

func (s *session) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *session) close(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		subs := s.subs
		s.subs = nil
		close(s.done)
		s.mu.Unlock()

		for _, sub := range subs {
			sub.Unsubscribe()
		}
	})
}

func (s *session) emit(kind gateway.FrameKind, nodeID int) {
	if s.isClosed() {
		return
	}
	s.frames.Emit(gateway.Frame{Kind: kind, NodeID: nodeID, ReceivedAt: time.Now()})
}

// call guards a command: it fails on a closed session, records the call and
// applies the configured command failure.
func (s *session) call(ctx context.Context, op string, id int, arg any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.isClosed() {
		return gateway.ErrConnection
	}
	return s.g.record(Call{Op: op, ID: id, Arg: arg})
}

func (s *session) Products(ctx context.Context) (gateway.Collection[gateway.Product], error) {
	if err := s.call(ctx, "products", 0, nil); err != nil {
		return nil, err
	}
	return &collection[gateway.Product]{
		s:       s,
		models:  s.g.products,
		wrap:    func(n *Node) gateway.Product { return &product{object{n, s}} },
		added:   &s.g.productAdded,
		removed: &s.g.productRemoved,
	}, nil
}

func (s *session) Scenes(ctx context.Context) (gateway.Collection[gateway.Scene], error) {
	if err := s.call(ctx, "scenes", 0, nil); err != nil {
		return nil, err
	}
	return &collection[gateway.Scene]{
		s:       s,
		models:  s.g.scenes,
		wrap:    func(n *Node) gateway.Scene { return &scene{object{n, s}} },
		added:   &s.g.sceneAdded,
		removed: &s.g.sceneRemoved,
	}, nil
}

func (s *session) Groups(ctx context.Context) (gateway.Collection[gateway.Group], error) {
	if err := s.call(ctx, "groups", 0, nil); err != nil {
		return nil, err
	}
	return &collection[gateway.Group]{
		s:       s,
		models:  s.g.groups,
		wrap:    func(n *Node) gateway.Group { return &group{object{n, s}} },
		added:   &s.g.groupAdded,
		removed: &s.g.groupRemoved,
	}, nil
}

func (s *session) State(ctx context.Context) (gateway.State, error) {
	if err := s.call(ctx, "state", 0, nil); err != nil {
		return gateway.State{}, err
	}
	st := s.g.State()
	s.emit(gateway.FrameGetStateConfirm, 0)
	return st, nil
}

func (s *session) Versions(ctx context.Context) (gateway.Versions, error) {
	if err := s.call(ctx, "versions", 0, nil); err != nil {
		return gateway.Versions{}, err
	}
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	return s.g.versions, nil
}

func (s *session) EnableHouseStatusMonitor(ctx context.Context) error {
	return s.call(ctx, "enableHouseStatusMonitor", 0, nil)
}

func (s *session) SetUTCTime(ctx context.Context, now time.Time) error {
	return s.call(ctx, "setUTCTime", 0, now)
}

func (s *session) SetTimeZone(ctx context.Context, tz string) error {
	return s.call(ctx, "setTimeZone", 0, tz)
}

// Reboot confirms the request and drops the connection, as the gateway does
// when it restarts.
func (s *session) Reboot(ctx context.Context) error {
	if err := s.call(ctx, "reboot", 0, nil); err != nil {
		return err
	}
	s.emit(gateway.FrameRebootConfirm, 0)
	s.g.closeSession(s, nil)
	return nil
}

func (s *session) OnFrame(fn func(gateway.Frame)) *event.Subscription {
	return s.frames.Subscribe(fn)
}

func (s *session) Done() <-chan struct{} { return s.done }

func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *session) Logout(ctx context.Context) error {
	if s.isClosed() {
		return gateway.ErrConnection
	}
	s.g.closeSession(s, nil)
	return nil
}
