package simulator

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/klf200-bridge/internal/event"
	"github.com/nerrad567/klf200-bridge/internal/gateway"
)

// Recorded operation names.
const (
	OpProductSetTargetPosition = "product.setTargetPosition"
	OpProductSetOrder          = "product.setOrder"
	OpProductSetPlacement      = "product.setPlacement"
	OpProductSetNodeVariation  = "product.setNodeVariation"
	OpProductStop              = "product.stop"
	OpProductWink              = "product.wink"
	OpSceneRun                 = "scene.run"
	OpSceneStop                = "scene.stop"
	OpGroupSetTargetPosition   = "group.setTargetPosition"
	OpGroupSetOrder            = "group.setOrder"
	OpGroupSetPlacement        = "group.setPlacement"
	OpGroupStop                = "group.stop"
)

// Call is one recorded session request.
type Call struct {
	Op  string
	ID  int
	Arg any
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithPassword makes Login reject every other password with gateway.ErrAuth.
// Without it any password is accepted.
func WithPassword(password string) Option {
	return func(g *Gateway) { g.password = password }
}

// WithSceneDuration makes started scenes finish on their own after d.
// With the default of zero a scene runs until FinishScene or Stop.
func WithSceneDuration(d time.Duration) Option {
	return func(g *Gateway) { g.sceneDuration = d }
}

// Gateway is the simulated device installation. It implements gateway.Dialer.
//
// Thread Safety: all methods are safe for concurrent use.
type Gateway struct {
	mu            sync.Mutex
	password      string
	sceneDuration time.Duration
	state         gateway.State
	versions      gateway.Versions
	loginErrs     []error
	commandErr    error
	logins        int
	calls         []Call
	current       *session

	products *registry
	scenes   *registry
	groups   *registry

	productAdded, productRemoved event.Source[int]
	sceneAdded, sceneRemoved     event.Source[int]
	groupAdded, groupRemoved     event.Source[int]
}

// New creates an empty installation.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		state: gateway.State{GatewayState: 2, GatewaySubState: 0x80},
		versions: gateway.Versions{
			Software:        "0.2.0.0.71.0",
			Hardware:        6,
			ProductGroup:    14,
			ProductType:     3,
			ProtocolVersion: "3.14",
		},
		products: newRegistry(),
		scenes:   newRegistry(),
		groups:   newRegistry(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Login opens a session. Queued failures from FailLogins are returned first.
func (g *Gateway) Login(ctx context.Context, password string) (gateway.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.logins++
	if len(g.loginErrs) > 0 {
		err := g.loginErrs[0]
		g.loginErrs = g.loginErrs[1:]
		return nil, err
	}
	if g.password != "" && password != g.password {
		return nil, fmt.Errorf("%w: wrong password", gateway.ErrAuth)
	}
	if g.current != nil && !g.current.isClosed() {
		return nil, fmt.Errorf("%w: a session is already open", gateway.ErrConnection)
	}

	g.current = newSession(g)
	return g.current, nil
}

// FailLogins queues errors returned by the next Login calls, in order.
func (g *Gateway) FailLogins(errs ...error) {
	g.mu.Lock()
	g.loginErrs = append(g.loginErrs, errs...)
	g.mu.Unlock()
}

// FailCommands makes every subsequent session request fail with err wrapped
// in gateway.ErrCommand. Pass nil to restore normal operation.
func (g *Gateway) FailCommands(err error) {
	g.mu.Lock()
	g.commandErr = err
	g.mu.Unlock()
}

// Logins returns the number of Login attempts so far.
func (g *Gateway) Logins() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.logins
}

// Connected reports whether a session is open.
func (g *Gateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current != nil && !g.current.isClosed()
}

// CloseSession drops the open session. A nil err simulates a clean close.
func (g *Gateway) CloseSession(err error) {
	g.mu.Lock()
	s := g.current
	g.mu.Unlock()
	if s != nil {
		g.closeSession(s, err)
	}
}

func (g *Gateway) closeSession(s *session, err error) {
	s.close(err)
}

// Calls returns a copy of the recorded requests.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.calls)
}

// CallsFor returns the recorded requests with the given operation name.
func (g *Gateway) CallsFor(op string) []Call {
	var out []Call
	for _, c := range g.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the recorded requests.
func (g *Gateway) ResetCalls() {
	g.mu.Lock()
	g.calls = nil
	g.mu.Unlock()
}

func (g *Gateway) record(c Call) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, c)
	if g.commandErr != nil {
		return fmt.Errorf("%w: %s: %w", gateway.ErrCommand, c.Op, g.commandErr)
	}
	return nil
}

// State returns the simulated gateway state.
func (g *Gateway) State() gateway.State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SetState changes the gateway state reported by the next State request.
func (g *Gateway) SetState(state, subState int) {
	g.mu.Lock()
	g.state = gateway.State{GatewayState: state, GatewaySubState: subState}
	g.mu.Unlock()
}

// EmitFrame delivers a frame of the given kind on the open session.
func (g *Gateway) EmitFrame(kind gateway.FrameKind) {
	g.mu.Lock()
	s := g.current
	g.mu.Unlock()
	if s != nil {
		s.emit(kind, 0)
	}
}

// AddProduct adds a product at the given position fraction and announces it.
func (g *Gateway) AddProduct(id int, name string, typeID int, position float64) *Node {
	raw := gateway.FractionToRaw(position)
	n := newNode(id, map[string]any{
		gateway.PropName:                  name,
		gateway.PropCategory:              "Window opener",
		gateway.PropTypeID:                typeID,
		gateway.PropSubType:               1,
		gateway.PropProductType:           typeID,
		gateway.PropCurrentPosition:       position,
		gateway.PropCurrentPositionRaw:    raw,
		gateway.PropTargetPosition:        position,
		gateway.PropTargetPositionRaw:     raw,
		gateway.PropFP1CurrentPositionRaw: gateway.RawUnknown,
		gateway.PropFP2CurrentPositionRaw: gateway.RawUnknown,
		gateway.PropFP3CurrentPositionRaw: gateway.RawUnknown,
		gateway.PropFP4CurrentPositionRaw: gateway.RawUnknown,
		gateway.PropNodeVariation:         0,
		gateway.PropOrder:                 id,
		gateway.PropPlacement:             0,
		gateway.PropPowerSaveMode:         0,
		gateway.PropRemainingTime:         0,
		gateway.PropRunStatus:             0,
		gateway.PropSerialNumber:          []byte{0x53, 0x0c, 0x1f, 0x00, 0x0a, 0x1d, byte(id >> 8), byte(id)},
		gateway.PropState:                 5,
		gateway.PropStatusReply:           1,
		gateway.PropTimeStamp:             time.Now().UTC().Truncate(time.Second),
		gateway.PropVelocity:              0,
	})
	g.products.put(n)
	g.productAdded.Emit(id)
	return n
}

// RemoveProduct deletes a product and announces the removal.
func (g *Gateway) RemoveProduct(id int) {
	if g.products.delete(id) {
		g.productRemoved.Emit(id)
	}
}

// AddScene adds a scene moving the given products to position fraction.
func (g *Gateway) AddScene(id int, name string, position float64, productIDs ...int) *Node {
	members := make([]gateway.SceneMember, 0, len(productIDs))
	for _, pid := range productIDs {
		members = append(members, gateway.SceneMember{NodeID: pid, ParameterValue: gateway.FractionToRaw(position)})
	}
	n := newNode(id, map[string]any{
		gateway.PropName:      name,
		gateway.PropIsRunning: false,
		gateway.PropProducts:  members,
	})
	g.scenes.put(n)
	g.sceneAdded.Emit(id)
	return n
}

// RemoveScene deletes a scene and announces the removal.
func (g *Gateway) RemoveScene(id int) {
	if g.scenes.delete(id) {
		g.sceneRemoved.Emit(id)
	}
}

// FinishScene ends a running scene: its products reach the stored position
// and the scene reports not running.
func (g *Gateway) FinishScene(id int) {
	n, ok := g.scenes.get(id)
	if !ok {
		return
	}
	v, _ := n.Get(gateway.PropProducts)
	members, _ := v.([]gateway.SceneMember)
	for _, m := range members {
		if p, ok := g.products.get(m.NodeID); ok {
			if f, ok := gateway.RawToFraction(m.ParameterValue); ok {
				moveTo(p, f)
			}
		}
	}
	n.Set(gateway.PropIsRunning, false)
}

func (g *Gateway) scheduleSceneFinish(n *Node) {
	g.mu.Lock()
	d := g.sceneDuration
	g.mu.Unlock()
	if d > 0 {
		time.AfterFunc(d, func() { g.FinishScene(n.id) })
	}
}

// AddGroup adds or replaces a group. Replacing an existing ID is announced
// as an addition, which is how the gateway reports changed groups.
func (g *Gateway) AddGroup(id int, name string, productIDs ...int) *Node {
	n := newNode(id, map[string]any{
		gateway.PropName:          name,
		gateway.PropGroupType:     0,
		gateway.PropNodeVariation: 0,
		gateway.PropOrder:         id,
		gateway.PropPlacement:     0,
		gateway.PropVelocity:      0,
		gateway.PropProducts:      slices.Clone(productIDs),
	})
	g.groups.put(n)
	g.groupAdded.Emit(id)
	return n
}

// RemoveGroup deletes a group and announces the removal.
func (g *Gateway) RemoveGroup(id int) {
	if g.groups.delete(id) {
		g.groupRemoved.Emit(id)
	}
}

// Product returns the model of a product.
func (g *Gateway) Product(id int) (*Node, bool) { return g.products.get(id) }

// Scene returns the model of a scene.
func (g *Gateway) Scene(id int) (*Node, bool) { return g.scenes.get(id) }

// Group returns the model of a group.
func (g *Gateway) Group(id int) (*Node, bool) { return g.groups.get(id) }

func init() {
	gateway.Register("simulator", func(gateway.DriverConfig) (gateway.Dialer, error) {
		return NewDemo(), nil
	})
}

// NewDemo returns a small installation used by the registered driver.
func NewDemo() *Gateway {
	g := New(WithSceneDuration(3 * time.Second))
	g.AddProduct(0, "Kitchen window", 4, 0)
	g.AddProduct(1, "Bedroom shutter", 2, 1)
	g.AddProduct(2, "Bathroom skylight", 4, 0.25)
	g.AddScene(0, "Ventilate", 0.5, 0, 2)
	g.AddScene(1, "Close all", 0, 0, 1, 2)
	g.AddGroup(0, "Ground floor", 0, 1)
	return g
}
