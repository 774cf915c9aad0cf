package simulator

import (
	"context"
	"sort"
	"sync"

	"github.com/nerrad567/klf200-bridge/internal/event"
	"github.com/nerrad567/klf200-bridge/internal/gateway"
)

// registry holds the models of one object kind.
type registry struct {
	mu    sync.RWMutex
	nodes map[int]*Node
}

func newRegistry() *registry {
	return &registry{nodes: make(map[int]*Node)}
}

func (r *registry) list() []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (r *registry) get(id int) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	return n, ok
}

func (r *registry) put(n *Node) {
	r.mu.Lock()
	r.nodes[n.id] = n
	r.mu.Unlock()
}

func (r *registry) delete(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[id]; !ok {
		return false
	}
	delete(r.nodes, id)
	return true
}

// collection is a session view over a registry.
type collection[T gateway.Object] struct {
	s       *session
	models  *registry
	wrap    func(*Node) T
	added   *event.Source[int]
	removed *event.Source[int]
}

func (c *collection[T]) All() []T {
	nodes := c.models.list()
	out := make([]T, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, c.wrap(n))
	}
	return out
}

func (c *collection[T]) Get(id int) (T, bool) {
	n, ok := c.models.get(id)
	if !ok {
		var zero T
		return zero, false
	}
	return c.wrap(n), true
}

func (c *collection[T]) OnAdded(fn func(id int)) *event.Subscription {
	return c.s.track(c.added.Subscribe(c.gate(fn)))
}

func (c *collection[T]) OnRemoved(fn func(id int)) *event.Subscription {
	return c.s.track(c.removed.Subscribe(c.gate(fn)))
}

func (c *collection[T]) gate(fn func(int)) func(int) {
	return func(id int) {
		if !c.s.isClosed() {
			fn(id)
		}
	}
}

// object is the session view of a model node.
type object struct {
	n *Node
	s *session
}

func (o object) ID() int                          { return o.n.id }
func (o object) Name() string                     { return o.n.name() }
func (o object) Property(name string) (any, bool) { return o.n.Get(name) }

func (o object) OnPropertyChanged(fn func(gateway.PropertyChange)) *event.Subscription {
	return o.s.track(o.n.changed.Subscribe(func(c gateway.PropertyChange) {
		if !o.s.isClosed() {
			fn(c)
		}
	}))
}

type product struct{ object }

func (p *product) TypeID() int { return p.n.intProp(gateway.PropTypeID) }

func (p *product) SetTargetPosition(ctx context.Context, fraction float64) error {
	if err := p.s.call(ctx, OpProductSetTargetPosition, p.n.id, fraction); err != nil {
		return err
	}
	p.s.emit(gateway.FrameCommandConfirm, p.n.id)
	moveTo(p.n, fraction)
	p.s.emit(gateway.FrameNodeStateNotification, p.n.id)
	return nil
}

func (p *product) SetOrder(ctx context.Context, order int) error {
	return p.setProp(ctx, OpProductSetOrder, gateway.PropOrder, order)
}

func (p *product) SetPlacement(ctx context.Context, placement int) error {
	return p.setProp(ctx, OpProductSetPlacement, gateway.PropPlacement, placement)
}

func (p *product) SetNodeVariation(ctx context.Context, variation int) error {
	return p.setProp(ctx, OpProductSetNodeVariation, gateway.PropNodeVariation, variation)
}

func (p *product) setProp(ctx context.Context, op, prop string, v int) error {
	if err := p.s.call(ctx, op, p.n.id, v); err != nil {
		return err
	}
	p.n.Set(prop, v)
	p.s.emit(gateway.FrameNodeInformationNotification, p.n.id)
	return nil
}

func (p *product) Stop(ctx context.Context) error {
	if err := p.s.call(ctx, OpProductStop, p.n.id, nil); err != nil {
		return err
	}
	p.s.emit(gateway.FrameCommandConfirm, p.n.id)
	p.n.Set(gateway.PropRunStatus, 0)
	return nil
}

func (p *product) Wink(ctx context.Context) error {
	if err := p.s.call(ctx, OpProductWink, p.n.id, nil); err != nil {
		return err
	}
	p.s.emit(gateway.FrameCommandConfirm, p.n.id)
	return nil
}

type scene struct{ object }

func (sc *scene) IsRunning() bool {
	v, _ := sc.n.Get(gateway.PropIsRunning)
	running, _ := v.(bool)
	return running
}

func (sc *scene) Run(ctx context.Context, velocity int) error {
	if err := sc.s.call(ctx, OpSceneRun, sc.n.id, velocity); err != nil {
		return err
	}
	sc.s.emit(gateway.FrameCommandConfirm, sc.n.id)
	sc.n.Set(gateway.PropIsRunning, true)
	sc.s.g.scheduleSceneFinish(sc.n)
	return nil
}

func (sc *scene) Stop(ctx context.Context) error {
	if err := sc.s.call(ctx, OpSceneStop, sc.n.id, nil); err != nil {
		return err
	}
	sc.n.Set(gateway.PropIsRunning, false)
	sc.s.emit(gateway.FrameSessionFinishedNotification, sc.n.id)
	return nil
}

type group struct{ object }

func (gr *group) members() []*Node {
	v, _ := gr.n.Get(gateway.PropProducts)
	ids, _ := v.([]int)
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := gr.s.g.products.get(id); ok {
			out = append(out, n)
		}
	}
	return out
}

func (gr *group) SetTargetPosition(ctx context.Context, fraction float64, velocity int) error {
	if err := gr.s.call(ctx, OpGroupSetTargetPosition, gr.n.id, fraction); err != nil {
		return err
	}
	for _, m := range gr.members() {
		moveTo(m, fraction)
		gr.s.emit(gateway.FrameNodeStateNotification, m.id)
	}
	return nil
}

func (gr *group) SetOrder(ctx context.Context, order int) error {
	if err := gr.s.call(ctx, OpGroupSetOrder, gr.n.id, order); err != nil {
		return err
	}
	gr.n.Set(gateway.PropOrder, order)
	gr.s.emit(gateway.FrameGroupInformationNotification, gr.n.id)
	return nil
}

func (gr *group) SetPlacement(ctx context.Context, placement int) error {
	if err := gr.s.call(ctx, OpGroupSetPlacement, gr.n.id, placement); err != nil {
		return err
	}
	gr.n.Set(gateway.PropPlacement, placement)
	gr.s.emit(gateway.FrameGroupInformationNotification, gr.n.id)
	return nil
}

func (gr *group) Stop(ctx context.Context) error {
	if err := gr.s.call(ctx, OpGroupStop, gr.n.id, nil); err != nil {
		return err
	}
	for _, m := range gr.members() {
		m.Set(gateway.PropRunStatus, 0)
	}
	return nil
}

// moveTo completes a movement instantly.
func moveTo(n *Node, fraction float64) {
	raw := gateway.FractionToRaw(fraction)
	n.Set(gateway.PropTargetPosition, fraction)
	n.Set(gateway.PropTargetPositionRaw, raw)
	n.Set(gateway.PropCurrentPosition, fraction)
	n.Set(gateway.PropCurrentPositionRaw, raw)
	n.Set(gateway.PropRunStatus, 0)
	n.Set(gateway.PropState, 5)
}
