package reconcile

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/klf200-bridge/internal/dispatch"
	"github.com/nerrad567/klf200-bridge/internal/gateway"
	"github.com/nerrad567/klf200-bridge/internal/gateway/simulator"
	"github.com/nerrad567/klf200-bridge/internal/link"
	"github.com/nerrad567/klf200-bridge/internal/store"
)

type fixture struct {
	t    *testing.T
	sim  *simulator.Gateway
	sess gateway.Session
	st   *store.Store
	q    *dispatch.Queue
	env  *link.Env
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sim := simulator.New()
	sess, err := sim.Login(context.Background(), "pw")
	require.NoError(t, err)

	q := dispatch.New(nil)
	t.Cleanup(q.Close)

	st := store.New()
	return &fixture{
		t:    t,
		sim:  sim,
		sess: sess,
		st:   st,
		q:    q,
		env:  &link.Env{Ctx: context.Background(), Store: st, Dispatcher: q},
	}
}

// settle lets handler cascades (command → notification → push) finish.
func (f *fixture) settle() {
	f.t.Helper()
	for i := 0; i < 4; i++ {
		require.NoError(f.t, f.q.Flush(context.Background()))
	}
}

func (f *fixture) value(id string) store.State {
	f.t.Helper()
	st, ok, err := f.st.ReadState(context.Background(), id)
	require.NoError(f.t, err)
	require.True(f.t, ok, "state %s has no value", id)
	return st
}

func (f *fixture) products() (gateway.Collection[gateway.Product], *Reconciler[gateway.Product]) {
	f.t.Helper()
	coll, err := f.sess.Products(context.Background())
	require.NoError(f.t, err)
	return coll, New(Products(), f.st, f.env)
}

// run executes fn on the queue, the way the bridge calls the reconciler.
func (f *fixture) run(fn func()) {
	f.t.Helper()
	require.NoError(f.t, f.q.Do(context.Background(), fn))
}

func TestReconcileWritesCurrentValues(t *testing.T) {
	f := newFixture(t)
	f.sim.AddProduct(1, "Kitchen", 4, 0.5)
	coll, r := f.products()

	f.run(func() { r.Reconcile(context.Background(), coll.All()) })

	pos := f.value("products.1.currentPosition")
	assert.Equal(t, 50, pos.Value)
	assert.True(t, pos.Ack)
	assert.Equal(t, 1, f.value("products.productsFound").Value)
	assert.Equal(t, "WindowOpener", mustLabel(t, f.st, "products.1.typeID"))
	assert.Equal(t, false, f.value("products.1.stop").Value)

	for _, field := range Products().Fields {
		assert.True(t, f.st.Exists("products.1."+field.ID), field.ID)
	}
	meta, _ := f.st.StateMeta("products.1.targetPosition")
	assert.Equal(t, "level.window", meta.Role)
	assert.True(t, meta.Write)
}

func mustLabel(t *testing.T, st *store.Store, id string) string {
	t.Helper()
	v, ok, err := st.ReadState(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)
	meta, _ := st.StateMeta(id)
	n, _ := v.Value.(int)
	return meta.States[strconv.Itoa(n)]
}

func TestReconcilePurgesStaleChannels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"products.7", "products.7.sub", "products.1"} {
		require.NoError(t, f.st.EnsureChannel(ctx, id, store.ChannelMeta{}))
	}
	require.NoError(t, f.st.EnsureState(ctx, "products.7.currentPosition", store.StateMeta{}))
	require.NoError(t, f.st.EnsureState(ctx, "products.7.sub.x", store.StateMeta{}))

	f.sim.AddProduct(1, "Kitchen", 4, 0.5)
	coll, r := f.products()
	f.run(func() { r.Reconcile(ctx, coll.All()) })

	assert.False(t, f.st.Exists("products.7"))
	assert.False(t, f.st.Exists("products.7.currentPosition"))
	assert.False(t, f.st.Exists("products.7.sub"))
	assert.False(t, f.st.Exists("products.7.sub.x"))
	assert.True(t, f.st.Exists("products.1.currentPosition"))

	channels, err := f.st.ListChannels(ctx, "products")
	require.NoError(t, err)
	assert.Equal(t, []string{"products.1"}, channels)
}

func TestExternalWriteCommandsProduct(t *testing.T) {
	f := newFixture(t)
	f.sim.AddProduct(1, "Kitchen", 4, 0)
	coll, r := f.products()
	f.run(func() { r.Reconcile(context.Background(), coll.All()) })

	require.NoError(t, f.st.WriteState(context.Background(), "products.1.targetPosition", 80, false))
	f.settle()

	calls := f.sim.CallsFor(simulator.OpProductSetTargetPosition)
	require.Len(t, calls, 1)
	assert.InDelta(t, 0.8, calls[0].Arg, 1e-9)

	target := f.value("products.1.targetPosition")
	assert.Equal(t, 80, target.Value)
	assert.True(t, target.Ack)
	assert.Equal(t, 80, f.value("products.1.currentPosition").Value)
}

func TestAcknowledgedWriteNeverCommands(t *testing.T) {
	f := newFixture(t)
	f.sim.AddProduct(1, "Kitchen", 4, 0)
	coll, r := f.products()
	f.run(func() { r.Reconcile(context.Background(), coll.All()) })

	require.NoError(t, f.st.WriteState(context.Background(), "products.1.targetPosition", 30, true))
	require.NoError(t, f.st.WriteState(context.Background(), "products.1.stop", false, false))
	f.settle()

	assert.Empty(t, f.sim.CallsFor(simulator.OpProductSetTargetPosition))
	assert.Empty(t, f.sim.CallsFor(simulator.OpProductStop))

	require.NoError(t, f.st.WriteState(context.Background(), "products.1.stop", true, false))
	f.settle()
	assert.Len(t, f.sim.CallsFor(simulator.OpProductStop), 1)
}

func TestPushFollowsDevice(t *testing.T) {
	f := newFixture(t)
	model := f.sim.AddProduct(1, "Kitchen", 4, 0)
	coll, r := f.products()
	f.run(func() { r.Reconcile(context.Background(), coll.All()) })

	model.Set(gateway.PropCurrentPosition, 0.25)
	model.Set(gateway.PropRunStatus, 2)
	f.settle()

	assert.Equal(t, 25, f.value("products.1.currentPosition").Value)
	assert.Equal(t, 2, f.value("products.1.runStatus").Value)
}

func TestAddOneReplacesLinks(t *testing.T) {
	f := newFixture(t)
	model := f.sim.AddProduct(1, "Kitchen", 4, 0)
	coll, r := f.products()
	f.run(func() {
		r.Reconcile(context.Background(), coll.All())
		p, _ := coll.Get(1)
		r.AddOne(context.Background(), p)
	})
	assert.Equal(t, 1, r.Bound())

	var writes int
	f.st.OnChange("products.1.currentPosition", func(store.Change) { writes++ })
	model.Set(gateway.PropCurrentPosition, 0.4)
	f.settle()

	assert.Equal(t, 1, writes, "re-binding must not duplicate push links")
}

func TestWatchAddsAndRemoves(t *testing.T) {
	f := newFixture(t)
	f.sim.AddProduct(1, "Kitchen", 4, 0)
	coll, r := f.products()
	f.run(func() { r.Reconcile(context.Background(), coll.All()) })
	watch := r.Watch(coll)

	f.sim.AddProduct(2, "Hall", 2, 1)
	f.settle()
	assert.Equal(t, 100, f.value("products.2.currentPosition").Value)
	assert.Equal(t, 2, f.value("products.productsFound").Value)

	f.sim.RemoveProduct(2)
	f.settle()
	assert.False(t, f.st.Exists("products.2"))
	assert.False(t, f.st.Exists("products.2.currentPosition"))
	assert.Equal(t, 1, f.value("products.productsFound").Value)

	watch.Dispose()
	f.sim.AddProduct(3, "Attic", 4, 0)
	f.settle()
	assert.False(t, f.st.Exists("products.3"))
}

func TestDisposeStopsAllLinks(t *testing.T) {
	f := newFixture(t)
	model := f.sim.AddProduct(1, "Kitchen", 4, 0)
	coll, r := f.products()
	f.run(func() { r.Reconcile(context.Background(), coll.All()) })

	f.run(r.Dispose)
	model.Set(gateway.PropCurrentPosition, 0.9)
	require.NoError(t, f.st.WriteState(context.Background(), "products.1.targetPosition", 10, false))
	f.settle()

	assert.Equal(t, 0, f.value("products.1.currentPosition").Value)
	assert.Empty(t, f.sim.CallsFor(simulator.OpProductSetTargetPosition))
	assert.Equal(t, 0, r.Bound())
}

func TestSceneRunAndStop(t *testing.T) {
	f := newFixture(t)
	f.sim.AddProduct(1, "Kitchen", 4, 0)
	f.sim.AddScene(5, "Air", 0.5, 1)
	coll, err := f.sess.Scenes(context.Background())
	require.NoError(t, err)
	r := New(Scenes(), f.st, f.env)
	f.run(func() { r.Reconcile(context.Background(), coll.All()) })
	ctx := context.Background()

	assert.Equal(t, 1, f.value("scenes.5.productsCount").Value)
	assert.Equal(t, false, f.value("scenes.5.run").Value)
	assert.Equal(t, 1, f.value("scenes.scenesFound").Value)

	// Stop while idle resets to false without a command.
	require.NoError(t, f.st.WriteState(ctx, "scenes.5.stop", true, false))
	f.settle()
	assert.Empty(t, f.sim.CallsFor(simulator.OpSceneStop))
	assert.Equal(t, false, f.value("scenes.5.stop").Value)

	require.NoError(t, f.st.WriteState(ctx, "scenes.5.velocity", 2, false))
	require.NoError(t, f.st.WriteState(ctx, "scenes.5.run", true, false))
	f.settle()
	runs := f.sim.CallsFor(simulator.OpSceneRun)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Arg)
	assert.Equal(t, true, f.value("scenes.5.run").Value)

	// Running already: acknowledged, not run again.
	require.NoError(t, f.st.WriteState(ctx, "scenes.5.run", true, false))
	f.settle()
	assert.Len(t, f.sim.CallsFor(simulator.OpSceneRun), 1)

	require.NoError(t, f.st.WriteState(ctx, "scenes.5.stop", true, false))
	f.settle()
	assert.Len(t, f.sim.CallsFor(simulator.OpSceneStop), 1)
	assert.Equal(t, false, f.value("scenes.5.run").Value)
	stop := f.value("scenes.5.stop")
	assert.Equal(t, false, stop.Value, "finished scene resets stop")
	assert.True(t, stop.Ack)
}

func TestSceneVelocityKeptAcrossPasses(t *testing.T) {
	f := newFixture(t)
	f.sim.AddScene(5, "Air", 0.5)
	coll, err := f.sess.Scenes(context.Background())
	require.NoError(t, err)
	r := New(Scenes(), f.st, f.env)
	f.run(func() { r.Reconcile(context.Background(), coll.All()) })

	require.NoError(t, f.st.WriteState(context.Background(), "scenes.5.velocity", 1, false))
	f.settle()
	f.run(func() { r.Reconcile(context.Background(), coll.All()) })

	assert.Equal(t, 1, f.value("scenes.5.velocity").Value)
}

func TestGroupTargetPosition(t *testing.T) {
	f := newFixture(t)
	f.sim.AddProduct(1, "A", 2, 0)
	f.sim.AddProduct(2, "B", 2, 0)
	f.sim.AddGroup(3, "Both", 1, 2)
	coll, err := f.sess.Groups(context.Background())
	require.NoError(t, err)
	r := New(Groups(), f.st, f.env)
	f.run(func() { r.Reconcile(context.Background(), coll.All()) })

	assert.Equal(t, 2, f.value("groups.3.productsCount").Value)
	assert.Equal(t, "[1,2]", f.value("groups.3.products").Value)

	require.NoError(t, f.st.WriteState(context.Background(), "groups.3.targetPosition", 40, false))
	f.settle()

	require.Len(t, f.sim.CallsFor(simulator.OpGroupSetTargetPosition), 1)
	for _, id := range []int{1, 2} {
		p, _ := f.sim.Product(id)
		pos, _ := p.Get(gateway.PropCurrentPosition)
		assert.InDelta(t, 0.4, pos, 1e-9)
	}
}

func TestBindGatewayAndReboot(t *testing.T) {
	f := newFixture(t)
	var set *link.Set
	f.run(func() { set = BindGateway(context.Background(), f.st, f.env, f.sess) })
	t.Cleanup(set.Dispose)

	assert.Equal(t, "3.14", f.value(StateProtocolVersion).Value)
	assert.Equal(t, "0.2.0.0.71.0", f.value(StateSoftwareVersion).Value)
	assert.Equal(t, 6, f.value(StateHardwareVersion).Value)
	assert.Equal(t, false, f.value(StateRebootGateway).Value)

	f.run(func() { WriteGatewayState(context.Background(), f.st, f.env.Log(), gateway.State{GatewayState: 2, GatewaySubState: 0x80}) })
	assert.Equal(t, 2, f.value(StateGatewayState).Value)
	assert.Equal(t, 0x80, f.value(StateGatewaySubState).Value)

	require.NoError(t, f.st.WriteState(context.Background(), StateRebootGateway, true, false))
	f.settle()
	assert.Len(t, f.sim.CallsFor("reboot"), 1)
	assert.False(t, f.sim.Connected())
}
