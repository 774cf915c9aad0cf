package refresh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/klf200-bridge/internal/dispatch"
	"github.com/nerrad567/klf200-bridge/internal/gateway"
	"github.com/nerrad567/klf200-bridge/internal/gateway/simulator"
	"github.com/nerrad567/klf200-bridge/internal/reconcile"
	"github.com/nerrad567/klf200-bridge/internal/store"
)

func TestSuppressed(t *testing.T) {
	tests := []struct {
		kind gateway.FrameKind
		want bool
	}{
		{gateway.FrameGetStateConfirm, true},
		{gateway.FrameRebootConfirm, true},
		{gateway.FrameNodeStateNotification, false},
		{gateway.FrameCommandConfirm, false},
		{gateway.FrameOther, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Suppressed(tt.kind))
		})
	}
}

type harness struct {
	sim  *simulator.Gateway
	sess gateway.Session
	st   *store.Store
	q    *dispatch.Queue
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	sim := simulator.New()
	sess, err := sim.Login(context.Background(), "")
	require.NoError(t, err)

	st := store.New()
	for _, id := range []string{reconcile.StateGatewayState, reconcile.StateGatewaySubState} {
		require.NoError(t, st.EnsureState(context.Background(), id, store.StateMeta{Type: store.TypeNumber}))
	}

	q := dispatch.New(nil)
	t.Cleanup(q.Close)
	return &harness{sim: sim, sess: sess, st: st, q: q}
}

func (h *harness) refresher(interval time.Duration) *Refresher {
	return New(Config{Source: h.sess, Store: h.st, Dispatcher: h.q, Interval: interval})
}

func (h *harness) flush(t *testing.T) {
	t.Helper()
	for i := 0; i < 3; i++ {
		require.NoError(t, h.q.Flush(context.Background()))
	}
}

func TestRefreshWritesState(t *testing.T) {
	h := newHarness(t)
	h.sim.SetState(2, 0x81)
	r := h.refresher(time.Hour)

	require.NoError(t, r.Refresh(context.Background()))

	st, ok, err := h.st.ReadState(context.Background(), reconcile.StateGatewayState)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, st.Value)
	assert.True(t, st.Ack)
	sub, _, _ := h.st.ReadState(context.Background(), reconcile.StateGatewaySubState)
	assert.Equal(t, 0x81, sub.Value)
}

func TestOwnConfirmationDoesNotCascade(t *testing.T) {
	h := newHarness(t)
	r := h.refresher(time.Hour)
	h.sess.OnFrame(r.HandleFrame)
	r.Start(context.Background())
	defer r.Stop()

	h.sim.EmitFrame(gateway.FrameNodeStateNotification)
	h.flush(t)

	assert.Len(t, h.sim.CallsFor("state"), 1, "the state confirmation must not trigger another refresh")

	h.sim.EmitFrame(gateway.FrameGetStateConfirm)
	h.sim.EmitFrame(gateway.FrameRebootConfirm)
	h.flush(t)
	assert.Len(t, h.sim.CallsFor("state"), 1)
}

func TestBurstCoalesces(t *testing.T) {
	h := newHarness(t)
	r := h.refresher(time.Hour)
	r.Start(context.Background())
	defer r.Stop()

	release := make(chan struct{})
	h.q.Post(func() { <-release })
	for i := 0; i < 5; i++ {
		r.HandleFrame(gateway.Frame{Kind: gateway.FrameNodeStateNotification})
	}
	close(release)
	h.flush(t)

	assert.Len(t, h.sim.CallsFor("state"), 1)
}

func TestTickerPolls(t *testing.T) {
	h := newHarness(t)
	r := h.refresher(10 * time.Millisecond)
	r.Start(context.Background())

	assert.Eventually(t, func() bool { return len(h.sim.CallsFor("state")) >= 2 }, time.Second, 5*time.Millisecond)

	r.Stop()
	r.Stop()
	h.flush(t)
	n := len(h.sim.CallsFor("state"))
	time.Sleep(50 * time.Millisecond)
	h.flush(t)
	assert.Equal(t, n, len(h.sim.CallsFor("state")), "no polls after Stop")
	assert.False(t, r.Running())
}

func TestNotStartedIgnoresFrames(t *testing.T) {
	h := newHarness(t)
	r := h.refresher(time.Hour)

	r.HandleFrame(gateway.Frame{Kind: gateway.FrameNodeStateNotification})
	h.flush(t)
	assert.Empty(t, h.sim.CallsFor("state"))

	r.Stop()
	r.Start(context.Background())
	assert.False(t, r.Running(), "Start after Stop does nothing")
}
