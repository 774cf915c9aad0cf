package simulator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/klf200-bridge/internal/gateway"
)

func login(t *testing.T, g *Gateway) gateway.Session {
	t.Helper()
	s, err := g.Login(context.Background(), "secret")
	require.NoError(t, err)
	return s
}

func TestLoginPassword(t *testing.T) {
	g := New(WithPassword("secret"))

	_, err := g.Login(context.Background(), "wrong")
	assert.ErrorIs(t, err, gateway.ErrAuth)

	s := login(t, g)
	assert.True(t, g.Connected())
	require.NoError(t, s.Logout(context.Background()))
	assert.False(t, g.Connected())
	assert.NoError(t, s.Err())
	assert.Equal(t, 2, g.Logins())
}

func TestQueuedLoginFailures(t *testing.T) {
	g := New()
	g.FailLogins(gateway.ErrConnection, gateway.ErrConnection)

	for i := 0; i < 2; i++ {
		_, err := g.Login(context.Background(), "x")
		assert.ErrorIs(t, err, gateway.ErrConnection)
	}
	_, err := g.Login(context.Background(), "x")
	assert.NoError(t, err)
}

func TestClosedSessionStopsNotifications(t *testing.T) {
	g := New()
	model := g.AddProduct(1, "Window", 4, 0.5)
	s := login(t, g)

	products, err := s.Products(context.Background())
	require.NoError(t, err)
	p, ok := products.Get(1)
	require.True(t, ok)

	var seen []gateway.PropertyChange
	p.OnPropertyChanged(func(c gateway.PropertyChange) { seen = append(seen, c) })

	model.Set(gateway.PropCurrentPosition, 0.6)
	require.Len(t, seen, 1)

	boom := errors.New("socket reset")
	g.CloseSession(boom)
	assert.ErrorIs(t, s.Err(), boom)
	<-s.Done()

	model.Set(gateway.PropCurrentPosition, 0.7)
	assert.Len(t, seen, 1)

	err = p.SetTargetPosition(context.Background(), 0.1)
	assert.ErrorIs(t, err, gateway.ErrConnection)
}

func TestProductCommandMovesModel(t *testing.T) {
	g := New()
	model := g.AddProduct(1, "Window", 4, 0)
	s := login(t, g)

	var frames []gateway.FrameKind
	s.OnFrame(func(f gateway.Frame) { frames = append(frames, f.Kind) })

	products, err := s.Products(context.Background())
	require.NoError(t, err)
	p, _ := products.Get(1)
	require.NoError(t, p.SetTargetPosition(context.Background(), 0.8))

	pos, _ := model.Get(gateway.PropCurrentPosition)
	assert.Equal(t, 0.8, pos)
	assert.Equal(t, []Call{{Op: OpProductSetTargetPosition, ID: 1, Arg: 0.8}}, g.CallsFor(OpProductSetTargetPosition))
	assert.Equal(t, []gateway.FrameKind{gateway.FrameCommandConfirm, gateway.FrameNodeStateNotification}, frames)
}

func TestFailCommands(t *testing.T) {
	g := New()
	g.AddProduct(1, "Window", 4, 0)
	s := login(t, g)
	products, err := s.Products(context.Background())
	require.NoError(t, err)
	p, _ := products.Get(1)

	g.FailCommands(errors.New("busy"))
	assert.ErrorIs(t, p.Wink(context.Background()), gateway.ErrCommand)

	g.FailCommands(nil)
	assert.NoError(t, p.Wink(context.Background()))
}

func TestCollectionEvents(t *testing.T) {
	g := New()
	s := login(t, g)
	groups, err := s.Groups(context.Background())
	require.NoError(t, err)

	var added, removed []int
	groups.OnAdded(func(id int) { added = append(added, id) })
	groups.OnRemoved(func(id int) { removed = append(removed, id) })

	g.AddGroup(3, "Upstairs")
	g.AddGroup(3, "Upstairs renamed")
	g.RemoveGroup(3)
	g.RemoveGroup(3)

	assert.Equal(t, []int{3, 3}, added)
	assert.Equal(t, []int{3}, removed)
}

func TestStateEmitsSelfConfirmation(t *testing.T) {
	g := New()
	g.SetState(2, 0x80)
	s := login(t, g)

	var frames []gateway.FrameKind
	s.OnFrame(func(f gateway.Frame) { frames = append(frames, f.Kind) })

	st, err := s.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gateway.State{GatewayState: 2, GatewaySubState: 0x80}, st)
	assert.Equal(t, []gateway.FrameKind{gateway.FrameGetStateConfirm}, frames)
}

func TestRebootClosesSession(t *testing.T) {
	g := New()
	s := login(t, g)

	require.NoError(t, s.Reboot(context.Background()))
	<-s.Done()
	assert.NoError(t, s.Err())
	assert.False(t, g.Connected())
}

func TestSceneRunAndFinish(t *testing.T) {
	g := New()
	p := g.AddProduct(1, "Window", 4, 0)
	g.AddScene(7, "Open", 1, 1)
	s := login(t, g)

	scenes, err := s.Scenes(context.Background())
	require.NoError(t, err)
	sc, _ := scenes.Get(7)

	require.NoError(t, sc.Run(context.Background(), 2))
	assert.True(t, sc.IsRunning())

	g.FinishScene(7)
	assert.False(t, sc.IsRunning())
	pos, _ := p.Get(gateway.PropCurrentPosition)
	assert.Equal(t, 1.0, pos)
}

func TestDriverRegistered(t *testing.T) {
	d, err := gateway.Open("simulator", gateway.DriverConfig{})
	require.NoError(t, err)
	s, err := d.Login(context.Background(), "any")
	require.NoError(t, err)
	products, err := s.Products(context.Background())
	require.NoError(t, err)
	assert.Len(t, products.All(), 3)
}
