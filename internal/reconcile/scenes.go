package reconcile

import (
	"context"

	"github.com/nerrad567/klf200-bridge/internal/gateway"
	"github.com/nerrad567/klf200-bridge/internal/link"
	"github.com/nerrad567/klf200-bridge/internal/store"
	"github.com/nerrad567/klf200-bridge/internal/transcode"
)

// Scenes returns the store layout of the scene collection.
//
// run reports whether the scene is executing and starts it when set to true.
// stop stops a running scene and falls back to false otherwise. velocity is a
// parameter only: it is acknowledged as written and read when the scene runs.
func Scenes() Catalog[gateway.Scene] {
	type S = gateway.Scene

	return Catalog[S]{
		Namespace:   "scenes",
		Counter:     "scenesFound",
		CounterName: "Number of scenes found",
		Channel: func(sc S) store.ChannelMeta {
			return store.ChannelMeta{Name: sc.Name(), Role: "scene"}
		},
		Fields: []Field[S]{
			{ID: "productsCount", Kind: transcode.Raw, Value: sceneProductCount,
				Meta:  store.StateMeta{Role: "value", Read: true, Desc: "Number of products in the scene"},
				Links: func(env *link.Env, sc S, stateID string) []link.Link {
					return []link.Link{link.NewPushFunc(env, sc, gateway.PropProducts, func(ctx context.Context, raw any) {
						writeAck(ctx, env, stateID, count(raw))
					})}
				}},
			{ID: "products", Kind: transcode.JSON, Property: gateway.PropProducts,
				Meta: store.StateMeta{Role: "list", Read: true, Desc: "Products in the scene"}},
			{ID: "run", Kind: transcode.Bool,
				Value: func(sc S) (any, bool) { return sc.IsRunning(), true },
				Meta:  store.StateMeta{Role: "button.play", Read: true, Write: true, Desc: "Shows the running state of a scene. Set to true to run a scene."},
				Links: sceneRunLinks},
			{ID: "stop", Kind: transcode.Bool, Value: constant[S](false),
				Meta:  store.StateMeta{Role: "button.stop", Write: true, Desc: "Set to true to stop a running scene."},
				Links: sceneStopLinks},
			{ID: "velocity", Kind: velocityKind, Value: constant[S](0), KeepExisting: true,
				Meta:  store.StateMeta{Role: "value", Write: true, Def: 0, Desc: "Velocity of the scene."},
				Links: func(env *link.Env, _ S, stateID string) []link.Link {
					return []link.Link{link.NewEcho(env, stateID, velocityKind)}
				}},
		},
	}
}

func sceneProductCount(sc gateway.Scene) (any, bool) {
	raw, ok := sc.Property(gateway.PropProducts)
	if !ok {
		return 0, true
	}
	return count(raw), true
}

// sceneRunLinks mirrors IsRunning into run and handles run requests.
func sceneRunLinks(env *link.Env, sc gateway.Scene, stateID string) []link.Link {
	stopID := store.Join(store.Parent(stateID), "stop")
	velocityID := store.Join(store.Parent(stateID), "velocity")

	running := link.NewPushFunc(env, sc, gateway.PropIsRunning, func(ctx context.Context, raw any) {
		v, err := transcode.ToStore(transcode.Bool, raw)
		if err != nil {
			env.Log().Warn("dropping scene state", "state", stateID, "value", raw, "error", err)
			return
		}
		writeAck(ctx, env, stateID, v)
		if v == false {
			// A scene stopped through the stop state resets it.
			if st, ok, _ := env.Store.ReadState(ctx, stopID); !ok || st.Value != false || !st.Ack {
				writeAck(ctx, env, stopID, false)
			}
		}
	})

	run := link.NewPullFunc(env, stateID, func(ctx context.Context, c store.Change) {
		if b, err := transcode.ToDevice(transcode.Bool, c.State.Value); err != nil || b != true {
			return
		}
		writeAck(ctx, env, stateID, true)
		if sc.IsRunning() {
			return
		}

		velocity := 0
		if st, ok, err := env.Store.ReadState(ctx, velocityID); err == nil && ok {
			if v, err := transcode.ToDevice(velocityKind, st.Value); err == nil {
				velocity = v.(int)
			}
		}

		cctx, cancel := env.CommandContext()
		defer cancel()
		if err := sc.Run(cctx, velocity); err != nil {
			env.Log().Error("scene run failed", "scene", sc.ID(), "error", err)
		}
	})

	return []link.Link{running, run}
}

// sceneStopLinks handles stop requests.
func sceneStopLinks(env *link.Env, sc gateway.Scene, stateID string) []link.Link {
	return []link.Link{link.NewPullFunc(env, stateID, func(ctx context.Context, c store.Change) {
		if b, err := transcode.ToDevice(transcode.Bool, c.State.Value); err != nil || b != true {
			return
		}
		if !sc.IsRunning() {
			writeAck(ctx, env, stateID, false)
			return
		}
		writeAck(ctx, env, stateID, true)

		cctx, cancel := env.CommandContext()
		defer cancel()
		if err := sc.Stop(cctx); err != nil {
			env.Log().Error("scene stop failed", "scene", sc.ID(), "error", err)
		}
	})}
}

func writeAck(ctx context.Context, env *link.Env, stateID string, v any) {
	if err := link.Ack(ctx, env, stateID, v); err != nil {
		env.Log().Error("failed to write state", "state", stateID, "error", err)
	}
}

// count returns the length of a list-valued property.
func count(raw any) int {
	switch v := raw.(type) {
	case []gateway.SceneMember:
		return len(v)
	case []int:
		return len(v)
	case []any:
		return len(v)
	default:
		return 0
	}
}
