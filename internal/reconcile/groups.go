package reconcile

import (
	"context"

	"github.com/nerrad567/klf200-bridge/internal/gateway"
	"github.com/nerrad567/klf200-bridge/internal/link"
	"github.com/nerrad567/klf200-bridge/internal/store"
	"github.com/nerrad567/klf200-bridge/internal/transcode"
)

// Groups returns the store layout of the group collection.
func Groups() Catalog[gateway.Group] {
	type G = gateway.Group

	return Catalog[G]{
		Namespace:   "groups",
		Counter:     "groupsFound",
		CounterName: "Number of groups found",
		Channel: func(g G) store.ChannelMeta {
			return store.ChannelMeta{Name: g.Name(), Role: "group"}
		},
		Fields: []Field[G]{
			{ID: "groupType", Kind: groupTypeKind, Property: gateway.PropGroupType,
				Meta: store.StateMeta{Role: "value", Read: true, Desc: "Group type"}},
			{ID: "nodeVariation", Kind: nodeVariationKind, Property: gateway.PropNodeVariation,
				Meta: store.StateMeta{Role: "value", Read: true, Desc: "Node variation"}},
			{ID: "order", Kind: transcode.Raw, Property: gateway.PropOrder,
				Meta:  store.StateMeta{Role: "value", Read: true, Write: true, Desc: "Custom sort order"},
				Links: pull(transcode.Raw, func(g G) link.Command { return intCommand(g.SetOrder) })},
			{ID: "placement", Kind: transcode.Byte, Property: gateway.PropPlacement,
				Meta:  store.StateMeta{Role: "value", Read: true, Write: true, Desc: "Placement (house = 0 or room number)"},
				Links: pull(transcode.Byte, func(g G) link.Command { return intCommand(g.SetPlacement) })},
			{ID: "velocity", Kind: velocityKind, Property: gateway.PropVelocity,
				Meta: store.StateMeta{Role: "value", Read: true, Desc: "Velocity of the group"}},
			{ID: "productsCount", Kind: transcode.Raw, Value: groupProductCount,
				Meta:  store.StateMeta{Role: "value", Read: true, Desc: "Number of products in the group"},
				Links: func(env *link.Env, g G, stateID string) []link.Link {
					return []link.Link{link.NewPushFunc(env, g, gateway.PropProducts, func(ctx context.Context, raw any) {
						writeAck(ctx, env, stateID, count(raw))
					})}
				}},
			{ID: "products", Kind: transcode.JSON, Property: gateway.PropProducts,
				Meta: store.StateMeta{Role: "list", Read: true, Desc: "Node IDs of the products in the group"}},
			{ID: "targetPosition", Kind: transcode.Percent,
				Meta:  store.StateMeta{Role: "level", Read: true, Write: true, Unit: "%", Desc: "Target position applied to every product of the group"},
				Links: func(env *link.Env, g G, stateID string) []link.Link {
					velocityID := store.Join(store.Parent(stateID), "velocity")
					cmd := fractionCommand(func(ctx context.Context, f float64) error {
						velocity := 0
						if st, ok, err := env.Store.ReadState(ctx, velocityID); err == nil && ok {
							if v, err := transcode.ToDevice(velocityKind, st.Value); err == nil {
								velocity = v.(int)
							}
						}
						return g.SetTargetPosition(ctx, f, velocity)
					})
					return []link.Link{link.NewPull(env, stateID, transcode.Percent, cmd)}
				}},
			{ID: "stop", Kind: transcode.Bool, Value: constant[G](false),
				Meta:  store.StateMeta{Role: "button.stop", Write: true, Desc: "Set to true to stop every product of the group"},
				Links: momentary(func(g G) func(context.Context) error { return g.Stop })},
		},
	}
}

func groupProductCount(g gateway.Group) (any, bool) {
	raw, ok := g.Property(gateway.PropProducts)
	if !ok {
		return 0, true
	}
	return count(raw), true
}
