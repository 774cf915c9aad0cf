package reconcile

import (
	"context"

	"github.com/nerrad567/klf200-bridge/internal/gateway"
	"github.com/nerrad567/klf200-bridge/internal/link"
	"github.com/nerrad567/klf200-bridge/internal/store"
	"github.com/nerrad567/klf200-bridge/internal/transcode"
)

// Products returns the store layout of the product collection.
func Products() Catalog[gateway.Product] {
	type P = gateway.Product
	level := func(p P) string { return levelRole(p.TypeID()) }
	ro := func(desc string) store.StateMeta {
		return store.StateMeta{Role: "value", Read: true, Desc: desc}
	}
	rw := func(desc string) store.StateMeta {
		return store.StateMeta{Role: "value", Read: true, Write: true, Desc: desc}
	}

	return Catalog[P]{
		Namespace:   "products",
		Counter:     "productsFound",
		CounterName: "Number of products found",
		Channel: func(p P) store.ChannelMeta {
			return store.ChannelMeta{Name: p.Name(), Role: channelRole(p.TypeID())}
		},
		Fields: []Field[P]{
			{ID: "category", Kind: transcode.Text, Property: gateway.PropCategory,
				Meta: store.StateMeta{Role: "text", Read: true, Desc: "Category"}},
			{ID: "currentPosition", Kind: transcode.Percent, Property: gateway.PropCurrentPosition, Role: level,
				Meta: store.StateMeta{Read: true, Unit: "%", Desc: "Current position"}},
			{ID: "currentPositionRaw", Kind: transcode.Raw, Property: gateway.PropCurrentPositionRaw,
				Meta: ro("Current position raw value")},
			{ID: "FP1CurrentPositionRaw", Kind: transcode.Raw, Property: gateway.PropFP1CurrentPositionRaw,
				Meta: ro("Functional parameter 1 raw value")},
			{ID: "FP2CurrentPositionRaw", Kind: transcode.Raw, Property: gateway.PropFP2CurrentPositionRaw,
				Meta: ro("Functional parameter 2 raw value")},
			{ID: "FP3CurrentPositionRaw", Kind: transcode.Raw, Property: gateway.PropFP3CurrentPositionRaw,
				Meta: ro("Functional parameter 3 raw value")},
			{ID: "FP4CurrentPositionRaw", Kind: transcode.Raw, Property: gateway.PropFP4CurrentPositionRaw,
				Meta: ro("Functional parameter 4 raw value")},
			{ID: "nodeVariation", Kind: nodeVariationKind, Property: gateway.PropNodeVariation,
				Meta:  rw("Node variation"),
				Links: pull(nodeVariationKind, func(p P) link.Command { return intCommand(p.SetNodeVariation) })},
			{ID: "order", Kind: transcode.Raw, Property: gateway.PropOrder,
				Meta:  rw("Custom sort order"),
				Links: pull(transcode.Raw, func(p P) link.Command { return intCommand(p.SetOrder) })},
			{ID: "placement", Kind: transcode.Byte, Property: gateway.PropPlacement,
				Meta:  rw("Placement (house = 0 or room number)"),
				Links: pull(transcode.Byte, func(p P) link.Command { return intCommand(p.SetPlacement) })},
			{ID: "powerSaveMode", Kind: powerSaveModeKind, Property: gateway.PropPowerSaveMode,
				Meta: ro("Power save mode")},
			{ID: "productType", Kind: transcode.Raw, Property: gateway.PropProductType,
				Meta: ro("Product type")},
			{ID: "remainingTime", Kind: transcode.Raw, Property: gateway.PropRemainingTime,
				Meta: store.StateMeta{Role: "value", Read: true, Unit: "s", Desc: "Remaining time of current operation"}},
			{ID: "runStatus", Kind: runStatusKind, Property: gateway.PropRunStatus,
				Meta: ro("Run status")},
			{ID: "serialNumber", Kind: transcode.HexBytes, Property: gateway.PropSerialNumber,
				Meta: store.StateMeta{Role: "text", Read: true, Desc: "Serial number"}},
			{ID: "state", Kind: nodeStateKind, Property: gateway.PropState,
				Meta: ro("Operating state")},
			{ID: "statusReply", Kind: statusReplyKind, Property: gateway.PropStatusReply,
				Meta: ro("Status reply")},
			{ID: "subType", Kind: subTypeKind, Property: gateway.PropSubType,
				Meta: ro("Product sub type")},
			{ID: "targetPosition", Kind: transcode.Percent, Property: gateway.PropTargetPosition, Role: level,
				Meta:  store.StateMeta{Read: true, Write: true, Unit: "%", Desc: "Target position"},
				Links: pull(transcode.Percent, func(p P) link.Command { return fractionCommand(p.SetTargetPosition) })},
			{ID: "targetPositionRaw", Kind: transcode.Raw, Property: gateway.PropTargetPositionRaw,
				Meta: ro("Target position raw value")},
			{ID: "timestamp", Kind: transcode.Timestamp, Property: gateway.PropTimeStamp,
				Meta: store.StateMeta{Role: "value.time", Read: true, Desc: "Timestamp of last known position"}},
			{ID: "typeID", Kind: typeIDKind, Property: gateway.PropTypeID,
				Meta: ro("Product type")},
			{ID: "velocity", Kind: velocityKind, Property: gateway.PropVelocity,
				Meta: ro("Velocity of the product")},
			{ID: "stop", Kind: transcode.Bool, Value: constant[P](false),
				Meta:  store.StateMeta{Role: "button.stop", Write: true, Desc: "Set to true to stop the current movement"},
				Links: momentary(func(p P) func(context.Context) error { return p.Stop })},
			{ID: "wink", Kind: transcode.Bool, Value: constant[P](false),
				Meta:  store.StateMeta{Role: "button", Write: true, Desc: "Set to true to let the product wink"},
				Links: momentary(func(p P) func(context.Context) error { return p.Wink })},
		},
	}
}
