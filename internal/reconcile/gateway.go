package reconcile

import (
	"context"

	"github.com/nerrad567/klf200-bridge/internal/gateway"
	"github.com/nerrad567/klf200-bridge/internal/link"
	"github.com/nerrad567/klf200-bridge/internal/store"
	"github.com/nerrad567/klf200-bridge/internal/transcode"
)

// Gateway channel state IDs.
const (
	GatewayChannel       = "gateway"
	StateProtocolVersion = "gateway.ProtocolVersion"
	StateSoftwareVersion = "gateway.SoftwareVersion"
	StateHardwareVersion = "gateway.HardwareVersion"
	StateProductGroup    = "gateway.ProductGroup"
	StateProductType     = "gateway.ProductType"
	StateGatewayState    = "gateway.GatewayState"
	StateGatewaySubState = "gateway.GatewaySubState"
	StateRebootGateway   = "gateway.RebootGateway"
)

var (
	gatewayStateKind = transcode.Enum("gatewayState", map[int]string{
		0: "TestMode",
		1: "GatewayMode_NoActuatorNodes",
		2: "GatewayMode_WithActuatorNodes",
		3: "BeaconMode_NotConfigured",
		4: "BeaconMode_Configured",
	})

	gatewaySubStateKind = transcode.Enum("gatewaySubState", map[int]string{
		0x00: "Idle",
		0x01: "RunningConfigurationService",
		0x02: "RunningSceneConfiguration",
		0x03: "RunningInformationServiceConfiguration",
		0x04: "RunningContactInputConfiguration",
		0x80: "RunningCommand",
		0x81: "RunningActivateGroup",
		0x82: "RunningActivateScene",
	})
)

// GatewaySession is the part of a session the gateway channel needs.
type GatewaySession interface {
	Versions(ctx context.Context) (gateway.Versions, error)
	Reboot(ctx context.Context) error
}

type gatewayState struct {
	id   string
	kind transcode.Kind
	meta store.StateMeta
}

var gatewayStates = []gatewayState{
	{StateProtocolVersion, transcode.Text, store.StateMeta{Name: "Protocol version", Role: "text", Read: true}},
	{StateSoftwareVersion, transcode.Text, store.StateMeta{Name: "Software version", Role: "text", Read: true}},
	{StateHardwareVersion, transcode.Byte, store.StateMeta{Name: "Hardware version", Role: "value", Read: true}},
	{StateProductGroup, transcode.Byte, store.StateMeta{Name: "Product group", Role: "value", Read: true}},
	{StateProductType, transcode.Byte, store.StateMeta{Name: "Product type", Role: "value", Read: true}},
	{StateGatewayState, gatewayStateKind, store.StateMeta{Name: "Gateway state", Role: "value", Read: true}},
	{StateGatewaySubState, gatewaySubStateKind, store.StateMeta{Name: "Gateway sub state", Role: "value", Read: true}},
	{StateRebootGateway, transcode.Bool, store.StateMeta{Name: "Reboot gateway", Role: "button", Write: true, Desc: "Set to true to reboot the gateway"}},
}

// BindGateway creates the gateway channel, writes the version information
// and binds the reboot button to sess.
func BindGateway(ctx context.Context, st Store, env *link.Env, sess GatewaySession) *link.Set {
	log := env.Log()
	set := link.NewSet()

	if err := st.EnsureChannel(ctx, GatewayChannel, store.ChannelMeta{Name: "Gateway", Role: "info"}); err != nil {
		log.Error("failed to ensure gateway channel", "error", err)
	}
	for _, s := range gatewayStates {
		meta := s.meta
		meta.Type = s.kind.ValueType()
		meta.States = s.kind.States()
		if err := st.EnsureState(ctx, s.id, meta); err != nil {
			log.Error("failed to ensure state", "state", s.id, "error", err)
		}
	}

	if v, err := sess.Versions(ctx); err != nil {
		log.Warn("failed to read gateway versions", "error", err)
	} else {
		writeKind(ctx, st, log, StateProtocolVersion, transcode.Text, v.ProtocolVersion)
		writeKind(ctx, st, log, StateSoftwareVersion, transcode.Text, v.Software)
		writeKind(ctx, st, log, StateHardwareVersion, transcode.Byte, v.Hardware)
		writeKind(ctx, st, log, StateProductGroup, transcode.Byte, v.ProductGroup)
		writeKind(ctx, st, log, StateProductType, transcode.Byte, v.ProductType)
	}
	writeKind(ctx, st, log, StateRebootGateway, transcode.Bool, false)

	if err := set.Add(ctx, link.NewMomentary(env, StateRebootGateway, sess.Reboot)); err != nil {
		log.Error("failed to bind link", "state", StateRebootGateway, "error", err)
	}
	return set
}

// WriteGatewayState stores a gateway state snapshot.
func WriteGatewayState(ctx context.Context, st link.Store, log link.Logger, s gateway.State) {
	writeKind(ctx, st, log, StateGatewayState, gatewayStateKind, s.GatewayState)
	writeKind(ctx, st, log, StateGatewaySubState, gatewaySubStateKind, s.GatewaySubState)
}

func writeKind(ctx context.Context, st link.Store, log link.Logger, id string, kind transcode.Kind, raw any) {
	v, err := transcode.ToStore(kind, raw)
	if err != nil {
		log.Warn("dropping gateway value", "state", id, "value", raw, "error", err)
		return
	}
	if err := st.WriteState(ctx, id, v, true); err != nil {
		log.Error("failed to write state", "state", id, "error", err)
	}
}
