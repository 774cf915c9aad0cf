package link

import (
	"context"
	"fmt"

	"github.com/nerrad567/klf200-bridge/internal/event"
	"github.com/nerrad567/klf200-bridge/internal/store"
	"github.com/nerrad567/klf200-bridge/internal/transcode"
)

// Command sends a device command. value is already in device encoding.
type Command func(ctx context.Context, value any) error

// PullFunc handles an unacknowledged write on the dispatcher. It owns
// acknowledgement and command dispatch.
type PullFunc func(ctx context.Context, c store.Change)

type pullMode int

const (
	pullCommand pullMode = iota
	pullMomentary
	pullEcho
	pullCustom
)

// Pull turns unacknowledged writes of one state into device commands.
type Pull struct {
	lifecycle

	env     *Env
	stateID string
	kind    transcode.Kind
	mode    pullMode
	command Command
	custom  PullFunc
}

// NewPull creates a pull link: unacknowledged writes to stateID are
// transcoded as kind, acknowledged and passed to cmd.
func NewPull(env *Env, stateID string, kind transcode.Kind, cmd Command) *Pull {
	return &Pull{env: env, stateID: stateID, kind: kind, mode: pullCommand, command: cmd}
}

// NewMomentary creates a pull link for a button-like boolean state. Only a
// write of true acknowledges and runs action.
func NewMomentary(env *Env, stateID string, action func(ctx context.Context) error) *Pull {
	return &Pull{
		env:     env,
		stateID: stateID,
		kind:    transcode.Bool,
		mode:    pullMomentary,
		command: func(ctx context.Context, _ any) error { return action(ctx) },
	}
}

// NewEcho creates a pull link that only acknowledges writes. It serves
// parameter states read by other handlers.
func NewEcho(env *Env, stateID string, kind transcode.Kind) *Pull {
	return &Pull{env: env, stateID: stateID, kind: kind, mode: pullEcho}
}

// NewPullFunc creates a pull link whose unacknowledged writes are handled
// entirely by fn.
func NewPullFunc(env *Env, stateID string, fn PullFunc) *Pull {
	return &Pull{env: env, stateID: stateID, mode: pullCustom, custom: fn}
}

// Initialize subscribes to external writes and checks for a write left
// pending from before the link existed. Such a write is reported but never
// turned into a command.
func (p *Pull) Initialize(ctx context.Context) error {
	if err := p.bind(func() *event.Subscription {
		return p.env.Store.SubscribeExternal(p.stateID, func(c store.Change) {
			p.env.Dispatcher.Post(func() {
				if !p.active() {
					return
				}
				p.handle(p.env.ctx(), c)
			})
		})
	}); err != nil {
		return err
	}

	st, ok, err := p.env.Store.ReadState(ctx, p.stateID)
	if err != nil {
		p.env.Log().Warn("reconciliation read failed", "state", p.stateID, "error", err)
		return nil
	}
	if ok && !st.Ack {
		p.env.Log().Info("ignoring pending write from before bind", "state", p.stateID, "value", st.Value)
	}
	return nil
}

func (p *Pull) handle(ctx context.Context, c store.Change) {
	if c.State.Ack {
		return
	}
	if p.mode == pullCustom {
		p.custom(ctx, c)
		return
	}

	log := p.env.Log()

	dv, err := transcode.ToDevice(p.kind, c.State.Value)
	if err != nil {
		log.Warn("dropping invalid write", "state", p.stateID, "value", c.State.Value, "error", err)
		return
	}
	if p.mode == pullMomentary && dv != true {
		return
	}

	ack, err := transcode.ToStore(p.kind, dv)
	if err != nil {
		ack = c.State.Value
	}
	if err := p.env.Store.WriteState(ctx, p.stateID, ack, true); err != nil {
		log.Error("failed to acknowledge write", "state", p.stateID, "error", err)
	}
	if p.mode == pullEcho {
		return
	}

	cctx, cancel := p.env.CommandContext()
	defer cancel()
	if err := p.command(cctx, dv); err != nil {
		log.Error("command failed", "state", p.stateID, "value", c.State.Value, "error", err)
		return
	}
	log.Debug("command sent", "state", p.stateID, "value", c.State.Value)
}

// Ack acknowledges value on stateID. Custom pull handlers use it for their
// confirmation step.
func Ack(ctx context.Context, env *Env, stateID string, value any) error {
	if err := env.Store.WriteState(ctx, stateID, value, true); err != nil {
		return fmt.Errorf("acknowledging %s: %w", stateID, err)
	}
	return nil
}
