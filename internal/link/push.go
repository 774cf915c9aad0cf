package link

import (
	"context"
	"errors"

	"github.com/nerrad567/klf200-bridge/internal/event"
	"github.com/nerrad567/klf200-bridge/internal/gateway"
	"github.com/nerrad567/klf200-bridge/internal/transcode"
)

// PushFunc handles a property change on the dispatcher. raw is the device
// value as notified.
type PushFunc func(ctx context.Context, raw any)

// Push copies one device property into one store state.
type Push struct {
	lifecycle

	env      *Env
	obj      gateway.Object
	property string
	stateID  string
	kind     transcode.Kind
	handle   PushFunc
}

// NewPush creates a push link writing property of obj to stateID as kind.
func NewPush(env *Env, obj gateway.Object, property, stateID string, kind transcode.Kind) *Push {
	p := &Push{env: env, obj: obj, property: property, stateID: stateID, kind: kind}
	p.handle = p.write
	return p
}

// NewPushFunc creates a push link that runs fn for every change of property
// instead of writing a state.
func NewPushFunc(env *Env, obj gateway.Object, property string, fn PushFunc) *Push {
	return &Push{env: env, obj: obj, property: property, handle: fn}
}

// Initialize subscribes to the object's property changes.
func (p *Push) Initialize(context.Context) error {
	return p.bind(func() *event.Subscription {
		return p.obj.OnPropertyChanged(func(c gateway.PropertyChange) {
			if c.Property != p.property {
				return
			}
			p.env.Dispatcher.Post(func() {
				if !p.active() {
					return
				}
				p.handle(p.env.ctx(), c.Value)
			})
		})
	})
}

func (p *Push) write(ctx context.Context, raw any) {
	log := p.env.Log()

	v, err := transcode.ToStore(p.kind, raw)
	if err != nil {
		log.Warn("dropping property update",
			"state", p.stateID, "property", p.property, "value", raw, "error", err)
		return
	}
	if err := p.env.Store.WriteState(ctx, p.stateID, v, true); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error("failed to write state", "state", p.stateID, "error", err)
	}
}
