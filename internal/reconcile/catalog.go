package reconcile

import (
	"context"
	"fmt"

	"github.com/nerrad567/klf200-bridge/internal/gateway"
	"github.com/nerrad567/klf200-bridge/internal/link"
	"github.com/nerrad567/klf200-bridge/internal/store"
	"github.com/nerrad567/klf200-bridge/internal/transcode"
)

// Field declares one state under an object channel.
type Field[T gateway.Object] struct {
	// ID is the last segment of the state ID.
	ID string

	// Kind converts between device and store values. Type, States, Min and
	// Max of Meta are derived from it when left empty.
	Kind transcode.Kind

	Meta store.StateMeta

	// Role overrides Meta.Role per object.
	Role func(obj T) string

	// Property is the device property mirrored into the state by a push
	// link. It also provides the initial value.
	Property string

	// Value overrides the initial value. ok=false leaves the state as is.
	Value func(obj T) (v any, ok bool)

	// KeepExisting writes the initial value only to a state that has no
	// value yet. Parameter states chosen by the user use it.
	KeepExisting bool

	// Links builds the state's further links (pull, momentary, echo or
	// custom push).
	Links func(env *link.Env, obj T, stateID string) []link.Link
}

// Catalog describes the store layout of one collection.
type Catalog[T gateway.Object] struct {
	// Namespace is the top-level channel, e.g. "products".
	Namespace string

	// Counter is the ID of the live object count state below Namespace,
	// e.g. "productsFound".
	Counter string

	// CounterName is the display name of the counter state.
	CounterName string

	// Channel returns the metadata of an object channel. The default uses
	// the object name.
	Channel func(obj T) store.ChannelMeta

	Fields []Field[T]
}

// stateMeta completes f.Meta from its kind.
func (f Field[T]) stateMeta(obj T) store.StateMeta {
	m := f.Meta
	if f.Role != nil {
		m.Role = f.Role(obj)
	}
	if m.Name == "" {
		m.Name = f.ID
	}
	if m.Type == "" {
		m.Type = f.Kind.ValueType()
	}
	if m.States == nil {
		m.States = f.Kind.States()
	}
	if m.Min == nil && m.Max == nil && m.Type == store.TypeNumber && m.States == nil {
		if lo, hi, ok := f.Kind.Bounds(); ok {
			m.Min, m.Max = store.Bounds(lo, hi)
		}
	}
	return m
}

// initial returns the value written when the object is bound.
func (f Field[T]) initial(obj T) (any, bool, error) {
	if f.Value != nil {
		v, ok := f.Value(obj)
		return v, ok, nil
	}
	if f.Property == "" {
		return nil, false, nil
	}
	raw, ok := obj.Property(f.Property)
	if !ok {
		return nil, false, nil
	}
	v, err := transcode.ToStore(f.Kind, raw)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// pull returns a Links func binding a command pull link.
func pull[T gateway.Object](kind transcode.Kind, cmd func(obj T) link.Command) func(*link.Env, T, string) []link.Link {
	return func(env *link.Env, obj T, stateID string) []link.Link {
		return []link.Link{link.NewPull(env, stateID, kind, cmd(obj))}
	}
}

// momentary returns a Links func binding a button state to action.
func momentary[T gateway.Object](action func(obj T) func(context.Context) error) func(*link.Env, T, string) []link.Link {
	return func(env *link.Env, obj T, stateID string) []link.Link {
		return []link.Link{link.NewMomentary(env, stateID, action(obj))}
	}
}

// intCommand adapts an integer setter to a link.Command.
func intCommand(set func(ctx context.Context, v int) error) link.Command {
	return func(ctx context.Context, v any) error {
		n, ok := v.(int)
		if !ok {
			return fmt.Errorf("%w: expected integer, got %T", transcode.ErrInvalidValue, v)
		}
		return set(ctx, n)
	}
}

// fractionCommand adapts a position setter to a link.Command.
func fractionCommand(set func(ctx context.Context, f float64) error) link.Command {
	return func(ctx context.Context, v any) error {
		f, ok := v.(float64)
		if !ok {
			return fmt.Errorf("%w: expected fraction, got %T", transcode.ErrInvalidValue, v)
		}
		return set(ctx, f)
	}
}

func constant[T gateway.Object](v any) func(T) (any, bool) {
	return func(T) (any, bool) { return v, true }
}
