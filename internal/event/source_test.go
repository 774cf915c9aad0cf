package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSource_DeliversInRegistrationOrder(t *testing.T) {
	var src Source[int]
	var got []string

	src.Subscribe(func(v int) { got = append(got, "a") })
	src.Subscribe(func(v int) { got = append(got, "b") })
	src.Subscribe(func(v int) { got = append(got, "c") })

	src.Emit(1)

	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestSubscription_UnsubscribeIsOneShot(t *testing.T) {
	var src Source[string]
	calls := 0

	first := src.Subscribe(func(string) { calls++ })
	second := src.Subscribe(func(string) { calls += 10 })
	assert.Equal(t, 2, src.Len())

	first.Unsubscribe()
	first.Unsubscribe()
	assert.Equal(t, 1, src.Len())

	src.Emit("x")
	assert.Equal(t, 10, calls)

	second.Unsubscribe()
	assert.Equal(t, 0, src.Len())
}

func TestSubscription_NilIsSafe(t *testing.T) {
	var sub *Subscription
	assert.NotPanics(t, sub.Unsubscribe)
}

func TestNewSubscription_ReleasesOnce(t *testing.T) {
	released := 0
	sub := NewSubscription(func() { released++ })

	sub.Unsubscribe()
	sub.Unsubscribe()

	assert.Equal(t, 1, released)
}
