package transcode

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var velocity = Enum("velocity", map[int]string{0: "Default", 1: "Silent", 2: "Fast", 255: "NotAvailable"})

func TestToStore_Percent(t *testing.T) {
	tests := []struct {
		raw  any
		want int
	}{
		{0.0, 0},
		{0.5, 50},
		{0.805, 81},
		{0.004, 0},
		{0.005, 1},
		{1.0, 100},
		{float32(0.25), 25},
	}

	for _, tt := range tests {
		got, err := ToStore(Percent, tt.raw)
		require.NoError(t, err, "raw=%v", tt.raw)
		assert.Equal(t, tt.want, got, "raw=%v", tt.raw)
	}
}

func TestToStore_PercentOutOfDomain(t *testing.T) {
	for _, raw := range []any{-0.01, 1.01, math.NaN(), "abc", []byte{1}} {
		_, err := ToStore(Percent, raw)
		assert.ErrorIs(t, err, ErrInvalidValue, "raw=%v", raw)
	}
}

func TestToDevice_Percent(t *testing.T) {
	got, err := ToDevice(Percent, 80)
	require.NoError(t, err)
	assert.InDelta(t, 0.80, got, 1e-9)

	got, err = ToDevice(Percent, "25")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, got, 1e-9)

	_, err = ToDevice(Percent, 101)
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = ToDevice(Percent, -1)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestPercent_RoundTripWithinTolerance(t *testing.T) {
	for i := 0; i <= 1000; i++ {
		v := float64(i) / 1000

		stored, err := ToStore(Percent, v)
		require.NoError(t, err)
		back, err := ToDevice(Percent, stored)
		require.NoError(t, err)

		assert.InDelta(t, v, back, 0.005+1e-9, "v=%v", v)
	}
}

func TestPercent_StoreRoundTripIsExact(t *testing.T) {
	for pct := 0; pct <= 100; pct++ {
		fraction, err := ToDevice(Percent, pct)
		require.NoError(t, err)
		again, err := ToStore(Percent, fraction)
		require.NoError(t, err)
		assert.Equal(t, pct, again)
	}
}

func TestInteger_Domain(t *testing.T) {
	got, err := ToStore(Raw, uint16(0xC800))
	require.NoError(t, err)
	assert.Equal(t, 0xC800, got)

	_, err = ToStore(Raw, 0x10000)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = ToDevice(Byte, 12.5)
	assert.ErrorIs(t, err, ErrInvalidValue)

	got, err = ToDevice(Byte, float64(7))
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestEnum_RestrictedToLabels(t *testing.T) {
	got, err := ToStore(velocity, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	_, err = ToStore(velocity, 3)
	assert.ErrorIs(t, err, ErrInvalidValue)

	got, err = ToDevice(velocity, "255")
	require.NoError(t, err)
	assert.Equal(t, 255, got)

	assert.Equal(t, map[string]string{"0": "Default", "1": "Silent", "2": "Fast", "255": "NotAvailable"}, velocity.States())

	lo, hi, ok := velocity.Bounds()
	assert.True(t, ok)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 255.0, hi)

	label, ok := velocity.Label(1)
	assert.True(t, ok)
	assert.Equal(t, "Silent", label)
}

func TestBoolAndText(t *testing.T) {
	got, err := ToDevice(Bool, "true")
	require.NoError(t, err)
	assert.Equal(t, true, got)

	_, err = ToDevice(Bool, "maybe")
	assert.ErrorIs(t, err, ErrInvalidValue)

	got, err = ToStore(Text, "Window")
	require.NoError(t, err)
	assert.Equal(t, "Window", got)
}

func TestTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	stored, err := ToStore(Timestamp, ts)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T12:30:00Z", stored)

	back, err := ToDevice(Timestamp, stored)
	require.NoError(t, err)
	assert.True(t, ts.Equal(back.(time.Time)))

	_, err = ToStore(Timestamp, 42)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestHexBytes(t *testing.T) {
	stored, err := ToStore(HexBytes, []byte{0x53, 0x0a, 0xff, 0x01})
	require.NoError(t, err)
	assert.Equal(t, "53:0a:ff:01", stored)

	back, err := ToDevice(HexBytes, stored)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x53, 0x0a, 0xff, 0x01}, back)
}

func TestJSON(t *testing.T) {
	stored, err := ToStore(JSON, []int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "[1,2,3]", stored)

	back, err := ToDevice(JSON, stored)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, back)
}

func TestValueType(t *testing.T) {
	assert.Equal(t, "number", Percent.ValueType())
	assert.Equal(t, "number", velocity.ValueType())
	assert.Equal(t, "boolean", Bool.ValueType())
	assert.Equal(t, "string", Timestamp.ValueType())
}
