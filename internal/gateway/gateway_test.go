package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopDialer struct{}

func (nopDialer) Login(context.Context, string) (Session, error) { return nil, ErrConnection }

func TestRegisterAndOpen(t *testing.T) {
	Register("test-nop", func(cfg DriverConfig) (Dialer, error) {
		assert.Equal(t, "10.0.0.5", cfg.Host)
		return nopDialer{}, nil
	})

	d, err := Open("test-nop", DriverConfig{Host: "10.0.0.5", Port: 51200})
	require.NoError(t, err)
	assert.IsType(t, nopDialer{}, d)
	assert.Contains(t, Drivers(), "test-nop")
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("does-not-exist", DriverConfig{})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("test-dup", func(DriverConfig) (Dialer, error) { return nopDialer{}, nil })
	assert.Panics(t, func() {
		Register("test-dup", func(DriverConfig) (Dialer, error) { return nopDialer{}, nil })
	})
}

func TestFrameKindString(t *testing.T) {
	assert.Equal(t, "get_state_cfm", FrameGetStateConfirm.String())
	assert.Equal(t, "reboot_cfm", FrameRebootConfirm.String())
	assert.Equal(t, "unknown", FrameKind(999).String())
}

func TestPositionConversion(t *testing.T) {
	assert.Equal(t, 0, FractionToRaw(0))
	assert.Equal(t, RawPositionMax, FractionToRaw(1))
	assert.Equal(t, 0x6400, FractionToRaw(0.5))

	f, ok := RawToFraction(0x6400)
	require.True(t, ok)
	assert.InDelta(t, 0.5, f, 1e-9)

	_, ok = RawToFraction(RawUnknown)
	assert.False(t, ok)
}
