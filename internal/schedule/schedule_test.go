package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/klf200-bridge/internal/watchdog"
)

type fakeRebooter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *fakeRebooter) Reboot(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline")
	}
	return r.err
}

func (r *fakeRebooter) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, msg)
}

func (l *recordingLogger) Info(msg string, _ ...any)  { l.add(msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add(msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.add(msg) }

func TestNewRejectsInvalidSpec(t *testing.T) {
	_, err := New(Config{Spec: "every night", Rebooter: &fakeRebooter{}})
	assert.Error(t, err)

	_, err = New(Config{Spec: "0 3 * * *"})
	assert.Error(t, err, "rebooter is required")
}

func TestNext(t *testing.T) {
	s, err := New(Config{Spec: "0 3 * * *", Rebooter: &fakeRebooter{}, Location: time.UTC})
	require.NoError(t, err)

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 20, 3, 0, 0, 0, time.UTC), s.Next(now))

	early := time.Date(2026, 10, 19, 2, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC), s.Next(early))
}

func TestRunOutcomes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"requested", nil, "automatic gateway reboot requested"},
		{"not connected", watchdog.ErrNotConnected, "automatic reboot skipped, gateway not connected"},
		{"failed", errors.New("store down"), "automatic reboot failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRebooter{err: tt.err}
			log := &recordingLogger{}
			s, err := New(Config{Spec: "@daily", Rebooter: r, Logger: log})
			require.NoError(t, err)

			s.Run()
			assert.Equal(t, 1, r.Calls())
			assert.Equal(t, 1, s.Runs())
			assert.Equal(t, []string{tt.want}, log.lines)
		})
	}
}

func TestScheduleFires(t *testing.T) {
	r := &fakeRebooter{}
	s, err := New(Config{Spec: "@every 1s", Rebooter: r})
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return r.Calls() >= 1 }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	calls := r.Calls()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, calls, r.Calls(), "no runs after Stop")
}
