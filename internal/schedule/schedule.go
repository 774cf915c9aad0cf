// Package schedule runs the automatic gateway reboot.
//
// The KLF-200 is known to degrade after long uptimes, so deployments usually
// restart it nightly. The job asks the watchdog for a reboot, which goes
// through the gateway's RebootGateway pull link; the session close that
// follows drives the normal reconnect.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nerrad567/klf200-bridge/internal/watchdog"
)

// DefaultJobTimeout bounds one reboot request.
const DefaultJobTimeout = 30 * time.Second

// Rebooter requests a gateway restart.
type Rebooter interface {
	Reboot(ctx context.Context) error
}

// Logger is the logging interface used by the scheduler.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config wires a Scheduler.
type Config struct {
	// Spec is a standard five-field cron expression or a descriptor such as
	// "@daily" or "@every 12h".
	Spec string

	Rebooter   Rebooter
	Location   *time.Location
	JobTimeout time.Duration
	Logger     Logger
}

// Scheduler triggers gateway reboots on a cron schedule.
type Scheduler struct {
	cfg      Config
	log      Logger
	schedule cron.Schedule
	cron     *cron.Cron

	mu   sync.Mutex
	runs int
}

// New parses cfg.Spec and prepares the scheduler. Start runs it.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Rebooter == nil {
		return nil, errors.New("schedule: rebooter is required")
	}
	sched, err := cron.ParseStandard(cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("schedule: parsing %q: %w", cfg.Spec, err)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}

	s := &Scheduler{cfg: cfg, log: cfg.Logger, schedule: sched}
	if s.log == nil {
		s.log = nopLogger{}
	}
	s.cron = cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cronLogger{s.log}),
		cron.WithChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})),
	)
	s.cron.Schedule(sched, cron.FuncJob(s.Run))
	return s, nil
}

// Start begins the schedule in its own goroutine.
func (s *Scheduler) Start() {
	s.log.Info("automatic reboot scheduled", "spec", s.cfg.Spec, "next", s.Next(time.Now()))
	s.cron.Start()
}

// Stop halts the schedule and waits for a running job, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the first activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.cfg.Location))
}

// Runs returns how many times the job has run.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// Run requests one reboot. A gateway that is not connected is skipped; the
// next activation tries again.
func (s *Scheduler) Run() {
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	switch err := s.cfg.Rebooter.Reboot(ctx); {
	case err == nil:
		s.log.Info("automatic gateway reboot requested")
	case errors.Is(err, watchdog.ErrNotConnected):
		s.log.Warn("automatic reboot skipped, gateway not connected")
	default:
		s.log.Error("automatic reboot failed", "error", err)
	}
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	log Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	// cron reports every wake and schedule at info level.
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
