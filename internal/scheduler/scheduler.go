// Package scheduler runs the daemon's main loop: reload the job definitions,
// pick the job due next, wait for its trigger, execute it, repeat. The loop
// only ends when the context is cancelled.
package scheduler

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"

	"simplebackup/internal/config"
	"simplebackup/internal/errlog"
	"simplebackup/internal/executor"
	"simplebackup/internal/schedule"
)

// IdlePoll is how long the loop waits before re-checking when there is
// nothing to schedule or the configuration cannot be read.
const IdlePoll = 60 * time.Second

// Runner executes one job, retries included.
type Runner interface {
	Execute(ctx context.Context, job config.Job) executor.Outcome
}

// Loader reloads the configuration. Called at the top of every cycle so
// edits take effect on the next scheduling decision, including edits made
// while a job was running.
type Loader func(path string) (*config.Config, error)

type Scheduler struct {
	ConfigPath string
	Load       Loader
	Exec       Runner
	Errors     *errlog.Store
	Clock      clock.Clock
	Log        zerolog.Logger
}

// Run loops forever until ctx is cancelled. No single job's failure, nor a
// broken config file, terminates the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cfg, err := s.Load(s.ConfigPath)
		if err != nil {
			s.Log.Error().Err(err).Msg("failed to reload configuration")
			if !s.wait(ctx, IdlePoll) {
				return ctx.Err()
			}
			continue
		}

		now := s.Clock.Now()
		job, at, ok := schedule.Pick(cfg.Jobs, now, func(j config.Job, err error) {
			s.Log.Error().Err(err).Str("job", j.Name).Msg("skipping job with invalid schedule this cycle")
		})
		if !ok {
			s.Log.Info().Dur("poll", IdlePoll).Msg("no jobs scheduled")
			if !s.wait(ctx, IdlePoll) {
				return ctx.Err()
			}
			continue
		}

		if !s.waitUntil(ctx, job.Name, at) {
			return ctx.Err()
		}

		s.Exec.Execute(ctx, job)
		s.Errors.Cleanup(errlog.DefaultMaxAge)
	}
}

// waitUntil sleeps until the trigger time. The clock is re-sampled here, so
// a trigger that has already elapsed (the previous cycle overran it)
// dispatches immediately with no extra delay.
func (s *Scheduler) waitUntil(ctx context.Context, jobName string, at time.Time) bool {
	wait := at.Sub(s.Clock.Now())
	if wait <= 0 {
		return true
	}
	s.Log.Info().Str("job", jobName).Time("at", at).Dur("wait", wait).Msg("waiting for next job")
	return s.wait(ctx, wait)
}

func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-s.Clock.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
