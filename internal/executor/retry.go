package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/retry"

	"simplebackup/internal/config"
)

// retryIntervals is the escalating wait before each re-attempt of a failed
// job. After the last interval the job is left to its next cron trigger.
var retryIntervals = []time.Duration{
	1 * time.Minute,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
	20 * time.Minute,
	30 * time.Minute,
	60 * time.Minute,
}

var errRunFailed = errors.New("backup run failed")

// Execute runs the job and, on failure, re-attempts it on the escalating
// interval schedule. It returns the outcome of the last attempt. The waits go
// through the injected clock and are interrupted by ctx, so shutdown never
// hangs on a pending retry.
func (e *Executor) Execute(ctx context.Context, job config.Job) Outcome {
	var last Outcome
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			last = e.Run(ctx, job)
			if !last.Success {
				return errRunFailed
			}
			return nil
		},
		NotifyFunc: func(_ error, attempt int) {
			if attempt <= len(retryIntervals) {
				e.Log.Info().
					Str("job", job.Name).
					Int("attempt", attempt).
					Dur("wait", retryIntervals[attempt-1]).
					Msg("backup failed, retrying after backoff")
			}
		},
		Attempts: len(retryIntervals) + 1,
		Delay:    retryIntervals[0],
		BackoffFunc: func(_ time.Duration, attempt int) time.Duration {
			i := attempt - 1
			if i >= len(retryIntervals) {
				i = len(retryIntervals) - 1
			}
			return retryIntervals[i]
		},
		Clock: e.Clock,
		Stop:  ctx.Done(),
	})
	switch {
	case err == nil:
	case retry.IsRetryStopped(err):
		e.Log.Info().Str("job", job.Name).Msg("retry interrupted by shutdown")
	default:
		msg := fmt.Sprintf("Job %s: All backup retries failed.", job.Name)
		e.Log.Error().Str("job", job.Name).Msg("all backup retries failed")
		e.Errors.Write(job.Name, msg)
		e.Notify.Notify("Backup Retries Exhausted", msg+" Check error logs for details.")
	}
	return last
}
