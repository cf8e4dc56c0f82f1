// Package schedule decides which backup job runs next. It evaluates the
// standard five-field cron expressions on the job definitions and picks the
// job with the earliest trigger time.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"simplebackup/internal/config"
)

// parser accepts the standard five fields: minute, hour, day-of-month, month,
// day-of-week, with *, ranges, steps and lists.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextTrigger returns the first time strictly after ref at which expr fires.
func NextTrigger(expr string, ref time.Time) (time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule expression %q: %w", expr, err)
	}
	next := sched.Next(ref)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("schedule expression %q never fires", expr)
	}
	return next, nil
}

// Pick selects the job with the minimal next trigger time after now. Ties
// resolve to the first job in definition order, so selection is deterministic.
// Jobs whose expression does not parse are reported through skipped and left
// out for this cycle only; they are re-evaluated on the next reload.
// The second return is the trigger time; ok is false when no job is runnable.
func Pick(jobs []config.Job, now time.Time, skipped func(job config.Job, err error)) (config.Job, time.Time, bool) {
	var (
		best    config.Job
		bestAt  time.Time
		haveAny bool
	)
	for _, job := range jobs {
		at, err := NextTrigger(job.Interval, now)
		if err != nil {
			if skipped != nil {
				skipped(job, err)
			}
			continue
		}
		if !haveAny || at.Before(bestAt) {
			best = job
			bestAt = at
			haveAny = true
		}
	}
	return best, bestAt, haveAny
}
