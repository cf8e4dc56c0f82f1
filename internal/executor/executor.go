// Package executor runs one backup job end to end: repository check, one
// transfer per source, then retention. Every failure inside a run is caught
// here and converted to an Outcome; nothing propagates to the scheduler.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/rs/zerolog"

	"simplebackup/internal/bridge"
	"simplebackup/internal/config"
	"simplebackup/internal/errlog"
	"simplebackup/internal/notify"
	"simplebackup/internal/restic"
)

// Tool is the surface the executor needs from the external backup tool.
type Tool interface {
	Snapshots(ctx context.Context, repo restic.Repo) error
	Init(ctx context.Context, repo restic.Repo) error
	Backup(ctx context.Context, repo restic.Repo, req restic.BackupRequest) (restic.Summary, error)
	Forget(ctx context.Context, repo restic.Repo, keepFlags []string) error
}

// ErrorReport captures why a run failed, in enough detail for the error log.
type ErrorReport struct {
	Kind     restic.ErrorKind
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	// Message is set for failures that never reached the tool.
	Message string
}

func (r *ErrorReport) logMessage(jobname string) string {
	if r.Message != "" {
		return fmt.Sprintf("Unexpected error in backup job %s: %s", jobname, r.Message)
	}
	msg := fmt.Sprintf("Error in backup job %s:\nReturn code: %d\nCommand: %s\n", jobname, r.ExitCode, r.Command)
	if r.Stdout != "" {
		msg += fmt.Sprintf("stdout: %s\n", r.Stdout)
	}
	if r.Stderr != "" {
		msg += fmt.Sprintf("stderr: %s\n", r.Stderr)
	}
	return msg
}

// Outcome is the result of one run. It is consumed by the retry coordinator
// and the notification path, then discarded.
type Outcome struct {
	Success        bool
	FilesProcessed uint64
	BytesProcessed uint64
	Report         *ErrorReport
}

// Executor drives jobs. All collaborators are passed in explicitly; it keeps
// no per-job state between runs.
type Executor struct {
	Tool    Tool
	Obscure bridge.Obscurer
	Notify  notify.Notifier
	Errors  *errlog.Store
	Clock   clock.Clock
	Log     zerolog.Logger
}

// Run executes the job once: repository check, per-source transfers in
// definition order, then retention. Retention failure does not flip the
// outcome; the backup data is already safe and pruning is best-effort.
func (e *Executor) Run(ctx context.Context, job config.Job) (outcome Outcome) {
	runID := uuid.NewString()
	log := e.Log.With().Str("job", job.Name).Str("run", runID[:8]).Logger()
	log.Info().Msg("starting backup job")

	defer func() {
		if r := recover(); r != nil {
			outcome = e.fail(job, log, &ErrorReport{
				Kind:    restic.KindToolFailure,
				Message: fmt.Sprintf("panic: %v", r),
			})
		}
	}()

	repo := restic.Repo{Repository: job.Destination, Password: job.Password}
	if job.UseBridge {
		cred, err := bridge.Create(ctx, job.BridgeUser, job.BridgePassword, e.Obscure, log)
		if err != nil {
			return e.fail(job, log, reportFrom(err))
		}
		// the file embeds a credential: removed on every exit path
		defer func() {
			if err := cred.Remove(); err != nil {
				log.Warn().Err(err).Msg("failed to remove bridge credential file")
			}
		}()
		repo.Repository = bridge.Repository(job.Destination)
		repo.ExtraEnv = cred.Env()
	}

	if err := e.ensureRepository(ctx, repo, log); err != nil {
		return e.fail(job, log, reportFrom(err))
	}

	var totalFiles, totalBytes uint64
	for _, source := range job.Sources {
		log.Info().Str("source", source).Msg("backing up source")
		summary, err := e.Tool.Backup(ctx, repo, restic.BackupRequest{
			Source:          source,
			ExcludePatterns: job.ExcludePatterns,
			Compression:     job.Compression,
			OnProgress: func(s restic.ProgressSample) {
				log.Info().Str("source", source).Msg(s.String())
			},
		})
		if err != nil {
			// the tool is idempotent; sources already transferred stay put
			return e.fail(job, log, reportFrom(err))
		}
		totalFiles += summary.FilesProcessed
		totalBytes += summary.BytesProcessed
	}

	if err := e.Tool.Forget(ctx, repo, job.Retention.Flags()); err != nil {
		log.Error().Err(err).Msg("retention apply failed, backup data is intact")
		e.Errors.Write(job.Name, fmt.Sprintf("Retention apply failed for job %s: %v", job.Name, err))
	}

	log.Info().Uint64("files", totalFiles).Str("size", humanize.IBytes(totalBytes)).Msg("backup job completed")
	e.Notify.Notify("Backup Successful",
		fmt.Sprintf("Job %s: Backup completed successfully.\nTotal Files: %d, Total Size: %s",
			job.Name, totalFiles, humanize.IBytes(totalBytes)))

	return Outcome{Success: true, FilesProcessed: totalFiles, BytesProcessed: totalBytes}
}

// ensureRepository probes the repository and initialises it only when the
// probe failed specifically because it was never created. A healthy probe
// never issues init.
func (e *Executor) ensureRepository(ctx context.Context, repo restic.Repo, log zerolog.Logger) error {
	err := e.Tool.Snapshots(ctx, repo)
	if err == nil {
		log.Debug().Msg("using existing repository")
		return nil
	}
	var toolErr *restic.ToolError
	if errors.As(err, &toolErr) && toolErr.Kind == restic.KindRepositoryUninitialized {
		log.Info().Msg("initializing new repository")
		return e.Tool.Init(ctx, repo)
	}
	return err
}

func (e *Executor) fail(job config.Job, log zerolog.Logger, report *ErrorReport) Outcome {
	if report.Kind == restic.KindDestinationFull {
		e.Notify.Notify("Backup Destination Full",
			fmt.Sprintf("Job %s: Backup destination is full. Backup failed.", job.Name))
	}
	log.Error().Str("kind", report.Kind.String()).Msg("backup job failed")
	e.Errors.Write(job.Name, report.logMessage(job.Name))
	e.Notify.Notify("Backup Failed",
		fmt.Sprintf("Job %s: Backup failed. Check error logs for details.", job.Name))
	return Outcome{Success: false, Report: report}
}

func reportFrom(err error) *ErrorReport {
	var toolErr *restic.ToolError
	if errors.As(err, &toolErr) {
		return &ErrorReport{
			Kind:     toolErr.Kind,
			Command:  toolErr.Command,
			ExitCode: toolErr.ExitCode,
			Stdout:   toolErr.Stdout,
			Stderr:   toolErr.Stderr,
		}
	}
	return &ErrorReport{Kind: restic.KindToolFailure, ExitCode: -1, Message: err.Error()}
}
