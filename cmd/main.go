package main

import (
	"context"
	"errors"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/clock"

	"simplebackup/internal/bridge"
	"simplebackup/internal/config"
	"simplebackup/internal/errlog"
	"simplebackup/internal/executor"
	"simplebackup/internal/notify"
	"simplebackup/internal/restic"
	"simplebackup/internal/scheduler"
	"simplebackup/pkg/log"
)

func main() {
	backupOnStart := flag.Bool("backup-on-start", false, "run every job once before entering the schedule loop")
	flag.Parse()

	// Load config from the well-known path
	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}

	logger := log.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier := &notify.Desktop{Log: logger}
	errlogs := errlog.NewStore(cfg.ErrorLogDir, logger)
	rcloneTool := &bridge.Tool{Bin: cfg.Bin.Rclone, Log: logger}

	runner := &executor.Executor{
		Tool:    &restic.CLI{Bin: cfg.Bin.Restic, Log: logger},
		Obscure: rcloneTool.Obscure,
		Notify:  notifier,
		Errors:  errlogs,
		Clock:   clock.WallClock,
		Log:     logger,
	}

	// Clean up old error logs on startup
	errlogs.Cleanup(errlog.DefaultMaxAge)

	if *backupOnStart {
		logger.Info().Msg("performing backup on start")
		for _, job := range cfg.Jobs {
			runner.Run(ctx, job)
		}
	}

	sched := &scheduler.Scheduler{
		ConfigPath: config.DefaultPath,
		Load:       config.Load,
		Exec:       runner,
		Errors:     errlogs,
		Clock:      clock.WallClock,
		Log:        logger,
	}

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("scheduler stopped")
		os.Exit(1)
	}
	logger.Info().Msg("shutting down")
}
