// Package log builds the daemon's operator logger.
package log

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"simplebackup/internal/config"
)

// New returns the operator logger described by cfg. An unknown level falls
// back to info.
func New(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(newWriter(cfg)).With().Timestamp().Logger().Level(level)
}

// newWriter picks the destination: the terminal for "stdout", otherwise a
// log file rotated in place.
func newWriter(cfg config.LogConfig) io.Writer {
	if strings.EqualFold(cfg.Path, "stdout") {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}
