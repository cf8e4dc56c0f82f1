// Package errlog writes per-job, dated error log files and purges old ones.
// The files are the operator's forensic record: one file per failure, named
// after the job and the moment it was written.
package errlog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// DefaultMaxAge is how long error logs are kept before the housekeeping pass
// removes them.
const DefaultMaxAge = 60 * 24 * time.Hour

// Store appends error entries under a single directory.
type Store struct {
	Dir string
	Log zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewStore(dir string, log zerolog.Logger) *Store {
	return &Store{Dir: dir, Log: log, now: time.Now}
}

// Write records one error for the job in a fresh timestamped file. Errors
// writing the log are themselves only logged; the failure being recorded has
// already been handled.
func (s *Store) Write(jobname, message string) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		s.Log.Error().Err(err).Msg("failed to create error log directory")
		return
	}
	now := s.now()
	name := fmt.Sprintf("errorlog_%s_%s.log", jobname, now.Format("20060102_150405"))
	entry := fmt.Sprintf("%s - %s - ERROR - %s\n", now.Format(time.RFC3339), jobname, message)
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, []byte(entry), 0o644); err != nil {
		s.Log.Error().Err(err).Str("path", path).Msg("failed to write error log")
	}
}

// Cleanup removes log files older than maxAge. Run after every job cycle and
// once at startup.
func (s *Store) Cleanup(maxAge time.Duration) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.Log.Warn().Err(err).Msg("failed to read error log directory")
		}
		return
	}
	cutoff := s.now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.Dir, entry.Name())
			if err := os.Remove(path); err != nil {
				s.Log.Warn().Err(err).Str("path", path).Msg("failed to remove old error log")
				continue
			}
			s.Log.Info().Str("file", entry.Name()).Msg("removed old error log")
		}
	}
}
