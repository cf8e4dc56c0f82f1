package restic

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a failed tool invocation from its captured stderr.
// The substring matching lives here, at the process boundary, so the rest of
// the control flow only ever switches on the kind.
type ErrorKind int

const (
	// KindToolFailure is the catch-all for any unrecognised non-zero exit.
	KindToolFailure ErrorKind = iota
	// KindDestinationFull means the backup destination has no space left.
	KindDestinationFull
	// KindRepositoryUninitialized means the repository has never been
	// initialised. Only the repository check consumes this kind.
	KindRepositoryUninitialized
)

func (k ErrorKind) String() string {
	switch k {
	case KindDestinationFull:
		return "destination full"
	case KindRepositoryUninitialized:
		return "repository uninitialized"
	default:
		return "tool failure"
	}
}

// Signals restic emits on stderr. The config-file message is matched verbatim,
// the space message case-insensitively, matching what the tool actually prints.
const (
	uninitializedSignal   = "unable to open config file"
	destinationFullSignal = "no space left on device"
)

// ToolError is a failed invocation of the external backup tool.
type ToolError struct {
	Kind     ErrorKind
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %q exited with code %d: %s",
		e.Kind, e.Command, e.ExitCode, strings.TrimSpace(e.Stderr))
}

func classifyStderr(stderr string) ErrorKind {
	if strings.Contains(stderr, uninitializedSignal) {
		return KindRepositoryUninitialized
	}
	if strings.Contains(strings.ToLower(stderr), destinationFullSignal) {
		return KindDestinationFull
	}
	return KindToolFailure
}
