// Package restic drives the external content-addressed backup tool as a
// subprocess. It builds the command lines, streams the JSON progress output
// of backup runs, and classifies failures from captured stderr.
package restic

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Repo identifies one repository for the external tool. The locator and
// passphrase travel via environment, matching the tool's contract.
type Repo struct {
	Repository string
	Password   string
	// ExtraEnv carries transport-specific variables, e.g. the bridge
	// credential file location for bridged repositories.
	ExtraEnv []string
}

func (r Repo) environ() []string {
	env := append(os.Environ(),
		"RESTIC_REPOSITORY="+r.Repository,
		"RESTIC_PASSWORD="+r.Password,
	)
	return append(env, r.ExtraEnv...)
}

// BackupRequest describes one source transfer.
type BackupRequest struct {
	Source          string
	ExcludePatterns []string
	Compression     string
	// OnProgress receives throttled progress samples. May be nil.
	OnProgress func(ProgressSample)
}

// CLI runs the restic binary. One value is shared by all jobs; it holds no
// per-run state.
type CLI struct {
	Bin string
	Log zerolog.Logger
}

// Snapshots probes the repository by listing its snapshots. A
// KindRepositoryUninitialized error means the repository was never created.
func (c *CLI) Snapshots(ctx context.Context, repo Repo) error {
	return c.run(ctx, repo, "-r", repo.Repository, "snapshots")
}

// Init creates the repository.
func (c *CLI) Init(ctx context.Context, repo Repo) error {
	return c.run(ctx, repo, "-r", repo.Repository, "init")
}

// Forget applies a retention policy and prunes unreferenced data.
func (c *CLI) Forget(ctx context.Context, repo Repo, keepFlags []string) error {
	args := append([]string{"-r", repo.Repository, "forget", "--prune"}, keepFlags...)
	return c.run(ctx, repo, args...)
}

// Backup transfers one source into the repository, consuming the tool's
// line-delimited JSON progress incrementally. Stdout is drained fully before
// the exit status is checked, so a full pipe can never deadlock the tool.
func (c *CLI) Backup(ctx context.Context, repo Repo, req BackupRequest) (Summary, error) {
	args := []string{"-r", repo.Repository, "backup", req.Source, "--json"}
	for _, pattern := range req.ExcludePatterns {
		args = append(args, "--exclude", pattern)
	}
	if req.Compression != "" {
		args = append(args, "--compression", req.Compression)
	}

	cmd := exec.CommandContext(ctx, c.Bin, args...)
	cmd.Env = repo.environ()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Summary{}, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Summary{}, fmt.Errorf("failed to start %s: %w", c.Bin, err)
	}

	diag := func(line string) {
		c.Log.Info().Str("source", req.Source).Msg(line)
	}
	summary, tail := consumeStream(stdout, req.OnProgress, diag)

	if err := cmd.Wait(); err != nil {
		return Summary{}, c.toolError(err, cmd, strings.Join(tail, "\n"), stderr.String())
	}
	return summary, nil
}

// run executes a non-streamed command, capturing both output channels.
func (c *CLI) run(ctx context.Context, repo Repo, args ...string) error {
	cmd := exec.CommandContext(ctx, c.Bin, args...)
	cmd.Env = repo.environ()

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return c.toolError(err, cmd, stdout.String(), stderr.String())
	}
	return nil
}

func (c *CLI) toolError(err error, cmd *exec.Cmd, stdout, stderr string) *ToolError {
	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	} else if stderr == "" {
		// the process never ran; surface the launch error instead
		stderr = err.Error()
	}
	return &ToolError{
		Kind:     classifyStderr(stderr),
		Command:  strings.Join(cmd.Args, " "),
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
	}
}

// tailLines bounds how much raw stdout a failure report carries.
const tailLines = 20

// consumeStream reads the backup progress stream to the end. Lines that do
// not decode as progress messages are the tool's plain diagnostics and go to
// diag verbatim instead of failing the run. It returns the totals (from the
// summary line when present, else the last status line) and a bounded tail of
// raw lines for failure reports.
func consumeStream(r io.Reader, onProgress func(ProgressSample), diag func(string)) (Summary, []string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		summary     Summary
		haveSummary bool
		lastStatus  message
		tail        []string
		thr         = newThrottle()
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tail = append(tail, line)
		if len(tail) > tailLines {
			tail = tail[1:]
		}

		var msg message
		if err := json.Unmarshal([]byte(line), &msg); err != nil || msg.MessageType == "" {
			diag(line)
			continue
		}
		switch msg.MessageType {
		case "status":
			lastStatus = msg
			if sample, ok := thr.advance(msg); ok && onProgress != nil {
				onProgress(sample)
			}
		case "summary":
			summary = Summary{
				FilesProcessed: msg.TotalFilesProcessed,
				BytesProcessed: msg.TotalBytesProcessed,
			}
			haveSummary = true
		}
	}
	if err := scanner.Err(); err != nil {
		// keep draining so the tool never blocks on a full stdout pipe
		diag(fmt.Sprintf("progress stream read error: %v", err))
		_, _ = io.Copy(io.Discard, r)
	}
	if !haveSummary {
		summary = Summary{
			FilesProcessed: lastStatus.TotalFiles,
			BytesProcessed: lastStatus.TotalBytes,
		}
	}
	return summary, tail
}
