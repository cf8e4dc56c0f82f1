// Package bridge manages the transient credential file that routes repository
// access through the rclone remote-filesystem bridge. The file embeds a
// transformed copy of the remote password, so it lives exactly as long as one
// job run and is removed on every exit path.
package bridge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// RemoteName is the rclone remote the transient config declares. The job's
// configured destination stays authoritative; the remote name is only the
// prefix routing through the bridge.
const RemoteName = "backup-bridge"

// Obscurer transforms a plaintext remote password into the bridge tool's
// obscured form. Injected so the fallback path is testable.
type Obscurer func(ctx context.Context, password string) (string, error)

// Tool invokes the rclone binary.
type Tool struct {
	Bin string
	Log zerolog.Logger
}

// Obscure runs `rclone obscure` once on the given password.
func (t *Tool) Obscure(ctx context.Context, password string) (string, error) {
	cmd := exec.CommandContext(ctx, t.Bin, "obscure", password)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("rclone obscure failed: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// CredentialFile is a transient rclone config declaring the bridge remote.
type CredentialFile struct {
	Path string
}

// Create writes the transient config file for one run. If obscuring the
// password fails the plaintext is embedded instead and the degradation is
// logged; the run still proceeds. Callers must defer Remove unconditionally.
func Create(ctx context.Context, user, password string, obscure Obscurer, log zerolog.Logger) (*CredentialFile, error) {
	pass := password
	obscured, err := obscure(ctx, password)
	if err != nil {
		log.Warn().Err(err).Msg("could not obscure bridge password, embedding plaintext")
	} else {
		pass = obscured
	}

	f, err := os.CreateTemp("", "backup-bridge-*.conf")
	if err != nil {
		return nil, fmt.Errorf("failed to create bridge credential file: %w", err)
	}
	content := fmt.Sprintf("[%s]\ntype = webdav\nuser = %s\npass = %s\n", RemoteName, user, pass)
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write bridge credential file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to close bridge credential file: %w", err)
	}
	return &CredentialFile{Path: f.Name()}, nil
}

// Env returns the environment variables pointing the tools at the file.
func (f *CredentialFile) Env() []string {
	return []string{"RCLONE_CONFIG=" + f.Path}
}

// Remove deletes the file. Safe to call on every exit path.
func (f *CredentialFile) Remove() error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Repository prefixes a destination so the backup tool reaches it through the
// bridge remote.
func Repository(destination string) string {
	return fmt.Sprintf("rclone:%s:%s", RemoteName, destination)
}
