package bridge

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obscureAs(obscured string) Obscurer {
	return func(ctx context.Context, password string) (string, error) {
		return obscured, nil
	}
}

func obscureFailing() Obscurer {
	return func(ctx context.Context, password string) (string, error) {
		return "", errors.New("obscure tool missing")
	}
}

func TestCreate_WritesObscuredPassword(t *testing.T) {
	cred, err := Create(context.Background(), "alice", "s3cret", obscureAs("xQ9z"), zerolog.Nop())
	require.NoError(t, err)
	defer cred.Remove()

	content, err := os.ReadFile(cred.Path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "["+RemoteName+"]")
	assert.Contains(t, string(content), "type = webdav")
	assert.Contains(t, string(content), "user = alice")
	assert.Contains(t, string(content), "pass = xQ9z")
	assert.NotContains(t, string(content), "s3cret")
}

func TestCreate_FallsBackToPlaintext(t *testing.T) {
	// the documented degradation: a failed obscure call embeds the
	// plaintext password rather than failing the job
	cred, err := Create(context.Background(), "alice", "s3cret", obscureFailing(), zerolog.Nop())
	require.NoError(t, err)
	defer cred.Remove()

	content, err := os.ReadFile(cred.Path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "pass = s3cret")
}

func TestCredentialFile_Env(t *testing.T) {
	cred := &CredentialFile{Path: "/tmp/bridge.conf"}
	assert.Equal(t, []string{"RCLONE_CONFIG=/tmp/bridge.conf"}, cred.Env())
}

func TestCredentialFile_RemoveIsIdempotent(t *testing.T) {
	cred, err := Create(context.Background(), "alice", "s3cret", obscureAs("x"), zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, cred.Remove())
	_, err = os.Stat(cred.Path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, cred.Remove())
}

func TestRepository(t *testing.T) {
	assert.Equal(t, "rclone:backup-bridge:/backups/docs", Repository("/backups/docs"))
}
