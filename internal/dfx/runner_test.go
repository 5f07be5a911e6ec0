package dfx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExecRunner_CapturesStdout(t *testing.T) {
	r := NewExecRunner("echo", 0, discard())

	out, err := r.Run(context.Background(), Request{Args: []string{"hello"}})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out.Stdout)
	assert.Empty(t, out.Stderr)
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	r := NewExecRunner("sh", 0, discard())

	_, err := r.Run(context.Background(), Request{
		Args: []string{"-c", "echo oops >&2; exit 3"},
	})
	require.Error(t, err)

	var execErr *ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, execErr.Stderr, "oops")
	assert.Contains(t, execErr.Error(), "oops")
}

func TestExecRunner_Timeout(t *testing.T) {
	r := NewExecRunner("sleep", 100*time.Millisecond, discard())

	_, err := r.Run(context.Background(), Request{Args: []string{"10"}})
	require.Error(t, err)

	var execErr *ExecError
	require.True(t, errors.As(err, &execErr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecRunner_ExtraEnv(t *testing.T) {
	r := NewExecRunner("sh", 0, discard())

	out, err := r.Run(context.Background(), Request{
		Args: []string{"-c", "printf %s \"$PROBE_HOME\""},
		Env:  []string{"PROBE_HOME=/tmp/ident-alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ident-alice", out.Stdout)
}

func TestExecRunner_Available(t *testing.T) {
	require.NoError(t, NewExecRunner("sh", 0, discard()).Available())
	assert.Error(t, NewExecRunner("definitely-not-a-binary-xyz", 0, discard()).Available())
}
