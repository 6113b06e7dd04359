package process

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLogger captures debug calls.
type recordingLogger struct {
	msgs   []string
	fields []map[string]interface{}
}

func (l *recordingLogger) Debug(_ context.Context, msg string, fields map[string]interface{}) {
	l.msgs = append(l.msgs, msg)
	l.fields = append(l.fields, fields)
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRunner_Exec_CapturesOutput(t *testing.T) {
	requireShell(t)
	log := &recordingLogger{}
	r := NewRunner(log)

	res, err := r.Exec(context.Background(), "", "sh", "-c", "printf 'out\\000put'; printf err >&2")

	require.NoError(t, err)
	assert.Equal(t, "out\x00put", res.Stdout)
	assert.Equal(t, "err", res.Stderr)
	assert.Equal(t, 0, res.ExitCode)

	require.Len(t, log.msgs, 1)
	assert.Equal(t, 0, log.fields[0]["exit_code"])
	assert.Equal(t, 7, log.fields[0]["stdout_bytes"])
}

func TestRunner_Exec_NonZeroExit(t *testing.T) {
	requireShell(t)
	r := NewRunner(nil)

	res, err := r.Exec(context.Background(), "", "sh", "-c", "echo fatal >&2; exit 3")

	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "fatal\n", res.Stderr)
}

func TestRunner_Exec_WorkingDirectory(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	r := NewRunner(nil)

	res, err := r.Exec(context.Background(), dir, "sh", "-c", "pwd -P")

	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, want+"\n", res.Stdout)
}

func TestRunner_Exec_MissingBinary(t *testing.T) {
	r := NewRunner(nil)

	res, err := r.Exec(context.Background(), "", "gitparse-no-such-binary", "log")

	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "gitparse-no-such-binary log")
}

func TestRunner_Exec_Cancelled(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewRunner(nil).Exec(ctx, "", "sh", "-c", "sleep 5")

	require.Error(t, err)
}

func TestRunner_Exec_UsesCommandSeam(t *testing.T) {
	requireShell(t)
	orig := execCommand
	defer func() { execCommand = orig }()

	var gotName string
	var gotArgs []string
	execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotName, gotArgs = name, args
		return exec.CommandContext(ctx, "sh", "-c", "true")
	}

	_, err := NewRunner(nil).Exec(context.Background(), "", "git", "diff", "--name-status")

	require.NoError(t, err)
	assert.Equal(t, "git", gotName)
	assert.Equal(t, []string{"diff", "--name-status"}, gotArgs)
}
