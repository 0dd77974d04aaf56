package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptbridge/acceptor/types"
)

// fakeRuntime writes a shell shim standing in for the script runtime: it
// drops the gc flag and executes the case script with sh, so test cases can
// be plain shell written into .js files.
func fakeRuntime(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-runtime")
	script := "#!/bin/sh\nshift\nexec /bin/sh \"$1\"\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newTestHarness(t *testing.T, timeout time.Duration) *Harness {
	t.Helper()
	return NewHarness(Config{
		RuntimeBinary: fakeRuntime(t),
		Timeout:       timeout,
		Log:           log.NewLogger(log.DiscardHandler()),
	})
}

func writeCase(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "case.js")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func logPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "run-case.log")
}

func TestRun_CleanExitPasses(t *testing.T) {
	h := newTestHarness(t, 0)
	outcome, err := h.Run(context.Background(), types.RunRequest{
		ScriptPath: writeCase(t, "echo all good\nexit 0\n"),
		LogPath:    logPath(t),
	})
	require.NoError(t, err)

	assert.True(t, outcome.Passed())
	assert.Equal(t, types.FailReasonNone, outcome.Reason)
	assert.Equal(t, 0, outcome.ExitCode)
}

func TestRun_StderrTextFailsCleanExit(t *testing.T) {
	h := newTestHarness(t, 0)
	lp := logPath(t)
	outcome, err := h.Run(context.Background(), types.RunRequest{
		ScriptPath: writeCase(t, "echo fine\necho 'Error: leaked handle' >&2\nexit 0\n"),
		LogPath:    lp,
	})
	require.NoError(t, err)

	assert.False(t, outcome.Passed())
	assert.Equal(t, types.FailReasonErrorStream, outcome.Reason)
	assert.Contains(t, outcome.Message, lp, "failure message must reference the log path")

	content, err := os.ReadFile(lp)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Error: leaked handle")
}

func TestRun_BlankStderrLinesStillPass(t *testing.T) {
	h := newTestHarness(t, 0)
	outcome, err := h.Run(context.Background(), types.RunRequest{
		ScriptPath: writeCase(t, "echo '' >&2\necho '   ' >&2\nexit 0\n"),
		LogPath:    logPath(t),
	})
	require.NoError(t, err)

	assert.True(t, outcome.Passed())
}

func TestRun_NonZeroExitFails(t *testing.T) {
	h := newTestHarness(t, 0)
	lp := logPath(t)
	outcome, err := h.Run(context.Background(), types.RunRequest{
		ScriptPath: writeCase(t, "exit 3\n"),
		LogPath:    lp,
	})
	require.NoError(t, err)

	assert.False(t, outcome.Passed())
	assert.Equal(t, types.FailReasonExitCode, outcome.Reason)
	assert.Equal(t, 3, outcome.ExitCode)
	assert.Contains(t, outcome.Message, "3")
	assert.Contains(t, outcome.Message, lp)
}

func TestRun_ExitCodeTakesPrecedenceOverStderr(t *testing.T) {
	h := newTestHarness(t, 0)
	outcome, err := h.Run(context.Background(), types.RunRequest{
		ScriptPath: writeCase(t, "echo 'Error: assertion failed' >&2\nexit 1\n"),
		LogPath:    logPath(t),
	})
	require.NoError(t, err)

	assert.False(t, outcome.Passed())
	assert.Equal(t, types.FailReasonExitCode, outcome.Reason, "exit code is the authoritative signal")
	assert.Equal(t, 1, outcome.ExitCode)
}

func TestRun_MissingScriptIsDistinctError(t *testing.T) {
	h := newTestHarness(t, 0)
	_, err := h.Run(context.Background(), types.RunRequest{
		ScriptPath: filepath.Join(t.TempDir(), "never-built.js"),
		LogPath:    logPath(t),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingArtifact)
}

func TestRun_EnvInjection(t *testing.T) {
	t.Setenv("ACCEPTOR_RUNNER_TEST_VAR", "inherited")

	h := newTestHarness(t, 0)
	lp := logPath(t)
	outcome, err := h.Run(context.Background(), types.RunRequest{
		ScriptPath: writeCase(t, "echo \"module=$TEST_MODULE_PATH\"\necho \"var=$ACCEPTOR_RUNNER_TEST_VAR\"\n"),
		LogPath:    lp,
		Env: map[string]string{
			ModulePathEnvVar:           "/out/objects.node",
			"ACCEPTOR_RUNNER_TEST_VAR": "overridden",
		},
	})
	require.NoError(t, err)
	require.True(t, outcome.Passed())

	content, err := os.ReadFile(lp)
	require.NoError(t, err)
	assert.Contains(t, string(content), "module=/out/objects.node")
	assert.Contains(t, string(content), "var=overridden", "request env must override inherited variables")
}

func TestRun_LogHeader(t *testing.T) {
	h := newTestHarness(t, 0)
	lp := logPath(t)
	script := writeCase(t, "exit 0\n")
	_, err := h.Run(context.Background(), types.RunRequest{
		ScriptPath: script,
		LogPath:    lp,
		Env:        map[string]string{ModulePathEnvVar: "/out/m.node"},
	})
	require.NoError(t, err)

	content, err := os.ReadFile(lp)
	require.NoError(t, err)

	// name=value lines, blank line, the command line, blank line
	assert.Contains(t, string(content), ModulePathEnvVar+"=/out/m.node\n\n")
	assert.Contains(t, string(content), GCInstrumentationFlag+" "+script+"\n\n")
}

func TestRun_TimeoutKillsProcess(t *testing.T) {
	h := newTestHarness(t, 200*time.Millisecond)
	lp := logPath(t)

	start := time.Now()
	outcome, err := h.Run(context.Background(), types.RunRequest{
		ScriptPath: writeCase(t, "sleep 30\n"),
		LogPath:    lp,
	})
	require.NoError(t, err)

	assert.False(t, outcome.Passed())
	assert.Equal(t, types.FailReasonTimeout, outcome.Reason)
	assert.Contains(t, outcome.Message, lp)
	assert.Less(t, time.Since(start), 10*time.Second, "a hung process must not block the harness")
}

func TestRun_OversizedLineDoesNotBlock(t *testing.T) {
	h := newTestHarness(t, 30*time.Second)

	// A 2MB line exceeds the scanner cap; the remainder of the stream must
	// still be consumed so the child never wedges on a full pipe.
	start := time.Now()
	outcome, err := h.Run(context.Background(), types.RunRequest{
		ScriptPath: writeCase(t, "head -c 2097152 /dev/zero | tr '\\0' 'a'\necho\nexit 0\n"),
		LogPath:    logPath(t),
	})
	require.NoError(t, err)

	assert.True(t, outcome.Passed())
	assert.Less(t, time.Since(start), 10*time.Second, "oversized output must not block the harness")
}

func TestRun_OrphanedChildHoldingPipesHitsDeadline(t *testing.T) {
	h := newTestHarness(t, 500*time.Millisecond)
	lp := logPath(t)

	// The background child inherits both pipes and outlives the script, so
	// the streams never reach EOF on their own.
	start := time.Now()
	outcome, err := h.Run(context.Background(), types.RunRequest{
		ScriptPath: writeCase(t, "sleep 30 &\necho started\nexit 0\n"),
		LogPath:    lp,
	})
	require.NoError(t, err)

	assert.False(t, outcome.Passed())
	assert.Equal(t, types.FailReasonTimeout, outcome.Reason)
	assert.Contains(t, outcome.Message, lp)
	assert.Less(t, time.Since(start), 10*time.Second, "held-open pipes must not block past the deadline")
}

func TestRun_HarnessReusableAcrossCases(t *testing.T) {
	h := newTestHarness(t, 0)

	failing, err := h.Run(context.Background(), types.RunRequest{
		ScriptPath: writeCase(t, "exit 1\n"),
		LogPath:    logPath(t),
	})
	require.NoError(t, err)
	assert.False(t, failing.Passed())

	passing, err := h.Run(context.Background(), types.RunRequest{
		ScriptPath: writeCase(t, "exit 0\n"),
		LogPath:    logPath(t),
	})
	require.NoError(t, err)
	assert.True(t, passing.Passed())
}

func TestMergeEnv(t *testing.T) {
	merged := mergeEnv(
		[]string{"A=1", "B=2", "PATH=/bin"},
		map[string]string{"B": "override", "C": "3"},
	)

	assert.ElementsMatch(t, []string{"A=1", "PATH=/bin", "B=override", "C=3"}, merged)
}

func TestMergeEnv_NoVars(t *testing.T) {
	inherited := []string{"A=1"}
	assert.Equal(t, inherited, mergeEnv(inherited, nil))
}
