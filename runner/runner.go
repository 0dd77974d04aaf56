// Package runner executes one built test case in the external script
// runtime and classifies the outcome from the exit code and captured error
// stream.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/scriptbridge/acceptor/logging"
	"github.com/scriptbridge/acceptor/types"
)

const (
	// GCInstrumentationFlag enables the runtime's garbage-collection
	// instrumentation hooks the test scripts rely on.
	GCInstrumentationFlag = "--expose-gc"

	// ModulePathEnvVar tells the launched script where the module under
	// test lives. The harness sets it and does not interpret it further.
	ModulePathEnvVar = "TEST_MODULE_PATH"

	// HostPathEnvVar optionally points the script at an alternate host
	// entry point.
	HostPathEnvVar = "TEST_HOST_PATH"

	// DefaultRuntimeBinary is the script runtime executable.
	DefaultRuntimeBinary = "node"
)

// Scanner buffer for very long output lines.
const maxLineBytes = 1024 * 1024

// ErrMissingArtifact indicates the script file to run does not exist: the
// build step did not produce what the runner expected. Distinct from a
// runtime-reported failure so diagnostics point at the right stage.
var ErrMissingArtifact = errors.New("missing artifact")

// Harness runs test case scripts. It holds no per-run state and is reusable
// across cases; a run failure is local to that case.
type Harness struct {
	runtimeBinary string
	timeout       time.Duration
	log           log.Logger
}

// Config holds configuration for creating a Harness.
type Config struct {
	RuntimeBinary string        // Script runtime executable; DefaultRuntimeBinary when empty
	Timeout       time.Duration // Per-run deadline; 0 means wait indefinitely
	Log           log.Logger
}

// NewHarness creates a Harness.
func NewHarness(cfg Config) *Harness {
	if cfg.RuntimeBinary == "" {
		cfg.RuntimeBinary = DefaultRuntimeBinary
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	return &Harness{
		runtimeBinary: cfg.RuntimeBinary,
		timeout:       cfg.Timeout,
		log:           cfg.Log,
	}
}

// Run spawns the runtime against req.ScriptPath, streams its output into the
// run log, waits for exit and classifies the result. A non-zero exit code is
// the authoritative failure signal; a clean exit that wrote a non-blank line
// to stderr still fails, since uncaught errors surface there even when the
// process exits cleanly.
func (h *Harness) Run(ctx context.Context, req types.RunRequest) (types.RunOutcome, error) {
	if _, err := os.Stat(req.ScriptPath); err != nil {
		return types.RunOutcome{}, fmt.Errorf("test script %s: %w", req.ScriptPath, ErrMissingArtifact)
	}

	sink, err := logging.NewRunLog(req.LogPath)
	if err != nil {
		return types.RunOutcome{}, err
	}
	defer func() {
		_ = sink.Close()
	}()

	runCtx := ctx
	var cancel context.CancelFunc
	if h.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, h.runtimeBinary, GCInstrumentationFlag, req.ScriptPath)
	cmd.Env = mergeEnv(os.Environ(), req.Env)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return types.RunOutcome{}, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return types.RunOutcome{}, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := sink.WriteHeader(req.Env, strings.Join(cmd.Args, " ")); err != nil {
		return types.RunOutcome{}, fmt.Errorf("failed to write log header: %w", err)
	}

	h.log.Info("Running test case", "script", req.ScriptPath, "log", req.LogPath)
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return types.RunOutcome{}, fmt.Errorf("failed to start runtime %s: %w", h.runtimeBinary, err)
	}

	// One reader per stream. Lines within a stream stay ordered; across the
	// two streams the interleaving is whatever the mutex admits.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdout, sink.AppendLine)
	}()
	go func() {
		defer wg.Done()
		scanLines(stderr, sink.AppendErrorLine)
	}()

	// Both readers must drain before the error-seen flag is read, otherwise
	// a late stderr line could be missed. A deadline-killed process can
	// leave orphaned children holding the pipes open, so the wait is bounded
	// by the run context: once it fires, cmd.Wait closes the harness's read
	// ends, which unblocks the readers.
	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-runCtx.Done():
	}
	waitErr := cmd.Wait()
	<-drained
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return h.failOutcome(types.FailReasonTimeout, -1, req.LogPath, duration), nil
	}

	exitCode := 0
	if waitErr != nil {
		exitErr := &exec.ExitError{}
		if !errors.As(waitErr, &exitErr) {
			return types.RunOutcome{}, fmt.Errorf("failed to run %s: %w", req.ScriptPath, waitErr)
		}
		exitCode = exitErr.ExitCode()
	}

	if exitCode != 0 {
		return h.failOutcome(types.FailReasonExitCode, exitCode, req.LogPath, duration), nil
	}
	if sink.ErrorSeen() {
		return h.failOutcome(types.FailReasonErrorStream, exitCode, req.LogPath, duration), nil
	}

	h.log.Debug("Test case passed", "script", req.ScriptPath, "duration", duration)
	return types.RunOutcome{
		Status:   types.RunStatusPass,
		LogPath:  req.LogPath,
		Duration: duration,
	}, nil
}

func (h *Harness) failOutcome(reason types.FailReason, exitCode int, logPath string, duration time.Duration) types.RunOutcome {
	msg := types.FailMessage(reason, exitCode, logPath)
	h.log.Warn("Test case failed", "reason", reason, "exitCode", exitCode, "log", logPath)
	return types.RunOutcome{
		Status:   types.RunStatusFail,
		Reason:   reason,
		ExitCode: exitCode,
		LogPath:  logPath,
		Message:  msg,
		Duration: duration,
	}
}

// scanLines feeds each line of r to appendLine until EOF. Append errors are
// dropped rather than interrupting the drain; the process exit status is
// what decides the run.
func scanLines(r io.Reader, appendLine func(string) error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		_ = appendLine(scanner.Text())
	}
	// A line beyond the buffer cap aborts the scan. Keep consuming so the
	// child never blocks writing into a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// mergeEnv overlays vars onto the inherited environment, overriding
// inherited values for the same name.
func mergeEnv(inherited []string, vars map[string]string) []string {
	if len(vars) == 0 {
		return inherited
	}
	merged := make([]string, 0, len(inherited)+len(vars))
	for _, kv := range inherited {
		name, _, ok := strings.Cut(kv, "=")
		if ok {
			if _, overridden := vars[name]; overridden {
				continue
			}
		}
		merged = append(merged, kv)
	}
	for k, v := range vars {
		merged = append(merged, k+"="+v)
	}
	return merged
}
