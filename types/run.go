package types

import (
	"fmt"
	"time"
)

// RunStatus represents the harness's own verdict for one test case run,
// independent of whatever the runtime asserts internally.
type RunStatus string

const (
	RunStatusPass RunStatus = "pass"
	RunStatusFail RunStatus = "fail"
)

// FailReason classifies why a run failed.
type FailReason string

const (
	FailReasonNone           FailReason = ""
	FailReasonExitCode       FailReason = "exit_code"
	FailReasonErrorStream    FailReason = "error_stream"
	FailReasonTimeout        FailReason = "timeout"
	FailReasonBuildArtifacts FailReason = "build_failed" // Module build failed, case never ran
)

// RunRequest specifies one execution of a test case script in the external
// runtime. Env is merged over the inherited process environment.
type RunRequest struct {
	ScriptPath string
	LogPath    string
	Env        map[string]string
}

// RunOutcome is the harness verdict for one run. Message always references
// the log path so a human can inspect the full captured transcript.
type RunOutcome struct {
	Status   RunStatus
	Reason   FailReason
	ExitCode int
	LogPath  string
	Message  string
	Duration time.Duration
}

// Passed reports whether the run was classified as a pass.
func (o RunOutcome) Passed() bool {
	return o.Status == RunStatusPass
}

// FailMessage builds the human-readable failure text for a reason. The log
// path is always included so failures are never reported as a bare "failed".
func FailMessage(reason FailReason, exitCode int, logPath string) string {
	switch reason {
	case FailReasonExitCode:
		return fmt.Sprintf("process exited with code %d (see %s)", exitCode, logPath)
	case FailReasonErrorStream:
		return fmt.Sprintf("process wrote to its error stream (see %s)", logPath)
	case FailReasonTimeout:
		return fmt.Sprintf("process timed out and was killed (see %s)", logPath)
	case FailReasonBuildArtifacts:
		return fmt.Sprintf("module build failed (see %s)", logPath)
	default:
		return ""
	}
}
