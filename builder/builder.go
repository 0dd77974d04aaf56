// Package builder drives the external build toolchain for one module at a
// time and extracts a single named output value per build.
package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/scriptbridge/acceptor/types"
)

// Builder invokes the external build toolchain. A build failure is local to
// one module; the builder stays reusable for the next one.
type Builder struct {
	locator *Locator
	log     log.Logger
}

// Config holds configuration for creating a Builder.
type Config struct {
	Locator *Locator
	Log     log.Logger
}

// New creates a Builder.
func New(cfg Config) (*Builder, error) {
	if cfg.Locator == nil {
		return nil, fmt.Errorf("locator is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	return &Builder{locator: cfg.Locator, log: cfg.Log}, nil
}

// Build runs the toolchain against req.ProjectPath with the given targets
// and property overrides, writing the toolchain log to req.LogPath. On
// toolchain-reported failure the outcome is unsuccessful and carries the log
// path; the caller treats that as fatal for the module's test cases. On
// success ReturnValue holds the requested output property, empty when the
// build produced no value for it.
func (b *Builder) Build(ctx context.Context, req types.BuildRequest) (types.BuildOutcome, error) {
	if req.ProjectPath == "" {
		return types.BuildOutcome{}, fmt.Errorf("project path is required")
	}
	if req.LogPath == "" {
		return types.BuildOutcome{}, fmt.Errorf("log path is required")
	}
	if len(req.Targets) == 0 {
		return types.BuildOutcome{}, fmt.Errorf("at least one build target is required")
	}

	toolPath, err := b.locator.ToolPath()
	if err != nil {
		return types.BuildOutcome{}, err
	}

	if err := os.MkdirAll(filepath.Dir(req.LogPath), 0o755); err != nil {
		return types.BuildOutcome{}, fmt.Errorf("failed to create log directory: %w", err)
	}

	args := b.buildArgs(req)
	b.log.Info("Running build", "project", req.ProjectPath, "targets", strings.Join(req.Targets, ";"), "log", req.LogPath)
	b.log.Debug("Build command", "tool", toolPath, "args", strings.Join(args, " "))

	// One command per call; nothing is shared between builds.
	cmd := exec.CommandContext(ctx, toolPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	// The toolchain owns the log file, but when it rejects the invocation
	// before opening it the captured output is all there is. Persist it so
	// a failed build always leaves an inspectable log.
	ensureLogWritten(req.LogPath, stdout.Bytes(), stderr.Bytes())

	if runErr != nil {
		exitErr := &exec.ExitError{}
		if errors.As(runErr, &exitErr) {
			b.log.Error("Build failed", "project", req.ProjectPath, "exitCode", exitErr.ExitCode(), "log", req.LogPath)
			return types.BuildOutcome{Success: false, LogPath: req.LogPath}, nil
		}
		return types.BuildOutcome{}, fmt.Errorf("failed to run build toolchain: %w", runErr)
	}

	var value string
	if req.ReturnProperty != "" {
		value = extractReturnValue(stdout.String())
	}
	b.log.Debug("Build succeeded", "project", req.ProjectPath, "returnProperty", req.ReturnProperty, "value", value)
	return types.BuildOutcome{Success: true, ReturnValue: value, LogPath: req.LogPath}, nil
}

// buildArgs assembles an msbuild-style command line. Properties are emitted
// in sorted key order so invocations are reproducible.
func (b *Builder) buildArgs(req types.BuildRequest) []string {
	verbosity := "normal"
	if req.Verbose {
		verbosity = "diag"
	}

	args := []string{
		req.ProjectPath,
		"-t:" + strings.Join(req.Targets, ";"),
		"-v:" + verbosity,
		fmt.Sprintf("-flp:LogFile=%s;Verbosity=%s", req.LogPath, verbosity),
	}

	keys := make([]string, 0, len(req.Properties))
	for k := range req.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, fmt.Sprintf("-p:%s=%s", k, req.Properties[k]))
	}

	if req.ReturnProperty != "" {
		args = append(args, "-getProperty:"+req.ReturnProperty)
	}
	return args
}

// extractReturnValue reads the property query answer from the toolchain's
// standard output: the last non-blank line. An unset property yields "".
func extractReturnValue(stdout string) string {
	lines := strings.Split(stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// ensureLogWritten backfills the log file with captured process output when
// the toolchain exited without writing one.
func ensureLogWritten(logPath string, stdout, stderr []byte) {
	if info, err := os.Stat(logPath); err == nil && info.Size() > 0 {
		return
	}
	content := append(append([]byte{}, stdout...), stderr...)
	if len(content) == 0 {
		return
	}
	if err := os.WriteFile(logPath, content, 0o644); err != nil {
		log.Warn("Failed to write build log", "path", logPath, "err", err)
	}
}
