// Package logging provides the shared log sink a test case run writes its
// captured process output into.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"
)

// RunLog is the log file for one build or run. It is exclusively owned by
// the orchestrating call for its duration and written to by multiple
// concurrent stream readers; all writes and the error-seen flag are guarded
// by a single mutex so the file is a faithful interleaving-safe record.
type RunLog struct {
	path string

	mu        sync.Mutex
	file      *os.File
	errorSeen bool
}

// NewRunLog creates the log file at path, creating the containing directory
// first so capture can begin immediately.
func NewRunLog(path string) (*RunLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory for %s: %w", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", path, err)
	}
	return &RunLog{path: path, file: file}, nil
}

// Path returns the log file path.
func (l *RunLog) Path() string {
	return l.path
}

// WriteHeader writes the run preamble: one name=value line per injected
// environment variable in sorted order, a blank line, the command line, and
// another blank line. Raw process output follows.
func (l *RunLog) WriteHeader(env map[string]string, commandLine string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, env[k])
	}
	b.WriteString("\n")
	b.WriteString(commandLine)
	b.WriteString("\n\n")

	_, err := l.file.WriteString(b.String())
	return err
}

// AppendLine appends one received output-stream line. Writes go straight to
// the file descriptor, so a line is durable as soon as the call returns even
// if the child is killed mid-run.
func (l *RunLog) AppendLine(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.append(line)
}

// AppendErrorLine appends one received error-stream line and, when the line
// is non-blank, latches the error-seen flag. The flag only ever transitions
// false to true.
func (l *RunLog) AppendErrorLine(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if strings.TrimSpace(line) != "" {
		l.errorSeen = true
	}
	return l.append(line)
}

// ErrorSeen reports whether any non-blank error-stream line was received.
// Only meaningful once both stream readers have drained.
func (l *RunLog) ErrorSeen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errorSeen
}

// Close closes the underlying file.
func (l *RunLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// append must be called with the mutex held.
func (l *RunLog) append(line string) error {
	_, err := l.file.WriteString(stripansi.Strip(line) + "\n")
	return err
}
