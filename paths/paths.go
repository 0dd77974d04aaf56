// Package paths locates the repository layout the harness operates on and
// derives log file paths and the canonical platform tag.
package paths

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// DefaultMarkerFile is the workspace marker probed for when walking upward
// to find the repository root. It is the suite configuration file itself.
const DefaultMarkerFile = "acceptor.yaml"

// DefaultTestCaseDir is the test case root relative to the repository root.
const DefaultTestCaseDir = "testcases"

// DefaultConfiguration keys the build output directory when none is given.
const DefaultConfiguration = "release"

var (
	// ErrNotFound indicates a filesystem layout precondition is missing
	// (repository root or test case root). Not recoverable by retry.
	ErrNotFound = fmt.Errorf("not found")

	// ErrUnsupportedPlatform indicates the running OS/architecture is
	// outside the closed set the harness claims support for.
	ErrUnsupportedPlatform = fmt.Errorf("unsupported platform")
)

// FS abstracts the filesystem probes the resolver performs, so root
// discovery is testable against a synthetic directory tree.
type FS interface {
	Stat(name string) (fs.FileInfo, error)
}

type osFS struct{}

func (osFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

// Config holds the resolver configuration. Zero-value fields get defaults.
type Config struct {
	Anchor        string // Directory the upward search starts from
	Marker        string // Workspace marker file name
	TestCaseDir   string // Test case root, relative to the repository root
	Configuration string // Build configuration keying the log directory
	FS            FS
}

// Resolver locates the repository root and test case root and constructs
// log file paths. The repository root is computed once and cached; the
// filesystem layout does not change during a run.
type Resolver struct {
	cfg Config

	rootOnce sync.Once
	root     string
	rootErr  error
}

// NewResolver creates a resolver. Anchor defaults to the current working
// directory.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Anchor == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		cfg.Anchor = wd
	}
	if cfg.Marker == "" {
		cfg.Marker = DefaultMarkerFile
	}
	if cfg.TestCaseDir == "" {
		cfg.TestCaseDir = DefaultTestCaseDir
	}
	if cfg.Configuration == "" {
		cfg.Configuration = DefaultConfiguration
	}
	if cfg.FS == nil {
		cfg.FS = osFS{}
	}
	absAnchor, err := filepath.Abs(cfg.Anchor)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for anchor '%s': %w", cfg.Anchor, err)
	}
	cfg.Anchor = absAnchor
	return &Resolver{cfg: cfg}, nil
}

// RepoRoot walks parent directories upward from the anchor until one
// contains the marker file. The result is cached; calling twice returns the
// identical path.
func (r *Resolver) RepoRoot() (string, error) {
	r.rootOnce.Do(func() {
		r.root, r.rootErr = findUpward(r.cfg.FS, r.cfg.Anchor, r.cfg.Marker)
	})
	return r.root, r.rootErr
}

// findUpward searches dir and its parents for a directory containing name.
func findUpward(fsys FS, dir, name string) (string, error) {
	for {
		info, err := fsys.Stat(filepath.Join(dir, name))
		if err == nil && !info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no directory containing %s above %s: %w", name, dir, ErrNotFound)
		}
		dir = parent
	}
}

// TestCaseRoot joins the repository root with the configured test case
// directory and verifies it exists.
func (r *Resolver) TestCaseRoot() (string, error) {
	root, err := r.RepoRoot()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, r.cfg.TestCaseDir)
	info, err := r.cfg.FS.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("test case root %s: %w", dir, ErrNotFound)
	}
	return dir, nil
}

// logDir returns the log directory for the current configuration, creating
// it if absent so capture can begin with no race on file existence.
func (r *Resolver) logDir() (string, error) {
	root, err := r.RepoRoot()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, "out", "logs", r.cfg.Configuration)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	return dir, nil
}

// BuildLogPath returns the log file path for one module build. The
// containing directory is created before the path is returned.
func (r *Resolver) BuildLogPath(module string) (string, error) {
	dir, err := r.logDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("build-%s.log", module)), nil
}

// RunLogPath returns the log file path for one test case run.
func (r *Resolver) RunLogPath(prefix, module, caseName string) (string, error) {
	dir, err := r.logDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s-%s.log", prefix, module, caseName)), nil
}

// PlatformTag maps the running OS and architecture to "<os>-<arch>" with os
// in {win, osx, linux} and arch in {x86, x64, arm64}. The set is closed:
// anything else is ErrUnsupportedPlatform.
func PlatformTag() (string, error) {
	return PlatformTagFor(runtime.GOOS, runtime.GOARCH)
}

// PlatformTagFor is PlatformTag over injected platform values.
func PlatformTagFor(goos, goarch string) (string, error) {
	var osTag string
	switch goos {
	case "windows":
		osTag = "win"
	case "darwin":
		osTag = "osx"
	case "linux":
		osTag = "linux"
	default:
		return "", fmt.Errorf("operating system %q: %w", goos, ErrUnsupportedPlatform)
	}

	var archTag string
	switch goarch {
	case "386":
		archTag = "x86"
	case "amd64":
		archTag = "x64"
	case "arm64":
		archTag = "arm64"
	default:
		return "", fmt.Errorf("architecture %q: %w", goarch, ErrUnsupportedPlatform)
	}

	return osTag + "-" + archTag, nil
}
