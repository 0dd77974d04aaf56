package builder

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/mod/semver"
)

// ToolchainRootEnvVar optionally points at a directory holding versioned
// toolchain installations (<root>/<version>/<binary>).
const ToolchainRootEnvVar = "ACCEPTOR_TOOLCHAIN_ROOT"

// DefaultToolchainBinary is the build toolchain executable looked up when no
// versioned installation root is configured.
const DefaultToolchainBinary = "msbuild"

type locatorState int

const (
	stateUninitialized locatorState = iota
	stateInitialized
)

// Locator discovers the build toolchain installation and registers it for
// the lifetime of the process. Discovery runs at most once; EnsureInitialized
// is an idempotent check-and-set and must succeed before the first build.
type Locator struct {
	binary      string
	searchRoots []string

	mu       sync.Mutex
	state    locatorState
	toolPath string
}

// NewLocator creates a locator for the given toolchain binary name. Search
// roots are scanned for versioned installation directories; the value of
// ACCEPTOR_TOOLCHAIN_ROOT, when set, is scanned as well.
func NewLocator(binary string, searchRoots ...string) *Locator {
	if binary == "" {
		binary = DefaultToolchainBinary
	}
	if envRoot := os.Getenv(ToolchainRootEnvVar); envRoot != "" {
		searchRoots = append(searchRoots, envRoot)
	}
	return &Locator{binary: binary, searchRoots: searchRoots}
}

// EnsureInitialized discovers and registers the toolchain location if that
// has not happened yet. Safe for concurrent use; only the first caller
// performs discovery.
func (l *Locator) EnsureInitialized() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == stateInitialized {
		return nil
	}

	path, err := l.discover()
	if err != nil {
		return err
	}
	l.toolPath = path
	l.state = stateInitialized
	log.Debug("Registered build toolchain", "path", path)
	return nil
}

// ToolPath returns the registered toolchain executable path, initializing
// the locator if needed.
func (l *Locator) ToolPath() (string, error) {
	if err := l.EnsureInitialized(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.toolPath, nil
}

// discover scans the search roots for versioned installations and selects
// the highest version. When several roots hold installations the overall
// highest version wins, so selection is deterministic. With no versioned
// installation the binary is looked up on PATH.
func (l *Locator) discover() (string, error) {
	var bestVersion, bestPath string
	for _, root := range l.searchRoots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			v := canonicalVersion(entry.Name())
			if v == "" {
				continue
			}
			candidate := filepath.Join(root, entry.Name(), l.binary)
			if info, err := os.Stat(candidate); err != nil || info.IsDir() {
				continue
			}
			if bestVersion == "" || semver.Compare(v, bestVersion) > 0 {
				bestVersion = v
				bestPath = candidate
			}
		}
	}
	if bestPath != "" {
		log.Debug("Selected toolchain installation", "version", bestVersion, "path", bestPath)
		return bestPath, nil
	}

	path, err := exec.LookPath(l.binary)
	if err != nil {
		return "", fmt.Errorf("no %s installation found in %v or on PATH: %w", l.binary, l.searchRoots, err)
	}
	return path, nil
}

// canonicalVersion normalizes a directory name to a semver string, or ""
// when the name is not a version.
func canonicalVersion(name string) string {
	v := name
	if len(v) == 0 {
		return ""
	}
	if v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}
