package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunLog(t *testing.T) *RunLog {
	t.Helper()
	l, err := NewRunLog(filepath.Join(t.TempDir(), "logs", "run-objects-case.log"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRunLog_CreatesMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "run.log")
	l, err := NewRunLog(path)
	require.NoError(t, err)
	defer l.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.Equal(t, path, l.Path())
}

func TestRunLog_HeaderFormat(t *testing.T) {
	l := newTestRunLog(t)
	env := map[string]string{
		"TEST_MODULE_PATH": "/out/objects.node",
		"TEST_HOST_PATH":   "/out/host.js",
	}
	require.NoError(t, l.WriteHeader(env, "node --expose-gc /cases/objects/finalizers.js"))
	require.NoError(t, l.AppendLine("hello"))
	require.NoError(t, l.Close())

	content, err := os.ReadFile(l.Path())
	require.NoError(t, err)

	// Env lines sorted, blank line, command line, blank line, then output
	want := "TEST_HOST_PATH=/out/host.js\n" +
		"TEST_MODULE_PATH=/out/objects.node\n" +
		"\n" +
		"node --expose-gc /cases/objects/finalizers.js\n" +
		"\n" +
		"hello\n"
	assert.Equal(t, want, string(content))
}

func TestRunLog_ErrorSeenLatch(t *testing.T) {
	l := newTestRunLog(t)

	assert.False(t, l.ErrorSeen())

	// Blank error lines do not latch the flag
	require.NoError(t, l.AppendErrorLine(""))
	require.NoError(t, l.AppendErrorLine("   "))
	require.NoError(t, l.AppendErrorLine("\t"))
	assert.False(t, l.ErrorSeen())

	require.NoError(t, l.AppendErrorLine("Error: something broke"))
	assert.True(t, l.ErrorSeen())

	// The flag never resets
	require.NoError(t, l.AppendErrorLine(""))
	assert.True(t, l.ErrorSeen())
}

func TestRunLog_StripsANSISequences(t *testing.T) {
	l := newTestRunLog(t)
	require.NoError(t, l.AppendLine("\x1b[32mgreen\x1b[0m text"))
	require.NoError(t, l.Close())

	content, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Equal(t, "green text\n", string(content))
}

// TestRunLog_ConcurrentWriters drives both append paths from concurrent
// goroutines and verifies no line is lost, truncated or interleaved.
func TestRunLog_ConcurrentWriters(t *testing.T) {
	l := newTestRunLog(t)

	const linesPerStream = 2000
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < linesPerStream; i++ {
			_ = l.AppendLine(fmt.Sprintf("out line %d", i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < linesPerStream; i++ {
			_ = l.AppendErrorLine(fmt.Sprintf("err line %d", i))
		}
	}()
	wg.Wait()
	require.NoError(t, l.Close())

	content, err := os.ReadFile(l.Path())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	require.Len(t, lines, 2*linesPerStream)

	seen := make(map[string]int, len(lines))
	for _, line := range lines {
		seen[line]++
	}
	for i := 0; i < linesPerStream; i++ {
		assert.Equal(t, 1, seen[fmt.Sprintf("out line %d", i)])
		assert.Equal(t, 1, seen[fmt.Sprintf("err line %d", i)])
	}
	assert.True(t, l.ErrorSeen())
}

func TestRunLog_PerStreamOrderPreserved(t *testing.T) {
	l := newTestRunLog(t)

	const n = 100
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_ = l.AppendLine(fmt.Sprintf("out %d", i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_ = l.AppendErrorLine(fmt.Sprintf("err %d", i))
		}
	}()
	wg.Wait()
	require.NoError(t, l.Close())

	content, err := os.ReadFile(l.Path())
	require.NoError(t, err)

	var outPrev, errPrev = -1, -1
	for _, line := range strings.Split(strings.TrimSuffix(string(content), "\n"), "\n") {
		var i int
		if _, err := fmt.Sscanf(line, "out %d", &i); err == nil {
			assert.Greater(t, i, outPrev, "stdout lines out of order")
			outPrev = i
			continue
		}
		if _, err := fmt.Sscanf(line, "err %d", &i); err == nil {
			assert.Greater(t, i, errPrev, "stderr lines out of order")
			errPrev = i
		}
	}
	assert.Equal(t, n-1, outPrev)
	assert.Equal(t, n-1, errPrev)
}
