package acceptor

import (
	"time"

	"github.com/scriptbridge/acceptor/types"
)

// getResultString returns a marker string representing a result
func getResultString(status types.RunStatus) string {
	if status == types.RunStatusPass {
		return "✓ pass"
	}
	return "✗ fail"
}

// formatDuration renders durations compactly for table cells.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(10 * time.Millisecond).String()
}
