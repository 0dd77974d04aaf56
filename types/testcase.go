package types

import "fmt"

// TestCaseID uniquely identifies one runnable test scenario. A module is a
// named group of cases sharing one build artifact; a case is a single script
// file exercising one scenario against that artifact.
type TestCaseID struct {
	Module string
	Case   string
}

// String returns the canonical "<module>/<case>" form used in logs and metrics.
func (id TestCaseID) String() string {
	return fmt.Sprintf("%s/%s", id.Module, id.Case)
}
