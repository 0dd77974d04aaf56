package types

import (
	"fmt"
	"time"
)

// CaseResult captures the outcome of a single test case run.
type CaseResult struct {
	ID      TestCaseID
	Outcome RunOutcome
}

// ModuleResult aggregates the build outcome and case results for one module.
type ModuleResult struct {
	Module   string
	Build    BuildOutcome
	Cases    map[string]*CaseResult
	Status   RunStatus
	Duration time.Duration
	Stats    ResultStats
}

// SuiteResult captures the complete results of one harness run.
type SuiteResult struct {
	RunID    string
	Modules  map[string]*ModuleResult
	Status   RunStatus
	Duration time.Duration
	Stats    ResultStats
}

// ResultStats tracks test statistics at each aggregation level.
type ResultStats struct {
	Total     int
	Passed    int
	Failed    int
	StartTime time.Time
	EndTime   time.Time
}

// AddCase records one case result into a module result, updating stats.
func (m *ModuleResult) AddCase(result *CaseResult) {
	if m.Cases == nil {
		m.Cases = make(map[string]*CaseResult)
	}
	m.Cases[result.ID.Case] = result
	m.Stats.Total++
	if result.Outcome.Passed() {
		m.Stats.Passed++
	} else {
		m.Stats.Failed++
		m.Status = RunStatusFail
	}
}

// AddModule records one module result into the suite result, updating stats.
func (s *SuiteResult) AddModule(result *ModuleResult) {
	if s.Modules == nil {
		s.Modules = make(map[string]*ModuleResult)
	}
	s.Modules[result.Module] = result
	s.Stats.Total += result.Stats.Total
	s.Stats.Passed += result.Stats.Passed
	s.Stats.Failed += result.Stats.Failed
	if result.Status == RunStatusFail {
		s.Status = RunStatusFail
	}
}

// String returns a one-line summary suitable for the end of a run.
func (s *SuiteResult) String() string {
	return fmt.Sprintf("Test run %s: %d/%d passed (%d failed) in %s [%s]",
		s.RunID, s.Stats.Passed, s.Stats.Total, s.Stats.Failed,
		s.Duration.Round(time.Millisecond), s.Status)
}
