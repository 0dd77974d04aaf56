package types

// BuildRequest fully specifies one invocation of the external build toolchain.
// It is constructed by the caller per module and consumed exactly once.
type BuildRequest struct {
	ProjectPath    string            // Path to the project descriptor
	Targets        []string          // Build targets, executed in order
	Properties     map[string]string // Property overrides passed to the toolchain
	ReturnProperty string            // Name of the output property to read back
	LogPath        string            // File the toolchain log is written to
	Verbose        bool              // Diagnostic verbosity when true
}

// BuildOutcome is the result of one build invocation. No shared state
// survives the call except the log file written as a side effect.
type BuildOutcome struct {
	Success     bool
	ReturnValue string // Value of ReturnProperty; empty when the property is unset
	LogPath     string
}
