// Package exitcodes defines the standard exit codes used by script-acceptor.
package exitcodes

// Exit code constants used by the application:
//
// * Success (0): All test cases passed
// * TestFailure (1): One or more test cases failed
// * RuntimeErr (2): Runtime errors such as layout problems, panics or timeouts
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)
