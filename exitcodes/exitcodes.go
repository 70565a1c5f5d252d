// Package exitcodes defines the standard exit codes used by op-ftr.
package exitcodes

// Exit code constants used by op-ftr.
//
// * Success (0): every selected test passed, or a custom runner returned 0
// * TestFailure (1): one or more tests failed
// * RuntimeErr (2): configuration, provider, version or cleanup errors
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)
