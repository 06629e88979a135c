// Package exitcodes defines the process exit codes returned by suiterun.
package exitcodes

// CI pipelines only need to distinguish zero from non-zero, but the runtime
// error code lets a caller tell a broken suite list apart from failing tests.
const (
	Success      = 0 // every suite passed (or the list was empty)
	SuiteFailure = 1 // one or more suites failed, errored or timed out
	RuntimeErr   = 2 // the runner itself could not proceed (bad config, server never ready)
)
