package suite

import "time"

// Status is the outcome of one suite.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"  // process exited non-zero
	StatusError   Status = "error"   // process could not be started or waited on
	StatusTimeout Status = "timeout" // killed after its timeout elapsed
)

// Result is the outcome record for one suite. It is built once, after the
// suite's process has terminated, and never modified afterwards.
type Result struct {
	Descriptor Descriptor `json:"descriptor"`
	Status     Status     `json:"status"`
	ExitCode   int        `json:"exit_code"`
	DurationMs int        `json:"duration_ms"`
	Err        string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	LogPath    string     `json:"log_path,omitempty"`
}

// Success reports whether the suite's process exited with status 0.
func (r Result) Success() bool {
	return r.Status == StatusPassed
}

// Summary is the aggregate tally for one invocation.
// Failed counts every result that did not pass; Errored and TimedOut are
// the subsets of Failed caused by spawn errors and timeouts.
type Summary struct {
	RunID      string    `json:"run_id"`
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMs int       `json:"duration_ms"`
	Results    []Result  `json:"results"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Errored    int       `json:"errored"`
	TimedOut   int       `json:"timed_out"`
}

// Add appends a result and updates the counters.
func (s *Summary) Add(r Result) {
	s.Results = append(s.Results, r)
	switch r.Status {
	case StatusPassed:
		s.Passed++
		return
	case StatusError:
		s.Errored++
	case StatusTimeout:
		s.TimedOut++
	}
	s.Failed++
}

// Total returns the number of suites that produced a result.
func (s *Summary) Total() int {
	return len(s.Results)
}

// AllPassed reports whether no suite failed. It is vacuously true for an empty run.
func (s *Summary) AllPassed() bool {
	return s.Failed == 0
}

// SuccessRate returns the passed percentage, or 0 when nothing ran.
func (s *Summary) SuccessRate() float64 {
	if len(s.Results) == 0 {
		return 0
	}
	return float64(s.Passed) / float64(len(s.Results)) * 100
}

// Failures returns the results that did not pass, in execution order.
func (s *Summary) Failures() []Result {
	var out []Result
	for _, r := range s.Results {
		if !r.Success() {
			out = append(out, r)
		}
	}
	return out
}

// Duration returns the wall-clock duration of the run.
func (s *Summary) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}
