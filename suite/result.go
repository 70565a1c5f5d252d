package suite

import (
	"fmt"
	"strings"
	"time"
)

// TestStatus represents the possible states of a test execution
type TestStatus string

const (
	TestStatusPass TestStatus = "pass"
	TestStatusFail TestStatus = "fail"
	TestStatusSkip TestStatus = "skip"
)

// TestResult captures the outcome of a single test or failed hook
type TestResult struct {
	Title     string
	FullTitle string
	File      string
	Path      []string // Suite titles from the outermost suite down to the test
	Hook      bool     // The result belongs to a hook, not a test
	Status    TestStatus
	Error     error
	Duration  time.Duration
	TimedOut  bool
}

// RunResult aggregates the outcome of a suite run
type RunResult struct {
	Passes   int
	Failures int
	Pending  int
	Duration time.Duration
	Bailed   bool
	Tests    []*TestResult
}

// Status summarizes the run the same way the results table does
func (r *RunResult) Status() TestStatus {
	switch {
	case r.Failures > 0:
		return TestStatusFail
	case r.Passes == 0 && r.Pending > 0:
		return TestStatusSkip
	default:
		return TestStatusPass
	}
}

// Total is the number of tests that were passed, failed or skipped. Failed hooks count as failures.
func (r *RunResult) Total() int {
	return r.Passes + r.Failures + r.Pending
}

// Failed returns the results with a fail status
func (r *RunResult) Failed() []*TestResult {
	var failed []*TestResult
	for _, t := range r.Tests {
		if t.Status == TestStatusFail {
			failed = append(failed, t)
		}
	}
	return failed
}

func (r *RunResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d passing, %d failing, %d pending (%s)", r.Passes, r.Failures, r.Pending, r.Duration.Round(time.Millisecond))
	if r.Bailed {
		b.WriteString(", bailed after first failure")
	}
	return b.String()
}

func (r *RunResult) add(tr *TestResult) {
	switch tr.Status {
	case TestStatusPass:
		r.Passes++
	case TestStatusFail:
		r.Failures++
	case TestStatusSkip:
		r.Pending++
	}
	r.Tests = append(r.Tests, tr)
}
