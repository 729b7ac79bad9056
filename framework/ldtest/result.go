package ldtest

import (
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/launchdarkly/suite-harness/framework"
)

// Status is the outcome of a test, a group or a suite.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusTodo    Status = "todo"
)

// TestID is the path of a test through its suite and group: suite name, group title if any,
// then the test title.
type TestID []string

func (t TestID) String() string {
	return strings.Join(t, "/")
}

func (t TestID) Plus(name string) TestID {
	return append(append(TestID(nil), t...), name)
}

// TestResult is the immutable record of one executed (or deliberately not executed) test. It
// is the payload of the test:end event.
type TestResult struct {
	ID          TestID
	Title       string
	Tags        []string
	Status      Status
	Duration    time.Duration
	Errors      []error
	Attempts    int
	SkipReason  string
	DebugOutput framework.CapturedOutput
}

// Error returns the combined failure of the test as a *TestFailure, or nil if it did not fail.
func (r TestResult) Error() error {
	switch len(r.Errors) {
	case 0:
		return nil
	case 1:
		return &TestFailure{ID: r.ID, Err: r.Errors[0]}
	default:
		return &TestFailure{ID: r.ID, Err: multierror.Append(nil, r.Errors...)}
	}
}

// Failed is shorthand for Status == StatusFailed.
func (r TestResult) Failed() bool {
	return r.Status == StatusFailed
}

// ScopeFailure records a suite or group that failed on its own account, because a setup or
// teardown hook failed, as opposed to failing because one of its tests did.
type ScopeFailure struct {
	ID     TestID
	Errors []error
}

// Summary aggregates the test:end events of one run.
type Summary struct {
	RunID        string
	Passed       int
	Failed       int
	Skipped      int
	Todo         int
	Total        int
	Duration     time.Duration
	FailedTests  []TestResult
	FailedScopes []ScopeFailure
}

// OK returns true if nothing failed.
func (s Summary) OK() bool {
	return s.Failed == 0 && len(s.FailedScopes) == 0
}

// Status is the overall run status.
func (s Summary) Status() Status {
	if s.OK() {
		return StatusPassed
	}
	return StatusFailed
}

func (s *Summary) add(result TestResult) {
	s.Total++
	switch result.Status {
	case StatusPassed:
		s.Passed++
	case StatusFailed:
		s.Failed++
		s.FailedTests = append(s.FailedTests, result)
	case StatusSkipped:
		s.Skipped++
	case StatusTodo:
		s.Todo++
	}
}
