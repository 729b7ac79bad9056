package ldtest

import (
	"time"
)

// Names of the lifecycle events published on the emitter during a run.
const (
	EventRunnerStart = "runner:start"
	EventRunnerEnd   = "runner:end"
	EventSuiteStart  = "suite:start"
	EventSuiteEnd    = "suite:end"
	EventGroupStart  = "group:start"
	EventGroupEnd    = "group:end"
	EventTestStart   = "test:start"
	EventTestEnd     = "test:end"
)

type RunnerStartPayload struct {
	RunID string
}

type RunnerEndPayload struct {
	Summary Summary
}

type SuiteStartPayload struct {
	Name string
}

type SuiteEndPayload struct {
	Name     string
	Status   Status
	Duration time.Duration
	// Errors holds failures of the suite's own hooks, not of its tests.
	Errors []error
}

type GroupStartPayload struct {
	Suite string
	Title string
}

type GroupEndPayload struct {
	Suite    string
	Title    string
	Status   Status
	Duration time.Duration
	Errors   []error
}

type TestStartPayload struct {
	ID    TestID
	Title string
	Tags  []string
}

// TestEndPayload is the outcome record of a test.
type TestEndPayload = TestResult
