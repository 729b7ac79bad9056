package ldtest

import (
	"time"

	"golang.org/x/exp/slices"
)

// DefaultTimeout is the timeout of a test that does not configure one.
const DefaultTimeout = 2 * time.Second

// Node is an entry of a suite's stack: either a *Test or a *Group.
type Node interface {
	Title() string
	node()
}

// Options are the execution settings of a test.
type Options struct {
	// Timeout limits how long the test action may run. Zero means no limit.
	Timeout time.Duration
	// Retries is how many more times a failed test is attempted.
	Retries int
	// Skip means the test is reported as skipped without running.
	Skip       bool
	SkipReason string
	// Todo means the test is reported as todo without running.
	Todo bool
}

// Test is a single declared test: a title, an action, and the settings and hooks that
// surround it.
type Test struct {
	title   string
	group   *Group
	tags    []string
	pinned  bool
	options Options
	action  func(*T)
	hooks   Hooks
	refiner *Refiner
	result  *TestResult
}

// NewTest declares a test. A test without an action is reported as todo.
func NewTest(title string, action func(*T)) *Test {
	return &Test{
		title:   title,
		action:  action,
		options: Options{Timeout: DefaultTimeout},
	}
}

func (t *Test) node() {}

// Title returns the title of the test.
func (t *Test) Title() string { return t.title }

// Group returns the group the test was added to, or nil.
func (t *Test) Group() *Group { return t.group }

// Tags returns the test's tags.
func (t *Test) Tags() []string { return append([]string(nil), t.tags...) }

// HasTag returns true if the test carries the tag.
func (t *Test) HasTag(tag string) bool { return slices.Contains(t.tags, tag) }

// Pinned returns true if Pin was called.
func (t *Test) Pinned() bool { return t.pinned }

// Options returns the test's current settings.
func (t *Test) Options() Options { return t.options }

// Hooks returns the test's own hook registry.
func (t *Test) Hooks() *Hooks { return &t.hooks }

// Result returns the outcome of the test, once it has been executed.
func (t *Test) Result() (TestResult, bool) {
	if t.result == nil {
		return TestResult{}, false
	}
	return *t.result, true
}

// Tag adds tags to the test. Tags that are already present are ignored.
func (t *Test) Tag(tags ...string) *Test {
	for _, tag := range tags {
		if tag != "" && !slices.Contains(t.tags, tag) {
			t.tags = append(t.tags, tag)
		}
	}
	return t
}

// Pin makes the test part of the exclusive set of tests to run. As soon as any test in the
// run is pinned, unpinned tests are not eligible.
func (t *Test) Pin() *Test {
	t.pinned = true
	if t.refiner != nil {
		t.refiner.PinTest(t)
	}
	return t
}

// Timeout sets the test's timeout. Zero disables it.
func (t *Test) Timeout(timeout time.Duration) *Test {
	if timeout < 0 {
		panic(configErrorf("timeout of %q must not be negative", t.title))
	}
	t.options.Timeout = timeout
	return t
}

// DisableTimeout lets the test action run for as long as it takes.
func (t *Test) DisableTimeout() *Test {
	t.options.Timeout = 0
	return t
}

// Retry sets how many more times a failed test is attempted.
func (t *Test) Retry(retries int) *Test {
	if retries < 0 {
		panic(configErrorf("retries of %q must not be negative", t.title))
	}
	t.options.Retries = retries
	return t
}

// Skip marks the test to be reported as skipped without running.
func (t *Test) Skip(reason string) *Test {
	t.options.Skip = true
	t.options.SkipReason = reason
	return t
}

// Todo marks the test to be reported as todo without running.
func (t *Test) Todo() *Test {
	t.options.Todo = true
	return t
}

// Setup adds a setup handler that runs before every attempt of the test.
func (t *Test) Setup(fn SetupFunc) *Test {
	t.hooks.Setup(fn)
	return t
}

// Teardown adds a teardown handler that runs after every attempt of the test.
func (t *Test) Teardown(fn TeardownFunc) *Test {
	t.hooks.Teardown(fn)
	return t
}

func (t *Test) isTodo() bool {
	return t.action == nil || t.options.Todo
}
