package ldtest

import (
	"time"
)

// Each holds the settings a group applies to every test added to it. Settings are captured
// when a test is added, so changing them only affects tests added afterward.
type Each struct {
	timeout    *time.Duration
	retries    *int
	skip       bool
	skipReason string
	tags       []string
	hooks      Hooks
}

// Timeout sets the timeout of tests added from now on.
func (e *Each) Timeout(timeout time.Duration) *Each {
	if timeout < 0 {
		panic(configErrorf("timeout must not be negative"))
	}
	e.timeout = &timeout
	return e
}

// DisableTimeout disables the timeout of tests added from now on.
func (e *Each) DisableTimeout() *Each {
	return e.Timeout(0)
}

// Retry sets the retries of tests added from now on.
func (e *Each) Retry(retries int) *Each {
	if retries < 0 {
		panic(configErrorf("retries must not be negative"))
	}
	e.retries = &retries
	return e
}

// Skip marks tests added from now on as skipped.
func (e *Each) Skip(reason string) *Each {
	e.skip = true
	e.skipReason = reason
	return e
}

// Tag adds tags to tests added from now on.
func (e *Each) Tag(tags ...string) *Each {
	e.tags = append(e.tags, tags...)
	return e
}

// Setup adds a setup handler to tests added from now on. It runs before the test's own setup
// handlers.
func (e *Each) Setup(fn SetupFunc) *Each {
	e.hooks.Setup(fn)
	return e
}

// Teardown adds a teardown handler to tests added from now on. It runs after the test's own
// teardown handlers.
func (e *Each) Teardown(fn TeardownFunc) *Each {
	e.hooks.Teardown(fn)
	return e
}

func (e *Each) apply(test *Test) {
	if e.timeout != nil {
		test.options.Timeout = *e.timeout
	}
	if e.retries != nil {
		test.options.Retries = *e.retries
	}
	if e.skip && !test.options.Skip {
		test.options.Skip = true
		test.options.SkipReason = e.skipReason
	}
	test.Tag(e.tags...)
	if len(e.hooks.setups) != 0 {
		test.hooks.setups = append(append([]SetupFunc(nil), e.hooks.setups...), test.hooks.setups...)
	}
	test.hooks.teardowns = append(test.hooks.teardowns, e.hooks.teardowns...)
}

// Group is a named collection of tests that share hooks and default settings.
type Group struct {
	title string
	tests []*Test
	hooks Hooks
	each  Each
	taps  []func(*Test)
	suite *Suite
}

// NewGroup declares an empty group.
func NewGroup(title string) *Group {
	return &Group{title: title}
}

func (g *Group) node() {}

// Title returns the title of the group.
func (g *Group) Title() string { return g.title }

// Tests returns the group's tests in the order they were added.
func (g *Group) Tests() []*Test { return append([]*Test(nil), g.tests...) }

// Hooks returns the group's own hook registry.
func (g *Group) Hooks() *Hooks { return &g.hooks }

// Each returns the settings applied to tests added to the group from now on.
func (g *Group) Each() *Each { return &g.each }

// Tap registers a callback that is run on every test added to the group from now on, after
// the Each settings were applied.
func (g *Group) Tap(fn func(*Test)) *Group {
	if fn == nil {
		panic(configErrorf("tap callback of group %q must not be nil", g.title))
	}
	g.taps = append(g.taps, fn)
	return g
}

// Add moves tests into the group. A test can belong to only one group, and cannot be added to
// a group after it was added directly to a suite.
func (g *Group) Add(tests ...*Test) *Group {
	for _, test := range tests {
		if test.group != nil || test.refiner != nil {
			panic(configErrorf("test %q has already been added elsewhere", test.title))
		}
		test.group = g
		g.each.apply(test)
		for _, tap := range g.taps {
			tap(test)
		}
		if g.suite != nil {
			g.suite.configureTest(test)
		}
		g.tests = append(g.tests, test)
	}
	return g
}

// Test declares a test and adds it to the group.
func (g *Group) Test(title string, action func(*T)) *Test {
	test := NewTest(title, action)
	g.Add(test)
	return test
}

// Setup adds a setup handler that runs once before the group's tests.
func (g *Group) Setup(fn SetupFunc) *Group {
	g.hooks.Setup(fn)
	return g
}

// Teardown adds a teardown handler that runs once after the group's tests.
func (g *Group) Teardown(fn TeardownFunc) *Group {
	g.hooks.Teardown(fn)
	return g
}
