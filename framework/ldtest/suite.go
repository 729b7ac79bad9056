package ldtest

import (
	"context"

	"github.com/launchdarkly/suite-harness/framework/emitter"
)

// Suite is the top-level container of tests and groups. It owns its stack of entries, its own
// hooks, and the callbacks that configure entries as they are added.
type Suite struct {
	name    string
	em      *emitter.Emitter
	refiner *Refiner
	config  Configuration
	hooks   Hooks
	stack   []Node
	onTest  []func(*Test)
	onGroup []func(*Group)
}

// NewSuite creates an empty suite that reports on em and asks refiner which entries are
// eligible. A nil refiner allows everything.
func NewSuite(name string, em *emitter.Emitter, refiner *Refiner, config Configuration) *Suite {
	if em == nil {
		panic(configErrorf("suite %q needs an emitter", name))
	}
	if refiner == nil {
		refiner, _ = NewRefiner(Filters{})
	}
	return &Suite{
		name:    name,
		em:      em,
		refiner: refiner,
		config:  config,
	}
}

// Name returns the name of the suite.
func (s *Suite) Name() string { return s.name }

// Emitter returns the emitter the suite reports on.
func (s *Suite) Emitter() *emitter.Emitter { return s.em }

// Refiner returns the refiner the suite consults.
func (s *Suite) Refiner() *Refiner { return s.refiner }

// Hooks returns the suite's own hook registry.
func (s *Suite) Hooks() *Hooks { return &s.hooks }

// Stack returns the suite's entries in declaration order.
func (s *Suite) Stack() []Node { return append([]Node(nil), s.stack...) }

// Setup adds a setup handler that runs once before anything else in the suite.
func (s *Suite) Setup(fn SetupFunc) *Suite {
	s.hooks.Setup(fn)
	return s
}

// Teardown adds a teardown handler that runs once after everything else in the suite.
func (s *Suite) Teardown(fn TeardownFunc) *Suite {
	s.hooks.Teardown(fn)
	return s
}

// OnTest registers a callback that configures every test added from now on, including tests
// that arrive inside a group.
func (s *Suite) OnTest(fn func(*Test)) *Suite {
	if fn == nil {
		panic(configErrorf("OnTest callback of suite %q must not be nil", s.name))
	}
	s.onTest = append(s.onTest, fn)
	return s
}

// OnGroup registers a callback that configures every group added from now on.
func (s *Suite) OnGroup(fn func(*Group)) *Suite {
	if fn == nil {
		panic(configErrorf("OnGroup callback of suite %q must not be nil", s.name))
	}
	s.onGroup = append(s.onGroup, fn)
	return s
}

// Add appends tests and groups to the suite's stack. The configuration callbacks run before
// each entry becomes part of the stack.
func (s *Suite) Add(nodes ...Node) *Suite {
	for _, node := range nodes {
		switch n := node.(type) {
		case *Test:
			if n.group != nil || n.refiner != nil {
				panic(configErrorf("test %q has already been added elsewhere", n.title))
			}
			s.configureTest(n)
		case *Group:
			if n.suite != nil {
				panic(configErrorf("group %q has already been added to suite %q", n.title, n.suite.name))
			}
			for _, fn := range s.onGroup {
				fn(n)
			}
			for _, test := range n.tests {
				s.configureTest(test)
			}
			n.suite = s
		default:
			panic(configErrorf("cannot add %T to suite %q", node, s.name))
		}
		s.stack = append(s.stack, node)
	}
	return s
}

func (s *Suite) configureTest(test *Test) {
	for _, fn := range s.onTest {
		fn(test)
	}
	test.refiner = s.refiner
	if test.pinned {
		s.refiner.PinTest(test)
	}
}

// Test declares a test and adds it to the suite.
func (s *Suite) Test(title string, action func(*T)) *Test {
	test := NewTest(title, action)
	s.Add(test)
	return test
}

// Group declares a group, lets fn populate it, and then adds it to the suite.
func (s *Suite) Group(title string, fn func(*Group)) *Group {
	group := NewGroup(title)
	if fn != nil {
		fn(group)
	}
	s.Add(group)
	return group
}

// Eligible returns true if at least one entry of the stack is eligible to run.
func (s *Suite) Eligible() bool {
	for _, node := range s.stack {
		if s.refiner.Allows(node) {
			return true
		}
	}
	return false
}

// Exec runs the suite. If nothing in it is eligible, it emits no events at all. The returned
// error is non-nil only if the run itself could not proceed, such as when an event could not
// be delivered; test and hook failures are reported through events instead.
func (s *Suite) Exec(ctx context.Context) error {
	if !s.Eligible() {
		s.config.Loggers.Debugf("Suite %q has no eligible tests", s.name)
		return nil
	}
	return NewSuiteRunner(s).Run(ctx)
}
