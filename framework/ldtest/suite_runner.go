package ldtest

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// SuiteRunner executes one suite: its hooks, and every eligible entry of its stack in
// declaration order, reporting progress as events.
type SuiteRunner struct {
	suite *Suite
}

// NewSuiteRunner creates a runner for the suite.
func NewSuiteRunner(suite *Suite) *SuiteRunner {
	return &SuiteRunner{suite: suite}
}

// skipState carries a skip requested by an enclosing scope's setup down to its children.
type skipState struct {
	skip   bool
	reason string
}

// Run executes the suite. Failures of tests and hooks are reported through events and do not
// stop the walk. An error is returned only when an event could not be delivered or ctx was
// cancelled; in that case the walk stops, but the teardown of every scope that was set up
// still runs.
func (r *SuiteRunner) Run(ctx context.Context) error {
	s := r.suite
	started := time.Now()
	if err := r.emit(ctx, EventSuiteStart, SuiteStartPayload{Name: s.name}); err != nil {
		return err
	}

	scope := newScope(ctx, nil, TestID{s.name}, s.config.Extensions)
	run, setupErr := s.hooks.setUp(scope, ScopeSuite, s.name)

	var fatal error
	var outcome walkOutcome
	switch setupErr {
	case nil:
		outcome, fatal = r.walk(ctx, scope, s.stack, skipState{})
	case errSkipped:
		outcome, fatal = r.walk(ctx, scope, s.stack, skipState{skip: true, reason: scope.state().skipReason})
	default:
		s.config.Loggers.Errorf("Setup of suite %q failed: %s", s.name, setupErr)
	}

	teardownErrs := run.tearDown()
	scope.close()

	errs := scope.state().errors
	if setupErr != nil && setupErr != errSkipped {
		errs = append(errs, setupErr)
	}
	errs = append(errs, teardownErrs...)

	status := scopeStatus(errs, outcome, setupErr == errSkipped)
	endErr := r.emit(ctx, EventSuiteEnd, SuiteEndPayload{
		Name:     s.name,
		Status:   status,
		Duration: time.Since(started),
		Errors:   errs,
	})
	if fatal != nil || endErr != nil {
		return multierror.Append(fatal, endErr).ErrorOrNil()
	}
	return nil
}

// walkOutcome counts what happened inside a scope, to derive the scope's status. Failed
// includes nested groups whose own hooks failed.
type walkOutcome struct {
	ran    int
	failed int
}

func (o *walkOutcome) add(other walkOutcome) {
	o.ran += other.ran
	o.failed += other.failed
}

func (o *walkOutcome) record(status Status) {
	if status == StatusFailed {
		o.failed++
	}
	if status == StatusPassed || status == StatusFailed {
		o.ran++
	}
}

func scopeStatus(errs []error, outcome walkOutcome, skipped bool) Status {
	switch {
	case len(errs) != 0 || outcome.failed != 0:
		return StatusFailed
	case skipped:
		return StatusSkipped
	default:
		return StatusPassed
	}
}

func (r *SuiteRunner) walk(ctx context.Context, parent *T, nodes []Node, skip skipState) (walkOutcome, error) {
	var outcome walkOutcome
	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return outcome, fmt.Errorf("run of suite %q was cancelled: %w", r.suite.name, err)
		}
		if !r.suite.refiner.Allows(node) {
			continue
		}
		var err error
		switch n := node.(type) {
		case *Test:
			var status Status
			status, err = r.runTest(ctx, parent, n, skip)
			outcome.record(status)
		case *Group:
			var groupOutcome walkOutcome
			groupOutcome, err = r.runGroup(ctx, parent, n, skip)
			outcome.add(groupOutcome)
		}
		if err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

func (r *SuiteRunner) runGroup(ctx context.Context, parent *T, g *Group, skip skipState) (walkOutcome, error) {
	s := r.suite
	started := time.Now()
	if err := r.emit(ctx, EventGroupStart, GroupStartPayload{Suite: s.name, Title: g.title}); err != nil {
		return walkOutcome{}, err
	}

	scope := newScope(ctx, parent, parent.ID().Plus(g.title), s.config.Extensions)
	var run *hookRun
	var setupErr error
	if !skip.skip {
		run, setupErr = g.hooks.setUp(scope, ScopeGroup, g.title)
		if setupErr == errSkipped {
			skip = skipState{skip: true, reason: scope.state().skipReason}
		}
	}

	var fatal error
	var outcome walkOutcome
	if setupErr == nil || setupErr == errSkipped {
		tests := make([]Node, 0, len(g.tests))
		for _, test := range g.tests {
			tests = append(tests, test)
		}
		outcome, fatal = r.walk(ctx, scope, tests, skip)
	} else {
		s.config.Loggers.Errorf("Setup of group %q failed: %s", scope.ID(), setupErr)
	}

	var teardownErrs []error
	if run != nil {
		teardownErrs = run.tearDown()
	}
	scope.close()

	errs := scope.state().errors
	if setupErr != nil && setupErr != errSkipped {
		errs = append(errs, setupErr)
	}
	errs = append(errs, teardownErrs...)

	status := scopeStatus(errs, outcome, skip.skip)
	endErr := r.emit(ctx, EventGroupEnd, GroupEndPayload{
		Suite:    s.name,
		Title:    g.title,
		Status:   status,
		Duration: time.Since(started),
		Errors:   errs,
	})
	if len(errs) != 0 {
		outcome.failed++ // a failed group hook fails the suite too
	}
	if fatal != nil || endErr != nil {
		return outcome, multierror.Append(fatal, endErr).ErrorOrNil()
	}
	return outcome, nil
}

func (r *SuiteRunner) runTest(ctx context.Context, parent *T, test *Test, skip skipState) (Status, error) {
	id := parent.ID().Plus(test.title)
	if err := r.emit(ctx, EventTestStart, TestStartPayload{ID: id, Title: test.title, Tags: test.Tags()}); err != nil {
		return "", err
	}

	result := r.execTest(ctx, parent, id, test, skip)
	test.result = &result
	return result.Status, r.emit(ctx, EventTestEnd, result)
}

func (r *SuiteRunner) execTest(ctx context.Context, parent *T, id TestID, test *Test, skip skipState) TestResult {
	started := time.Now()
	result := TestResult{
		ID:    id,
		Title: test.title,
		Tags:  test.Tags(),
	}
	switch {
	case test.isTodo():
		result.Status = StatusTodo
		return result
	case test.options.Skip:
		result.Status = StatusSkipped
		result.SkipReason = test.options.SkipReason
		return result
	case skip.skip:
		result.Status = StatusSkipped
		result.SkipReason = skip.reason
		return result
	}

	for attempt := 1; ; attempt++ {
		result.Attempts = attempt
		r.attempt(ctx, parent, test, &result)
		if result.Status != StatusFailed || attempt > test.options.Retries {
			break
		}
		r.suite.config.Loggers.Infof("Test %q failed on attempt %d, retrying", id, attempt)
	}
	result.Duration = time.Since(started)
	return result
}

// attempt runs one execution of a test in a fresh scope: its setup handlers, then the action
// under the test's timeout, then its teardown handlers, which run exactly once no matter how
// the setup or the action ended.
func (r *SuiteRunner) attempt(ctx context.Context, parent *T, test *Test, result *TestResult) {
	t := newScope(ctx, parent, result.ID, r.suite.config.Extensions)
	run, setupErr := test.hooks.setUp(t, ScopeTest, test.title)
	if setupErr == nil {
		t.runAction(test.action, test.options.Timeout)
	}
	teardownErrs := run.tearDown()
	t.close()

	st := t.state()
	errs := st.errors
	if setupErr != nil && setupErr != errSkipped {
		errs = append(errs, setupErr)
	}
	errs = append(errs, teardownErrs...)

	result.Errors = errs
	result.SkipReason = ""
	switch {
	case st.failed || len(errs) != 0:
		result.Status = StatusFailed
	case st.skipped:
		result.Status = StatusSkipped
		result.SkipReason = st.skipReason
	default:
		result.Status = StatusPassed
	}
	result.DebugOutput = t.debugLogger.Output()
}

func (r *SuiteRunner) emit(ctx context.Context, event string, payload interface{}) error {
	if err := r.suite.em.Emit(ctx, event, payload); err != nil {
		return fmt.Errorf("could not deliver %s event: %w", event, err)
	}
	return nil
}
