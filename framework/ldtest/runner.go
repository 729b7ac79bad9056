package ldtest

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/suite-harness/framework/emitter"
)

// Configuration is the run-wide configuration that is passed explicitly to the Runner and to
// every Suite.
type Configuration struct {
	// Extensions are the capabilities resolved for every scope.
	Extensions Extensions
	// Loggers receives log output about the orchestration itself. Output of tests goes to their
	// own scope loggers instead.
	Loggers ldlog.Loggers
	// RunID identifies the run in reports. If empty, the Runner generates one.
	RunID string
}

// DefaultConfiguration returns a Configuration with no extensions and logging disabled.
func DefaultConfiguration() Configuration {
	return Configuration{
		Extensions: Extensions{},
		Loggers:    ldlog.NewDisabledLoggers(),
	}
}

// Reporter consumes the lifecycle events of a run. Attach is called once, before the run
// starts, so that the reporter can subscribe to whichever events it cares about.
type Reporter interface {
	Attach(em *emitter.Emitter)
}

// ReporterFunc is a plain callback reporter. Every registration of one is kept.
type ReporterFunc func(em *emitter.Emitter)

func (f ReporterFunc) Attach(em *emitter.Emitter) { f(em) }

// NamedReporter creates a reporter that is deduplicated by name: registering another reporter
// with the same name replaces this one.
func NamedReporter(name string, handler func(em *emitter.Emitter)) Reporter {
	return namedReporter{name: name, handler: handler}
}

type namedReporter struct {
	name    string
	handler func(em *emitter.Emitter)
}

func (n namedReporter) Attach(em *emitter.Emitter) { n.handler(em) }

// Runner owns the suites of a run and the reporters that observe it.
type Runner struct {
	em        *emitter.Emitter
	config    Configuration
	suites    []*Suite
	onSuite   []func(*Suite)
	reporters []Reporter
	attached  bool
	started   time.Time
	finished  time.Time
	summary   Summary
	lock      sync.Mutex
}

// NewRunner creates a Runner that publishes on em.
func NewRunner(em *emitter.Emitter, config Configuration) *Runner {
	if em == nil {
		panic(configErrorf("runner needs an emitter"))
	}
	if config.RunID == "" {
		config.RunID = uuid.NewString()
	}
	return &Runner{em: em, config: config, summary: Summary{RunID: config.RunID}}
}

// RunID returns the identifier of the run.
func (r *Runner) RunID() string { return r.config.RunID }

// Suites returns the registered suites.
func (r *Runner) Suites() []*Suite { return append([]*Suite(nil), r.suites...) }

// OnSuite registers a callback that configures every suite added from now on.
func (r *Runner) OnSuite(fn func(*Suite)) *Runner {
	if fn == nil {
		panic(configErrorf("OnSuite callback must not be nil"))
	}
	r.onSuite = append(r.onSuite, fn)
	return r
}

// Add registers a suite, after running the OnSuite callbacks on it. The suite must publish on
// the runner's emitter.
func (r *Runner) Add(suite *Suite) error {
	if suite == nil {
		return configErrorf("cannot add a nil suite")
	}
	if suite.em != r.em {
		return configErrorf("suite %q uses a different emitter than the runner", suite.name)
	}
	for _, fn := range r.onSuite {
		fn(suite)
	}
	r.suites = append(r.suites, suite)
	return nil
}

// RegisterReporter adds a reporter. Named reporters replace an earlier one with the same name,
// and a comparable reporter value that is already registered is not added again; other
// reporters, such as a ReporterFunc, are always added. Reporters must be registered before
// Start.
func (r *Runner) RegisterReporter(reporter Reporter) error {
	if reporter == nil {
		return configErrorf("cannot register a nil reporter")
	}
	if r.attached {
		return configErrorf("reporters must be registered before the run starts")
	}
	for i, existing := range r.reporters {
		if sameReporter(existing, reporter) {
			r.reporters[i] = reporter
			return nil
		}
	}
	r.reporters = append(r.reporters, reporter)
	return nil
}

func sameReporter(a, b Reporter) bool {
	if na, ok := a.(namedReporter); ok {
		nb, ok := b.(namedReporter)
		return ok && na.name == nb.name
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// Start attaches the reporters and publishes runner:start.
func (r *Runner) Start(ctx context.Context) error {
	if r.attached {
		return configErrorf("run has already been started")
	}
	r.attached = true
	r.started = time.Now()
	r.summary = Summary{RunID: r.config.RunID}

	r.em.On(EventTestEnd, emitter.Handle(func(_ context.Context, result TestEndPayload) error {
		r.lock.Lock()
		defer r.lock.Unlock()
		r.summary.add(result)
		return nil
	}))
	r.em.On(EventGroupEnd, emitter.Handle(func(_ context.Context, p GroupEndPayload) error {
		r.addScopeFailure(TestID{p.Suite, p.Title}, p.Errors)
		return nil
	}))
	r.em.On(EventSuiteEnd, emitter.Handle(func(_ context.Context, p SuiteEndPayload) error {
		r.addScopeFailure(TestID{p.Name}, p.Errors)
		return nil
	}))
	for _, reporter := range r.reporters {
		reporter.Attach(r.em)
	}

	r.config.Loggers.Infof("Starting run %s with %d suite(s)", r.config.RunID, len(r.suites))
	return r.em.Emit(ctx, EventRunnerStart, RunnerStartPayload{RunID: r.config.RunID})
}

func (r *Runner) addScopeFailure(id TestID, errs []error) {
	if len(errs) == 0 {
		return
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.summary.FailedScopes = append(r.summary.FailedScopes, ScopeFailure{ID: id, Errors: errs})
}

// Exec runs every suite in the order it was added. It stops at the first suite whose run could
// not proceed; failures of tests and hooks do not stop it.
func (r *Runner) Exec(ctx context.Context) error {
	if !r.attached {
		return configErrorf("run has not been started")
	}
	for _, suite := range r.suites {
		if err := suite.Exec(ctx); err != nil {
			r.config.Loggers.Errorf("Run of suite %q was aborted: %s", suite.name, err)
			return fmt.Errorf("suite %q: %w", suite.name, err)
		}
	}
	return nil
}

// End publishes runner:end with the final summary.
func (r *Runner) End(ctx context.Context) error {
	r.lock.Lock()
	r.finished = time.Now()
	r.lock.Unlock()
	summary := r.Summary()
	r.config.Loggers.Infof("Run %s finished: %d passed, %d failed, %d skipped, %d todo",
		summary.RunID, summary.Passed, summary.Failed, summary.Skipped, summary.Todo)
	return r.em.Emit(ctx, EventRunnerEnd, RunnerEndPayload{Summary: summary})
}

// Run is Start, Exec and End in sequence. End is attempted even if Exec fails.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if err := r.Start(ctx); err != nil {
		return r.Summary(), err
	}
	execErr := r.Exec(ctx)
	endErr := r.End(ctx)
	return r.Summary(), multierror.Append(execErr, endErr).ErrorOrNil()
}

// Summary returns the counts accumulated so far.
func (r *Runner) Summary() Summary {
	r.lock.Lock()
	defer r.lock.Unlock()
	ret := r.summary
	ret.FailedTests = append([]TestResult(nil), r.summary.FailedTests...)
	ret.FailedScopes = append([]ScopeFailure(nil), r.summary.FailedScopes...)
	switch {
	case !r.finished.IsZero():
		ret.Duration = r.finished.Sub(r.started)
	case !r.started.IsZero():
		ret.Duration = time.Since(r.started)
	}
	return ret
}
