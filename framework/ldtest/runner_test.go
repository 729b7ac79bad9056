package ldtest

import (
	"context"
	"errors"
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/suite-harness/framework/emitter"
)

type countingReporter struct {
	attached int
}

func (c *countingReporter) Attach(*emitter.Emitter) { c.attached++ }

func TestRunnerRunsSuitesAndAggregatesSummary(t *testing.T) {
	em, rec := newRecordingEmitter()
	runner := NewRunner(em, DefaultConfiguration())

	s1 := newTestSuite("one", em, nil)
	s1.Test("passes", noAction)
	s1.Test("fails", func(ldt *T) { ldt.Errorf("broken") })
	s2 := newTestSuite("two", em, nil)
	s2.Test("skips", func(ldt *T) { ldt.Skip() })
	s2.Test("todo", nil)
	require.NoError(t, runner.Add(s1))
	require.NoError(t, runner.Add(s2))

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Todo)
	assert.Equal(t, 4, summary.Total)
	assert.False(t, summary.OK())
	assert.Equal(t, StatusFailed, summary.Status())
	require.Len(t, summary.FailedTests, 1)
	assert.Equal(t, TestID{"one", "fails"}, summary.FailedTests[0].ID)
	assert.Equal(t, runner.RunID(), summary.RunID)
	assert.NotEmpty(t, summary.RunID)

	names := rec.names()
	assert.Equal(t, EventRunnerStart, names[0])
	assert.Equal(t, EventRunnerEnd, names[len(names)-1])
	end := rec.payloadOf(EventRunnerEnd).(RunnerEndPayload)
	assert.Equal(t, summary.Total, end.Summary.Total)
}

func TestRunnerPassesWhenNothingFails(t *testing.T) {
	em := emitter.New()
	config := DefaultConfiguration()
	config.RunID = "fixed"
	runner := NewRunner(em, config)
	s := newTestSuite("s", em, nil)
	s.Test("ok", noAction)
	require.NoError(t, runner.Add(s))

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.OK())
	assert.Equal(t, StatusPassed, summary.Status())
	assert.Equal(t, "fixed", summary.RunID)
}

func TestRunnerCountsHookFailuresOfScopes(t *testing.T) {
	em := emitter.New()
	runner := NewRunner(em, DefaultConfiguration())
	s := newTestSuite("s", em, nil)
	s.Group("g", func(g *Group) {
		g.Teardown(func(*T) error { return errors.New("could not release") })
		g.Test("ok", noAction)
	})
	require.NoError(t, runner.Add(s))

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Passed)
	assert.False(t, summary.OK())
	require.Len(t, summary.FailedScopes, 1)
	assert.Equal(t, TestID{"s", "g"}, summary.FailedScopes[0].ID)
}

func TestRunnerOnSuiteRunsBeforeSuiteIsAdded(t *testing.T) {
	em := emitter.New()
	runner := NewRunner(em, DefaultConfiguration())
	var seen []int
	runner.OnSuite(func(s *Suite) {
		seen = append(seen, len(runner.Suites()))
		s.OnTest(func(test *Test) { test.DisableTimeout() })
	})
	s := newTestSuite("s", em, nil)
	require.NoError(t, runner.Add(s))
	test := s.Test("t", noAction)

	assert.Equal(t, []int{0}, seen)
	assert.Equal(t, 0, int(test.Options().Timeout))
}

func TestRunnerRejectsSuiteWithOtherEmitter(t *testing.T) {
	runner := NewRunner(emitter.New(), DefaultConfiguration())
	err := runner.Add(newTestSuite("s", emitter.New(), nil))
	var cerr *ConfigurationError
	assert.True(t, errors.As(err, &cerr))
	assert.Error(t, runner.Add(nil))
}

func TestRunnerReporterRegistration(t *testing.T) {
	t.Run("named reporters dedupe by name", func(t *testing.T) {
		em := emitter.New()
		runner := NewRunner(em, DefaultConfiguration())
		var calls []string
		require.NoError(t, runner.RegisterReporter(NamedReporter("console", func(*emitter.Emitter) {
			calls = append(calls, "first")
		})))
		require.NoError(t, runner.RegisterReporter(NamedReporter("console", func(*emitter.Emitter) {
			calls = append(calls, "second")
		})))
		require.NoError(t, runner.RegisterReporter(NamedReporter("json", func(*emitter.Emitter) {
			calls = append(calls, "json")
		})))
		require.NoError(t, runner.Start(context.Background()))
		assert.Equal(t, []string{"second", "json"}, calls)
	})

	t.Run("plain callbacks always append", func(t *testing.T) {
		em := emitter.New()
		runner := NewRunner(em, DefaultConfiguration())
		calls := 0
		fn := ReporterFunc(func(*emitter.Emitter) { calls++ })
		require.NoError(t, runner.RegisterReporter(fn))
		require.NoError(t, runner.RegisterReporter(fn))
		require.NoError(t, runner.Start(context.Background()))
		assert.Equal(t, 2, calls)
	})

	t.Run("the same reporter value is registered once", func(t *testing.T) {
		em := emitter.New()
		runner := NewRunner(em, DefaultConfiguration())
		reporter := &countingReporter{}
		require.NoError(t, runner.RegisterReporter(reporter))
		require.NoError(t, runner.RegisterReporter(reporter))
		require.NoError(t, runner.RegisterReporter(&countingReporter{}))
		require.NoError(t, runner.Start(context.Background()))
		assert.Equal(t, 1, reporter.attached)
	})

	t.Run("registration after start is rejected", func(t *testing.T) {
		runner := NewRunner(emitter.New(), DefaultConfiguration())
		require.NoError(t, runner.Start(context.Background()))
		var cerr *ConfigurationError
		assert.True(t, errors.As(runner.RegisterReporter(&countingReporter{}), &cerr))
		assert.True(t, errors.As(runner.Start(context.Background()), &cerr))
	})

	t.Run("nil reporter is rejected", func(t *testing.T) {
		runner := NewRunner(emitter.New(), DefaultConfiguration())
		assert.Error(t, runner.RegisterReporter(nil))
	})
}

func TestRunnerReportersSeeEventsBeforeRunnerEnd(t *testing.T) {
	em := emitter.New()
	runner := NewRunner(em, DefaultConfiguration())
	var seenTotal int
	require.NoError(t, runner.RegisterReporter(ReporterFunc(func(em *emitter.Emitter) {
		em.On(EventRunnerEnd, emitter.Handle(func(_ context.Context, p RunnerEndPayload) error {
			seenTotal = p.Summary.Total
			return nil
		}))
	})))
	s := newTestSuite("s", em, nil)
	s.Test("a", noAction)
	s.Test("b", noAction)
	require.NoError(t, runner.Add(s))

	_, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, seenTotal)
}

func TestRunnerExecStopsAtFatalError(t *testing.T) {
	em := emitter.New()
	mockLog := ldlogtest.NewMockLog()
	config := DefaultConfiguration()
	config.Loggers = mockLog.Loggers
	runner := NewRunner(em, config)
	broken := errors.New("listener broke")
	em.On(EventSuiteStart, func(context.Context, interface{}) error { return broken })

	ran := false
	s1 := NewSuite("one", em, nil, config)
	s1.Test("a", noAction)
	s2 := NewSuite("two", em, nil, config)
	s2.Test("b", func(*T) { ran = true })
	require.NoError(t, runner.Add(s1))
	require.NoError(t, runner.Add(s2))

	_, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, broken))
	assert.False(t, ran)
	assert.True(t, mockLog.HasMessageMatch(ldlog.Error, `Run of suite "one" was aborted`))
}

func TestRunnerExecRequiresStart(t *testing.T) {
	runner := NewRunner(emitter.New(), DefaultConfiguration())
	assert.Error(t, runner.Exec(context.Background()))
}
