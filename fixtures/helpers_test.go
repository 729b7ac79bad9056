package fixtures

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/suite-harness/framework/emitter"
	"github.com/launchdarkly/suite-harness/framework/ldtest"
)

type fixtureRun struct {
	results  []ldtest.TestResult
	suiteEnd ldtest.SuiteEndPayload
}

// runWithSuiteSetup runs a one-test suite whose setup is the fixture.
func runWithSuiteSetup(t *testing.T, setup ldtest.SetupFunc, action func(*ldtest.T)) fixtureRun {
	var run fixtureRun
	em := emitter.New()
	em.On(ldtest.EventTestEnd, emitter.Handle(func(_ context.Context, r ldtest.TestResult) error {
		run.results = append(run.results, r)
		return nil
	}))
	em.On(ldtest.EventSuiteEnd, emitter.Handle(func(_ context.Context, p ldtest.SuiteEndPayload) error {
		run.suiteEnd = p
		return nil
	}))
	s := ldtest.NewSuite("fixtures", em, nil, ldtest.DefaultConfiguration())
	s.Setup(setup)
	s.Test("uses the fixture", action).DisableTimeout()
	require.NoError(t, s.Exec(context.Background()))
	return run
}

type requestLog struct {
	requests []string
	lock     sync.Mutex
}

func (l *requestLog) add(r string) {
	l.lock.Lock()
	l.requests = append(l.requests, r)
	l.lock.Unlock()
}

func (l *requestLog) all() []string {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]string(nil), l.requests...)
}

func (l *requestLog) handler(fn func(w http.ResponseWriter, r *http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.add(fn(w, r))
	})
}
