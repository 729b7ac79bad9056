package reporters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/suite-harness/framework/emitter"
	"github.com/launchdarkly/suite-harness/framework/ldtest"
)

func runSample(t *testing.T, reporter ldtest.Reporter) ldtest.Summary {
	em := emitter.New()
	config := ldtest.DefaultConfiguration()
	config.RunID = "run-1"
	runner := ldtest.NewRunner(em, config)
	require.NoError(t, runner.RegisterReporter(reporter))

	s := ldtest.NewSuite("sample", em, nil, config)
	s.Test("passes", func(*ldtest.T) {}).Tag("@fast")
	s.Test("fails", func(ldt *ldtest.T) { ldt.Errorf("expected a thing") })
	attempts := 0
	s.Test("flaky", func(ldt *ldtest.T) {
		attempts++
		if attempts < 3 {
			ldt.Errorf("not yet")
		}
	}).Retry(2)
	s.Test("skips", func(ldt *ldtest.T) { ldt.SkipWithReason("not supported") })
	s.Group("db", func(g *ldtest.Group) {
		g.Test("reads", func(*ldtest.T) {}).Timeout(time.Second)
		g.Teardown(func(*ldtest.T) error { return errors.New("release failed") })
	})
	s.Test("later", nil)
	require.NoError(t, runner.Add(s))

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	return summary
}
