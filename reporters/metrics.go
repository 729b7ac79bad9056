package reporters

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/launchdarkly/suite-harness/framework/emitter"
	"github.com/launchdarkly/suite-harness/framework/ldtest"
)

const MetricsNamespace = "suite_harness"

// MetricsReporter maintains Prometheus metrics describing test outcomes.
type MetricsReporter struct {
	testsTotal    *prometheus.CounterVec
	testDuration  *prometheus.HistogramVec
	retriesTotal  *prometheus.CounterVec
	scopeFailures *prometheus.CounterVec
	testsRunning  prometheus.Gauge
	runsTotal     *prometheus.CounterVec
}

// NewMetricsReporter creates the metrics and registers them with reg. Passing nil registers
// nothing, which is useful when the metrics are only read back directly.
func NewMetricsReporter(reg prometheus.Registerer) *MetricsReporter {
	factory := promauto.With(reg)
	return &MetricsReporter{
		testsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "tests_total",
			Help:      "Count of finished tests",
		}, []string{
			"suite",
			"status",
		}),
		testDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "test_duration_seconds",
			Help:      "Duration of executed tests, including retries",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{
			"suite",
		}),
		retriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "test_retries_total",
			Help:      "Count of extra attempts made for failing tests",
		}, []string{
			"suite",
		}),
		scopeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "hook_failures_total",
			Help:      "Count of suites and groups whose own setup or teardown failed",
		}, []string{
			"suite",
			"scope",
		}),
		testsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "tests_running",
			Help:      "Number of tests currently executing",
		}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "runs_total",
			Help:      "Count of completed runs",
		}, []string{
			"status",
		}),
	}
}

func (m *MetricsReporter) Attach(em *emitter.Emitter) {
	em.On(ldtest.EventTestStart, emitter.Handle(func(context.Context, ldtest.TestStartPayload) error {
		m.testsRunning.Inc()
		return nil
	}))
	em.On(ldtest.EventTestEnd, emitter.Handle(func(_ context.Context, r ldtest.TestResult) error {
		m.testsRunning.Dec()
		suite := r.ID[0]
		m.testsTotal.WithLabelValues(suite, string(r.Status)).Inc()
		if r.Status == ldtest.StatusPassed || r.Status == ldtest.StatusFailed {
			m.testDuration.WithLabelValues(suite).Observe(r.Duration.Seconds())
		}
		if r.Attempts > 1 {
			m.retriesTotal.WithLabelValues(suite).Add(float64(r.Attempts - 1))
		}
		return nil
	}))
	em.On(ldtest.EventGroupEnd, emitter.Handle(func(_ context.Context, p ldtest.GroupEndPayload) error {
		if len(p.Errors) != 0 {
			m.scopeFailures.WithLabelValues(p.Suite, "group").Inc()
		}
		return nil
	}))
	em.On(ldtest.EventSuiteEnd, emitter.Handle(func(_ context.Context, p ldtest.SuiteEndPayload) error {
		if len(p.Errors) != 0 {
			m.scopeFailures.WithLabelValues(p.Name, "suite").Inc()
		}
		return nil
	}))
	em.On(ldtest.EventRunnerEnd, emitter.Handle(func(_ context.Context, p ldtest.RunnerEndPayload) error {
		m.runsTotal.WithLabelValues(string(p.Summary.Status())).Inc()
		return nil
	}))
}
