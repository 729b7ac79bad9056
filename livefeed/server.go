// Package livefeed serves the progress of a run over HTTP while it happens: a Server-Sent
// Events stream of lifecycle events, a JSON progress summary, and Prometheus metrics.
package livefeed

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/launchdarkly/eventsource"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/launchdarkly/suite-harness/framework"
	"github.com/launchdarkly/suite-harness/framework/emitter"
	"github.com/launchdarkly/suite-harness/framework/ldtest"
	"github.com/launchdarkly/suite-harness/reporters"
)

const eventsChannel = "events"

type lifecycleEvent struct {
	id   string
	name string
	data string
}

func (e lifecycleEvent) Id() string    { return e.id } //nolint:stylecheck
func (e lifecycleEvent) Event() string { return e.name }
func (e lifecycleEvent) Data() string  { return e.data }

type progress struct {
	runID    string
	state    string
	status   ldtest.Status
	counts   map[ldtest.Status]int
	current  string
	finished bool
}

// Feed is an http.Handler and an ldtest.Reporter. Routes:
//
//	GET /events   SSE stream; every event of the run so far is replayed to a new subscriber
//	GET /summary  JSON progress counts
//	GET /metrics  Prometheus exposition, if a gatherer was given
type Feed struct {
	streams  *eventsource.Server
	router   *mux.Router
	loggers  ldlog.Loggers
	history  []lifecycleEvent
	progress progress
	lock     sync.RWMutex
}

func NewFeed(gatherer prometheus.Gatherer, loggers ldlog.Loggers) *Feed {
	streams := eventsource.NewServer()
	streams.ReplayAll = true
	streams.Logger = framework.DebugLogger(loggers)

	f := &Feed{
		streams:  streams,
		loggers:  loggers,
		progress: progress{state: "idle", counts: make(map[ldtest.Status]int)},
	}
	streams.Register(eventsChannel, f)

	router := mux.NewRouter()
	router.HandleFunc("/events", streams.Handler(eventsChannel)).Methods("GET")
	router.HandleFunc("/summary", f.serveSummary).Methods("GET")
	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
	f.router = router
	return f
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.router.ServeHTTP(w, r)
}

// Close disconnects every subscriber.
func (f *Feed) Close() {
	f.streams.Close()
}

func (f *Feed) Attach(em *emitter.Emitter) {
	for _, event := range []string{
		ldtest.EventRunnerStart, ldtest.EventSuiteStart, ldtest.EventGroupStart, ldtest.EventTestStart,
		ldtest.EventTestEnd, ldtest.EventGroupEnd, ldtest.EventSuiteEnd, ldtest.EventRunnerEnd,
	} {
		event := event
		em.On(event, func(_ context.Context, payload interface{}) error {
			return f.publish(event, payload)
		})
	}
}

func (f *Feed) publish(name string, payload interface{}) error {
	data, err := reporters.EncodeEvent(name, payload)
	if err != nil {
		return err
	}
	f.lock.Lock()
	f.track(payload)
	e := lifecycleEvent{id: strconv.Itoa(len(f.history) + 1), name: name, data: string(data)}
	f.history = append(f.history, e)
	f.lock.Unlock()

	f.loggers.Debugf("Publishing %s event %s", name, e.id)
	f.streams.Publish([]string{eventsChannel}, e)
	return nil
}

func (f *Feed) track(payload interface{}) {
	p := &f.progress
	switch v := payload.(type) {
	case ldtest.RunnerStartPayload:
		p.runID = v.RunID
		p.state = "running"
	case ldtest.TestStartPayload:
		p.current = v.ID.String()
	case ldtest.TestResult:
		p.counts[v.Status]++
		p.current = ""
	case ldtest.RunnerEndPayload:
		p.state = "finished"
		p.status = v.Summary.Status()
		p.finished = true
	}
}

// Replay implements eventsource.Repository. Subscribers that send a Last-Event-ID receive only
// the events after it.
func (f *Feed) Replay(channel, id string) chan eventsource.Event {
	f.lock.RLock()
	events := f.history
	f.lock.RUnlock()

	if last, err := strconv.Atoi(id); err == nil && last >= 0 {
		if last > len(events) {
			last = len(events)
		}
		events = events[last:]
	}
	ch := make(chan eventsource.Event, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return ch
}

func (f *Feed) serveSummary(w http.ResponseWriter, r *http.Request) {
	f.lock.RLock()
	p := f.progress
	total := 0
	for _, n := range p.counts {
		total += n
	}
	jw := jwriter.NewWriter()
	obj := jw.Object()
	obj.Name("runId").String(p.runID)
	obj.Name("state").String(p.state)
	obj.Maybe("status", p.finished).String(string(p.status))
	obj.Maybe("current", p.current != "").String(p.current)
	counts := obj.Name("counts").Object()
	for _, status := range []ldtest.Status{
		ldtest.StatusPassed, ldtest.StatusFailed, ldtest.StatusSkipped, ldtest.StatusTodo,
	} {
		counts.Name(string(status)).Int(p.counts[status])
	}
	counts.Name("total").Int(total)
	counts.End()
	obj.End()
	f.lock.RUnlock()

	if err := jw.Error(); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(jw.Bytes())
}
