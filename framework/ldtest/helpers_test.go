package ldtest

import (
	"context"
	"sync"

	"github.com/launchdarkly/suite-harness/framework/emitter"
)

var allEvents = []string{ //nolint:gochecknoglobals
	EventRunnerStart, EventSuiteStart, EventGroupStart, EventTestStart,
	EventTestEnd, EventGroupEnd, EventSuiteEnd, EventRunnerEnd,
}

type recordedEvent struct {
	name    string
	payload interface{}
}

type eventRecorder struct {
	events []recordedEvent
	lock   sync.Mutex
}

func newRecordingEmitter() (*emitter.Emitter, *eventRecorder) {
	em := emitter.New()
	rec := &eventRecorder{}
	for _, name := range allEvents {
		name := name
		em.On(name, func(_ context.Context, payload interface{}) error {
			rec.lock.Lock()
			defer rec.lock.Unlock()
			rec.events = append(rec.events, recordedEvent{name: name, payload: payload})
			return nil
		})
	}
	return em, rec
}

func (r *eventRecorder) names() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	ret := []string{}
	for _, e := range r.events {
		ret = append(ret, e.name)
	}
	return ret
}

func (r *eventRecorder) results() []TestResult {
	r.lock.Lock()
	defer r.lock.Unlock()
	var ret []TestResult
	for _, e := range r.events {
		if result, ok := e.payload.(TestResult); ok {
			ret = append(ret, result)
		}
	}
	return ret
}

func (r *eventRecorder) result(title string) (TestResult, bool) {
	for _, result := range r.results() {
		if result.Title == title {
			return result, true
		}
	}
	return TestResult{}, false
}

func (r *eventRecorder) payloadOf(name string) interface{} {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, e := range r.events {
		if e.name == name {
			return e.payload
		}
	}
	return nil
}

// runInScope runs an action the same way a test action is run, and returns the scope.
func runInScope(action func(*T)) *T {
	t := newScope(context.Background(), nil, TestID{"scope"}, nil)
	t.invoke(action)
	t.close()
	return t
}

func newTestSuite(name string, em *emitter.Emitter, refiner *Refiner) *Suite {
	return NewSuite(name, em, refiner, DefaultConfiguration())
}

func noAction(*T) {}
