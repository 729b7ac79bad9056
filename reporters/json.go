package reporters

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/launchdarkly/suite-harness/framework/emitter"
	"github.com/launchdarkly/suite-harness/framework/ldtest"
)

// JSONReporter writes every lifecycle event as one JSON object per line.
type JSONReporter struct {
	out  io.Writer
	lock sync.Mutex
}

func NewJSONReporter(out io.Writer) *JSONReporter {
	return &JSONReporter{out: out}
}

func (j *JSONReporter) Attach(em *emitter.Emitter) {
	for _, event := range allEvents {
		event := event
		em.On(event, func(_ context.Context, payload interface{}) error {
			return j.write(EncodeEvent(event, payload))
		})
	}
}

func (j *JSONReporter) write(line []byte, err error) error {
	if err != nil {
		return err
	}
	j.lock.Lock()
	defer j.lock.Unlock()
	_, err = j.out.Write(append(line, '\n'))
	return err
}

var allEvents = []string{
	ldtest.EventRunnerStart,
	ldtest.EventSuiteStart,
	ldtest.EventGroupStart,
	ldtest.EventTestStart,
	ldtest.EventTestEnd,
	ldtest.EventGroupEnd,
	ldtest.EventSuiteEnd,
	ldtest.EventRunnerEnd,
}

// EncodeEvent serializes a lifecycle event to a single-line JSON object. Payloads that are not
// one of the ldtest payload types produce an object with only the event name.
func EncodeEvent(event string, payload interface{}) ([]byte, error) {
	w := jwriter.NewWriter()
	obj := w.Object()
	obj.Name("event").String(event)
	switch p := payload.(type) {
	case ldtest.RunnerStartPayload:
		obj.Name("runId").String(p.RunID)
	case ldtest.SuiteStartPayload:
		obj.Name("suite").String(p.Name)
	case ldtest.GroupStartPayload:
		obj.Name("suite").String(p.Suite)
		obj.Name("group").String(p.Title)
	case ldtest.TestStartPayload:
		writeID(&obj, p.ID)
		writeStrings(obj.Name("tags"), p.Tags)
	case ldtest.TestResult:
		writeID(&obj, p.ID)
		writeStrings(obj.Name("tags"), p.Tags)
		obj.Name("status").String(string(p.Status))
		writeDuration(&obj, p.Duration)
		obj.Maybe("attempts", p.Attempts > 1).Int(p.Attempts)
		obj.Maybe("skipReason", p.SkipReason != "").String(p.SkipReason)
		writeErrors(&obj, p.Errors)
	case ldtest.GroupEndPayload:
		obj.Name("suite").String(p.Suite)
		obj.Name("group").String(p.Title)
		obj.Name("status").String(string(p.Status))
		writeDuration(&obj, p.Duration)
		writeErrors(&obj, p.Errors)
	case ldtest.SuiteEndPayload:
		obj.Name("suite").String(p.Name)
		obj.Name("status").String(string(p.Status))
		writeDuration(&obj, p.Duration)
		writeErrors(&obj, p.Errors)
	case ldtest.RunnerEndPayload:
		s := p.Summary
		obj.Name("runId").String(s.RunID)
		obj.Name("status").String(string(s.Status()))
		counts := obj.Name("counts").Object()
		counts.Name("passed").Int(s.Passed)
		counts.Name("failed").Int(s.Failed)
		counts.Name("skipped").Int(s.Skipped)
		counts.Name("todo").Int(s.Todo)
		counts.Name("total").Int(s.Total)
		counts.End()
		writeDuration(&obj, s.Duration)
	}
	obj.End()
	return w.Bytes(), w.Error()
}

func writeID(obj *jwriter.ObjectState, id ldtest.TestID) {
	if len(id) != 0 {
		obj.Name("suite").String(id[0])
	}
	obj.Name("id").String(id.String())
}

func writeStrings(w *jwriter.Writer, values []string) {
	arr := w.Array()
	for _, v := range values {
		w.String(v)
	}
	arr.End()
}

func writeDuration(obj *jwriter.ObjectState, d time.Duration) {
	obj.Name("durationMs").Float64(float64(d) / float64(time.Millisecond))
}

func writeErrors(obj *jwriter.ObjectState, errs []error) {
	if len(errs) == 0 {
		return
	}
	writeStrings(obj.Name("errors"), errorMessages(errs))
}

func errorMessages(errs []error) []string {
	ret := make([]string, 0, len(errs))
	for _, err := range errs {
		ret = append(ret, err.Error())
	}
	return ret
}
