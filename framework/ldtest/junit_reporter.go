package ldtest

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/launchdarkly/suite-harness/framework/emitter"
)

// JUnitReporter collects the results of a run and writes them as a JUnit XML file when the
// run ends. Each suite becomes a testsuite element.
type JUnitReporter struct {
	filePath string
	filters  Filters
	runID    string
	suites   []string // this slice preserves the order that the suites were run in
	results  map[string][]TestResult
	hookErrs map[string][]error
	lock     sync.Mutex
}

// Struct definitions for the JUnit XML schema - see https://github.com/jstemmer/go-junit-report

type jUnitXMLDocument struct {
	XMLName xml.Name            `xml:"testsuites"`
	Suites  []jUnitXMLTestSuite `xml:"testsuite"`
}

type jUnitXMLTestSuite struct {
	XMLName    xml.Name           `xml:"testsuite"`
	Tests      int                `xml:"tests,attr"`
	Failures   int                `xml:"failures,attr"`
	Errors     int                `xml:"errors,attr"`
	Skipped    int                `xml:"skipped,attr"`
	Time       string             `xml:"time,attr"`
	Name       string             `xml:"name,attr"`
	Properties []jUnitXMLProperty `xml:"properties>property,omitempty"`
	TestCases  []jUnitXMLTestCase `xml:"testcase"`
	SystemErr  string             `xml:"system-err,omitempty"`
}

type jUnitXMLTestCase struct {
	XMLName     xml.Name             `xml:"testcase"`
	Classname   string               `xml:"classname,attr"`
	Name        string               `xml:"name,attr"`
	Time        string               `xml:"time,attr"`
	SkipMessage *jUnitXMLSkipMessage `xml:"skipped,omitempty"`
	Failure     *jUnitXMLFailure     `xml:"failure,omitempty"`
	SystemOut   string               `xml:"system-out,omitempty"`
}

type jUnitXMLSkipMessage struct {
	Message string `xml:"message,attr"`
}

type jUnitXMLProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type jUnitXMLFailure struct {
	Message  string `xml:"message,attr"`
	Type     string `xml:"type,attr"`
	Contents string `xml:",chardata"`
}

// NewJUnitReporter creates a reporter that writes to filePath. The filters are recorded as
// properties of every testsuite.
func NewJUnitReporter(filePath string, filters Filters) *JUnitReporter {
	return &JUnitReporter{
		filePath: filePath,
		filters:  filters,
		results:  make(map[string][]TestResult),
		hookErrs: make(map[string][]error),
	}
}

// Attach subscribes the reporter to the run's events.
func (j *JUnitReporter) Attach(em *emitter.Emitter) {
	em.On(EventRunnerStart, emitter.Handle(func(_ context.Context, p RunnerStartPayload) error {
		j.lock.Lock()
		defer j.lock.Unlock()
		j.runID = p.RunID
		return nil
	}))
	em.On(EventSuiteStart, emitter.Handle(func(_ context.Context, p SuiteStartPayload) error {
		j.lock.Lock()
		defer j.lock.Unlock()
		j.suites = append(j.suites, p.Name)
		return nil
	}))
	em.On(EventTestEnd, emitter.Handle(func(_ context.Context, result TestEndPayload) error {
		if len(result.ID) == 0 {
			return nil
		}
		j.lock.Lock()
		defer j.lock.Unlock()
		j.results[result.ID[0]] = append(j.results[result.ID[0]], result)
		return nil
	}))
	em.On(EventGroupEnd, emitter.Handle(func(_ context.Context, p GroupEndPayload) error {
		j.lock.Lock()
		defer j.lock.Unlock()
		j.hookErrs[p.Suite] = append(j.hookErrs[p.Suite], p.Errors...)
		return nil
	}))
	em.On(EventSuiteEnd, emitter.Handle(func(_ context.Context, p SuiteEndPayload) error {
		j.lock.Lock()
		defer j.lock.Unlock()
		j.hookErrs[p.Name] = append(j.hookErrs[p.Name], p.Errors...)
		return nil
	}))
	em.On(EventRunnerEnd, emitter.Handle(func(_ context.Context, _ RunnerEndPayload) error {
		return j.write()
	}))
}

func (j *JUnitReporter) document() jUnitXMLDocument {
	j.lock.Lock()
	defer j.lock.Unlock()

	properties := []jUnitXMLProperty{
		{Name: "run.id", Value: j.runID},
		{Name: "tests.filter.tests", Value: j.filters.Tests.String()},
		{Name: "tests.filter.tags", Value: j.filters.Tags.String()},
		{Name: "tests.filter.groups", Value: j.filters.Groups.String()},
	}

	var doc jUnitXMLDocument
	for _, suiteName := range j.suites {
		suite := jUnitXMLTestSuite{
			Name:       suiteName,
			Properties: properties,
		}
		suiteTotalDuration := time.Duration(0)
		for _, result := range j.results[suiteName] {
			suite.Tests++
			suiteTotalDuration += result.Duration

			testCase := jUnitXMLTestCase{
				Classname: suiteName,
				Name:      strings.Join(result.ID[1:], "/"),
				Time:      jUnitDurationString(result.Duration),
			}
			switch result.Status {
			case StatusSkipped:
				suite.Skipped++
				testCase.SkipMessage = &jUnitXMLSkipMessage{Message: result.SkipReason}
			case StatusTodo:
				suite.Skipped++
				testCase.SkipMessage = &jUnitXMLSkipMessage{Message: "todo"}
			case StatusFailed:
				suite.Failures++
				testCase.Failure = &jUnitXMLFailure{
					Message:  jUnitFailureMessage(result.Errors),
					Type:     jUnitFailureType(result.Errors),
					Contents: result.DebugOutput.ToString(""),
				}
			}
			suite.TestCases = append(suite.TestCases, testCase)
		}
		if errs := j.hookErrs[suiteName]; len(errs) != 0 {
			suite.Errors = len(errs)
			suite.SystemErr = jUnitFailureMessage(errs)
		}
		suite.Time = jUnitDurationString(suiteTotalDuration)
		doc.Suites = append(doc.Suites, suite)
	}
	return doc
}

func (j *JUnitReporter) write() error {
	fmt.Printf("Writing JUnit data to %s\n", j.filePath)

	bytes, err := xml.MarshalIndent(j.document(), "", "  ")
	if err != nil {
		return err
	}
	bytes = append(bytes, '\n')

	return os.WriteFile(j.filePath, bytes, 0644) //nolint:gosec
}

func jUnitFailureMessage(errs []error) string {
	var messages []string
	for _, e := range errs {
		message := e.Error()
		if es, ok := e.(ErrorWithStacktrace); ok {
			message += "\n  Stacktrace:"
			for _, s := range es.Stacktrace {
				message += "\n    " + s.String()
			}
		}
		messages = append(messages, message)
	}
	return strings.Join(messages, "\n")
}

func jUnitFailureType(errs []error) string {
	for _, e := range errs {
		if IsTimeout(e) {
			return "timeout"
		}
	}
	for _, e := range errs {
		if _, ok := e.(*HookError); ok {
			return "hook"
		}
	}
	return ""
}

func jUnitDurationString(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
