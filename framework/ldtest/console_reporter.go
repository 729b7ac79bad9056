package ldtest

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/launchdarkly/suite-harness/framework/emitter"
)

var consoleTestErrorColor = color.New(color.FgYellow)              //nolint:gochecknoglobals
var consoleTestFailedColor = color.New(color.FgRed)                //nolint:gochecknoglobals
var consoleTestSkippedColor = color.New(color.Faint, color.FgBlue) //nolint:gochecknoglobals
var consoleTestTodoColor = color.New(color.FgCyan)                 //nolint:gochecknoglobals
var consoleDebugOutputColor = color.New(color.Faint)               //nolint:gochecknoglobals
var allTestsPassedColor = color.New(color.FgGreen)                 //nolint:gochecknoglobals

// ConsoleReporter prints the progress of a run as it happens, followed by a summary table.
type ConsoleReporter struct {
	// Out is where output goes; os.Stdout if nil.
	Out                  io.Writer
	DebugOutputOnFailure bool
	DebugOutputOnSuccess bool
}

func (c ConsoleReporter) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// Attach subscribes the reporter to the run's events.
func (c ConsoleReporter) Attach(em *emitter.Emitter) {
	em.On(EventSuiteStart, emitter.Handle(func(_ context.Context, p SuiteStartPayload) error {
		_, err := fmt.Fprintf(c.out(), "[%s]\n", p.Name)
		return err
	}))
	em.On(EventTestStart, emitter.Handle(func(_ context.Context, p TestStartPayload) error {
		_, err := fmt.Fprintf(c.out(), "[%s]\n", p.ID)
		return err
	}))
	em.On(EventTestEnd, emitter.Handle(func(_ context.Context, result TestEndPayload) error {
		c.testFinished(result)
		return nil
	}))
	em.On(EventGroupEnd, emitter.Handle(func(_ context.Context, p GroupEndPayload) error {
		c.scopeErrors(TestID{p.Suite, p.Title}, p.Errors)
		return nil
	}))
	em.On(EventSuiteEnd, emitter.Handle(func(_ context.Context, p SuiteEndPayload) error {
		c.scopeErrors(TestID{p.Name}, p.Errors)
		return nil
	}))
	em.On(EventRunnerEnd, emitter.Handle(func(_ context.Context, p RunnerEndPayload) error {
		PrintSummary(c.out(), p.Summary)
		return nil
	}))
}

func (c ConsoleReporter) testFinished(result TestResult) {
	w := c.out()
	for _, err := range result.Errors {
		printConsoleError(w, err)
	}
	switch result.Status {
	case StatusFailed:
		_, _ = consoleTestFailedColor.Fprintf(w, "  FAILED: %s\n", result.ID)
	case StatusSkipped:
		if result.SkipReason == "" {
			_, _ = consoleTestSkippedColor.Fprintf(w, "  SKIPPED: %s\n", result.ID)
		} else {
			_, _ = consoleTestSkippedColor.Fprintf(w, "  SKIPPED: %s (%s)\n", result.ID, result.SkipReason)
		}
	case StatusTodo:
		_, _ = consoleTestTodoColor.Fprintf(w, "  TODO: %s\n", result.ID)
	}
	if result.Attempts > 1 {
		_, _ = fmt.Fprintf(w, "  (%d attempts)\n", result.Attempts)
	}
	failed := result.Failed()
	if len(result.DebugOutput) > 0 &&
		((failed && c.DebugOutputOnFailure) || (!failed && c.DebugOutputOnSuccess)) {
		_, _ = consoleDebugOutputColor.Fprintln(w, result.DebugOutput.ToString("    DEBUG "))
	}
}

func (c ConsoleReporter) scopeErrors(id TestID, errs []error) {
	if len(errs) == 0 {
		return
	}
	w := c.out()
	for _, err := range errs {
		printConsoleError(w, err)
	}
	_, _ = consoleTestFailedColor.Fprintf(w, "  FAILED: %s\n", id)
}

func printConsoleError(w io.Writer, err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		_, _ = consoleTestErrorColor.Fprintf(w, "  %s\n", line)
	}
}

// PrintSummary writes the final counts of a run as a table, followed by the list of failures.
func PrintSummary(w io.Writer, summary Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Run %s", summary.RunID)
	t.AppendHeader(table.Row{"PASSED", "FAILED", "SKIPPED", "TODO", "TOTAL", "DURATION", "STATUS"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "PASSED", Align: text.AlignRight},
		{Name: "FAILED", Align: text.AlignRight},
		{Name: "SKIPPED", Align: text.AlignRight},
		{Name: "TODO", Align: text.AlignRight},
		{Name: "TOTAL", Align: text.AlignRight},
		{Name: "DURATION", Align: text.AlignRight},
	})
	t.AppendRow(table.Row{
		summary.Passed,
		summary.Failed,
		summary.Skipped,
		summary.Todo,
		summary.Total,
		summary.Duration.Round(time.Millisecond).String(),
		strings.ToUpper(string(summary.Status())),
	})
	t.SetStyle(table.StyleLight)
	t.Render()

	if summary.OK() {
		_, _ = allTestsPassedColor.Fprintln(w, "All tests passed")
		return
	}
	if len(summary.FailedTests) != 0 {
		_, _ = consoleTestFailedColor.Fprintf(w, "FAILED TESTS (%d):\n", len(summary.FailedTests))
		for _, f := range summary.FailedTests {
			_, _ = consoleTestFailedColor.Fprintf(w, "  * %s\n", f.ID)
		}
	}
	if len(summary.FailedScopes) != 0 {
		_, _ = consoleTestFailedColor.Fprintf(w, "FAILED HOOKS (%d):\n", len(summary.FailedScopes))
		for _, f := range summary.FailedScopes {
			_, _ = consoleTestFailedColor.Fprintf(w, "  * %s\n", f.ID)
		}
	}
}
