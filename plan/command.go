package plan

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/launchdarkly/suite-harness/framework"
	"github.com/launchdarkly/suite-harness/framework/ldtest"
)

// CommandError is the failure of a Command whose result did not meet its expectation.
type CommandError struct {
	Command  []string
	ExitCode int
	Reason   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q %s", strings.Join(e.Command, " "), e.Reason)
}

// Exec runs the command in the scope. Its output goes to the scope's debug output. The process
// is killed when the scope's context is cancelled, which happens when a test times out.
func (c Command) Exec(t *ldtest.T) error {
	if len(c.Run) == 0 {
		return errors.New("command has an empty run list")
	}
	cmd := exec.CommandContext(t.Context(), c.Run[0], c.Run[1:]...) //nolint:gosec
	cmd.Dir = c.Dir
	if len(c.Env) != 0 {
		cmd.Env = os.Environ()
		for k, v := range c.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	t.Debug("Running %s", strings.Join(c.Run, " "))
	err := cmd.Run()
	logOutput(framework.LoggerWithPrefix(t.DebugLogger(), "stdout: "), stdout.String())
	logOutput(framework.LoggerWithPrefix(t.DebugLogger(), "stderr: "), stderr.String())

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Errorf("could not run %q: %w", c.Run[0], err)
		}
		if ctxErr := t.Context().Err(); ctxErr != nil {
			return fmt.Errorf("command %q was stopped: %w", strings.Join(c.Run, " "), ctxErr)
		}
		exitCode = exitErr.ExitCode()
	}
	fail := func(format string, args ...interface{}) error {
		return &CommandError{Command: c.Run, ExitCode: exitCode, Reason: fmt.Sprintf(format, args...)}
	}
	switch {
	case exitCode != c.Expect.ExitCode:
		return fail("exited with code %d, expected %d", exitCode, c.Expect.ExitCode)
	case !strings.Contains(stdout.String(), c.Expect.StdoutContains):
		return fail("did not write %q to stdout", c.Expect.StdoutContains)
	case !strings.Contains(stderr.String(), c.Expect.StderrContains):
		return fail("did not write %q to stderr", c.Expect.StderrContains)
	}
	return nil
}

func logOutput(logger framework.Logger, output string) {
	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		if line != "" {
			logger.Printf("%s", line)
		}
	}
}

// action adapts the command as a test action.
func (c Command) action() func(*ldtest.T) {
	return func(t *ldtest.T) {
		if err := c.Exec(t); err != nil {
			t.Errorf("%s", err)
		}
	}
}

func (c Command) setup() ldtest.SetupFunc {
	return ldtest.SetupOnly(c.Exec)
}

func (c Command) teardown() ldtest.TeardownFunc {
	return c.Exec
}
