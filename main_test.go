package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/suite-harness/framework/emitter"
	"github.com/launchdarkly/suite-harness/framework/ldtest"
)

func TestOutputsMoveConsoleToStderrWhenJSONGoesToStdout(t *testing.T) {
	var stdout, stderr bytes.Buffer

	out := commandParams{jsonFile: "-"}.outputs(&stdout, &stderr)
	assert.Same(t, &stderr, out.console)
	assert.Same(t, &stdout, out.events)

	out = commandParams{jsonFile: "events.jsonl"}.outputs(&stdout, &stderr)
	assert.Same(t, &stdout, out.console)
	assert.Nil(t, out.events)

	out = commandParams{}.outputs(&stdout, &stderr)
	assert.Same(t, &stdout, out.console)
}

func TestJSONOnStdoutIsNotMixedWithConsoleOutput(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = saved })

	var stdout, stderr bytes.Buffer
	params := commandParams{jsonFile: "-"}
	out := params.outputs(&stdout, &stderr)

	em := emitter.New()
	config := ldtest.DefaultConfiguration()
	runner := ldtest.NewRunner(em, config)
	closers, err := registerReporters(runner, params, out, ldlog.NewDisabledLoggers())
	require.NoError(t, err)
	assert.Len(t, closers, 0)

	s := ldtest.NewSuite("s", em, nil, config)
	s.Test("passes", func(*ldtest.T) {})
	require.NoError(t, runner.Add(s))
	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.True(t, json.Valid([]byte(line)), "not a JSON line: %q", line)
		assert.True(t, strings.HasPrefix(line, `{"event":`), "not an event: %q", line)
	}
	assert.Contains(t, stderr.String(), "[s/passes]")
}
