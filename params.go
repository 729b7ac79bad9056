package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/launchdarkly/suite-harness/framework/ldtest"
)

type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

type commandParams struct {
	planFiles      stringList
	filters        ldtest.Filters
	debug          bool
	debugAll       bool
	jUnitFile      string
	jsonFile       string
	listenAddr     string
	recordFailures string
}

func (c *commandParams) Read(args []string) bool {
	fs := flag.NewFlagSet("", flag.ExitOnError)
	fs.Var(&c.planFiles, "plan", "plan file(s) declaring the suites to run")
	fs.Var(&c.filters.Tests, "tests", "title(s) of tests to run")
	fs.Var(&c.filters.Tags, "tags", "tag(s) of tests to run; prefix a tag with ! to exclude tests that have it")
	fs.Var(&c.filters.Groups, "groups", "title(s) of groups whose tests should run")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")
	fs.StringVar(&c.jUnitFile, "junit", "", "write JUnit XML output to the specified path")
	fs.StringVar(&c.jsonFile, "json", "", "write lifecycle events as JSON lines to the specified path, or - for stdout")
	fs.StringVar(&c.listenAddr, "listen", "", "serve the live event feed and metrics on this address, such as :8111")
	fs.StringVar(&c.recordFailures, "record-failures", "", "write the IDs of failed tests to the specified path")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	c.planFiles = append(c.planFiles, fs.Args()...)
	if len(c.planFiles) == 0 {
		fmt.Fprintln(os.Stderr, "at least one -plan is required")
		fs.Usage()
		return false
	}
	return true
}

// outputs says where the two kinds of standard output go. JSON lines written to stdout must not
// be interleaved with console text, so in that case the console output moves to stderr.
type outputs struct {
	console io.Writer
	events  io.Writer
}

func (c commandParams) outputs(stdout, stderr io.Writer) outputs {
	if c.jsonFile == "-" {
		return outputs{console: stderr, events: stdout}
	}
	return outputs{console: stdout}
}
