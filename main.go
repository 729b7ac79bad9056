package main

import (
	"context"
	_ "embed" // this is required in order for go:embed to work
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/launchdarkly/suite-harness/framework/emitter"
	"github.com/launchdarkly/suite-harness/framework/ldtest"
	"github.com/launchdarkly/suite-harness/livefeed"
	"github.com/launchdarkly/suite-harness/plan"
	"github.com/launchdarkly/suite-harness/reporters"
)

const shutdownTimeout = time.Second * 5

//go:embed VERSION
var versionString string

func main() {
	var params commandParams
	if !params.Read(os.Args) {
		os.Exit(1)
	}
	out := params.outputs(os.Stdout, os.Stderr)
	fmt.Fprintf(out.console, "suite-harness v%s\n", strings.TrimSpace(versionString))

	summary, err := run(params, out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !summary.OK() {
		os.Exit(1)
	}
}

func run(params commandParams, out outputs) (ldtest.Summary, error) {
	var loggers ldlog.Loggers
	loggers.SetBaseLogger(log.New(os.Stderr, "", log.LstdFlags))
	if params.debugAll {
		loggers.SetMinLevel(ldlog.Debug)
	} else {
		loggers.SetMinLevel(ldlog.Warn)
	}

	refiner, err := ldtest.NewRefiner(params.filters)
	if err != nil {
		return ldtest.Summary{}, err
	}
	plans, err := plan.LoadFiles(params.planFiles...)
	if err != nil {
		return ldtest.Summary{}, err
	}

	em := emitter.New()
	reporterFailed := false
	em.OnError(func(err *emitter.ListenerError) {
		loggers.Errorf("Reporter failed: %s", err)
		reporterFailed = true
	})

	config := ldtest.DefaultConfiguration()
	config.Loggers = loggers
	runner := ldtest.NewRunner(em, config)

	suites, err := plan.Build(plans, em, refiner, config)
	if err != nil {
		return ldtest.Summary{}, err
	}
	for _, s := range suites {
		if err := runner.Add(s); err != nil {
			return ldtest.Summary{}, err
		}
	}

	closers, err := registerReporters(runner, params, out, loggers)
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				loggers.Errorf("Error while shutting down: %s", err)
			}
		}
	}()
	if err != nil {
		return ldtest.Summary{}, err
	}

	ldtest.PrintFilterDescription(out.console, refiner)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	summary, err := runner.Run(ctx)
	if err != nil {
		return summary, err
	}

	if params.recordFailures != "" {
		if err := recordFailures(params.recordFailures, summary); err != nil {
			return summary, err
		}
	}
	if reporterFailed {
		return summary, errors.New("at least one reporter failed; see log for details")
	}
	return summary, nil
}

func registerReporters(runner *ldtest.Runner, params commandParams, out outputs, loggers ldlog.Loggers) ([]io.Closer, error) {
	var closers []io.Closer

	console := ldtest.ConsoleReporter{
		Out:                  out.console,
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	if err := runner.RegisterReporter(console); err != nil {
		return closers, err
	}
	if params.jUnitFile != "" {
		if err := runner.RegisterReporter(ldtest.NewJUnitReporter(params.jUnitFile, params.filters)); err != nil {
			return closers, err
		}
	}
	if params.jsonFile != "" {
		events := out.events
		if events == nil {
			f, err := os.Create(params.jsonFile)
			if err != nil {
				return closers, fmt.Errorf("cannot create JSON output file: %w", err)
			}
			closers = append(closers, f)
			events = f
		}
		if err := runner.RegisterReporter(reporters.NewJSONReporter(events)); err != nil {
			return closers, err
		}
	}
	if params.listenAddr != "" {
		registry := prometheus.NewRegistry()
		feed := livefeed.NewFeed(registry, loggers)
		if err := runner.RegisterReporter(reporters.NewMetricsReporter(registry)); err != nil {
			return closers, err
		}
		if err := runner.RegisterReporter(feed); err != nil {
			return closers, err
		}
		server := &http.Server{Addr: params.listenAddr, Handler: feed, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				loggers.Errorf("Live feed server failed: %s", err)
			}
		}()
		fmt.Fprintf(out.console, "Serving live feed on %s\n", params.listenAddr)
		closers = append(closers, closerFunc(func() error {
			feed.Close()
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(ctx)
		}))
	}
	return closers, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func recordFailures(path string, summary ldtest.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create failures file: %w", err)
	}
	for _, result := range summary.FailedTests {
		_, _ = fmt.Fprintln(f, result.ID)
	}
	return f.Close()
}
