package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/launchdarkly/suite-harness/fixtures"
)

// Plan declares one suite.
type Plan struct {
	Suite    string      `json:"suite"`
	Setup    []Command   `json:"setup"`
	Teardown []Command   `json:"teardown"`
	Fixtures []Fixture   `json:"fixtures"`
	Tests    []TestSpec  `json:"tests"`
	Groups   []GroupSpec `json:"groups"`

	Source Source `json:"-"`
}

// Command runs a program. It succeeds if the program exits with the expected code and its
// output contains the expected text.
type Command struct {
	Run    []string          `json:"run"`
	Dir    string            `json:"dir"`
	Env    map[string]string `json:"env"`
	Expect Expectation       `json:"expect"`
}

type Expectation struct {
	ExitCode       int    `json:"exitCode"`
	StdoutContains string `json:"stdoutContains"`
	StderrContains string `json:"stderrContains"`
}

type TestSpec struct {
	Command
	Title      string    `json:"title"`
	Tags       []string  `json:"tags"`
	Timeout    *Duration `json:"timeout"`
	Retries    int       `json:"retries"`
	Pin        bool      `json:"pin"`
	Skip       bool      `json:"skip"`
	SkipReason string    `json:"skipReason"`
	Todo       bool      `json:"todo"`
	Setup      []Command `json:"setup"`
	Teardown   []Command `json:"teardown"`
}

type GroupSpec struct {
	Title    string     `json:"title"`
	Each     EachSpec   `json:"each"`
	Setup    []Command  `json:"setup"`
	Teardown []Command  `json:"teardown"`
	Tests    []TestSpec `json:"tests"`
}

// EachSpec holds defaults for every test of a group. A test's own settings take precedence.
type EachSpec struct {
	Timeout    *Duration `json:"timeout"`
	Retries    *int      `json:"retries"`
	Tags       []string  `json:"tags"`
	Skip       bool      `json:"skip"`
	SkipReason string    `json:"skipReason"`
	Setup      []Command `json:"setup"`
	Teardown   []Command `json:"teardown"`
}

// Fixture names exactly one external store to prepare for the suite.
type Fixture struct {
	Redis    *fixtures.RedisOptions    `json:"redis"`
	Consul   *fixtures.ConsulOptions   `json:"consul"`
	DynamoDB *fixtures.DynamoDBOptions `json:"dynamodb"`
}

// Duration is written as a Go duration string such as "1.5s", or as a number of milliseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		ms, numErr := strconv.ParseFloat(string(data), 64)
		if numErr != nil {
			return fmt.Errorf("invalid duration %s", data)
		}
		*d = Duration(ms * float64(time.Millisecond))
		return nil
	}
	if s == "0" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Parse decodes a plan document and checks it.
func Parse(source Source) (*Plan, error) {
	var p Plan
	if err := decode(source.Data, &p); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", source.describe(), err)
	}
	p.Source = source
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid plan %s: %w", source.describe(), err)
	}
	return &p, nil
}

func (p *Plan) validate() error {
	if p.Suite == "" {
		return errors.New("suite name is required")
	}
	for _, c := range append(append([]Command(nil), p.Setup...), p.Teardown...) {
		if len(c.Run) == 0 {
			return fmt.Errorf("suite hook of %q has an empty run list", p.Suite)
		}
	}
	for i, f := range p.Fixtures {
		n := 0
		for _, set := range []bool{f.Redis != nil, f.Consul != nil, f.DynamoDB != nil} {
			if set {
				n++
			}
		}
		if n != 1 {
			return fmt.Errorf("fixture %d must name exactly one of redis, consul, dynamodb", i+1)
		}
	}
	for _, t := range p.Tests {
		if err := t.validate(); err != nil {
			return err
		}
	}
	for _, g := range p.Groups {
		if g.Title == "" {
			return errors.New("group title is required")
		}
		for _, t := range g.Tests {
			if err := t.validate(); err != nil {
				return fmt.Errorf("group %q: %w", g.Title, err)
			}
		}
	}
	return nil
}

func (t TestSpec) validate() error {
	if t.Title == "" {
		return errors.New("test title is required")
	}
	if t.Retries < 0 {
		return fmt.Errorf("test %q: retries must not be negative", t.Title)
	}
	if t.Timeout != nil && *t.Timeout < 0 {
		return fmt.Errorf("test %q: timeout must not be negative", t.Title)
	}
	return nil
}
