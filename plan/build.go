package plan

import (
	"time"

	"github.com/launchdarkly/suite-harness/fixtures"
	"github.com/launchdarkly/suite-harness/framework/emitter"
	"github.com/launchdarkly/suite-harness/framework/ldtest"
)

// Build declares one suite per plan. Suite names must be unique across the plans; a
// parameterized plan file should include a parameter in its suite name.
func Build(plans []*Plan, em *emitter.Emitter, refiner *ldtest.Refiner, config ldtest.Configuration) (
	[]*ldtest.Suite, error) {
	seen := make(map[string]Source)
	var ret []*ldtest.Suite
	for _, p := range plans {
		if previous, ok := seen[p.Suite]; ok {
			return nil, &ldtest.ConfigurationError{
				Message: "suite " + p.Suite + " is declared by both " + previous.describe() + " and " + p.Source.describe(),
			}
		}
		seen[p.Suite] = p.Source
		ret = append(ret, p.build(em, refiner, config))
	}
	return ret, nil
}

func (p *Plan) build(em *emitter.Emitter, refiner *ldtest.Refiner, config ldtest.Configuration) *ldtest.Suite {
	s := ldtest.NewSuite(p.Suite, em, refiner, config)
	for _, f := range p.Fixtures {
		s.Setup(f.setup())
	}
	for _, c := range p.Setup {
		s.Setup(c.setup())
	}
	for _, c := range p.Teardown {
		s.Teardown(c.teardown())
	}
	for _, spec := range p.Tests {
		test := spec.declare()
		s.Add(test)
		spec.configure(test)
	}
	for _, g := range p.Groups {
		g := g
		s.Group(g.Title, g.populate)
	}
	return s
}

func (f Fixture) setup() ldtest.SetupFunc {
	switch {
	case f.Redis != nil:
		return fixtures.Redis(*f.Redis)
	case f.Consul != nil:
		return fixtures.ConsulKV(*f.Consul)
	default:
		return fixtures.DynamoDBTable(*f.DynamoDB)
	}
}

func (g GroupSpec) populate(group *ldtest.Group) {
	for _, c := range g.Setup {
		group.Setup(c.setup())
	}
	for _, c := range g.Teardown {
		group.Teardown(c.teardown())
	}
	each := group.Each()
	if g.Each.Timeout != nil {
		each.Timeout(time.Duration(*g.Each.Timeout))
	}
	if g.Each.Retries != nil {
		each.Retry(*g.Each.Retries)
	}
	if g.Each.Skip {
		each.Skip(g.Each.SkipReason)
	}
	each.Tag(g.Each.Tags...)
	for _, c := range g.Each.Setup {
		each.Setup(c.setup())
	}
	for _, c := range g.Each.Teardown {
		each.Teardown(c.teardown())
	}
	for _, spec := range g.Tests {
		test := spec.declare()
		group.Add(test)
		spec.configure(test)
	}
}

// declare creates the test with its hooks. Hooks are added before the test joins a group, so
// that the group's per-test teardowns run after the test's own.
func (spec TestSpec) declare() *ldtest.Test {
	var action func(*ldtest.T)
	if len(spec.Run) != 0 {
		action = spec.Command.action()
	}
	test := ldtest.NewTest(spec.Title, action)
	for _, c := range spec.Setup {
		test.Setup(c.setup())
	}
	for _, c := range spec.Teardown {
		test.Teardown(c.teardown())
	}
	return test
}

// configure applies the test's own options after it joined its group, so that they override
// the group's defaults.
func (spec TestSpec) configure(test *ldtest.Test) {
	test.Tag(spec.Tags...)
	if spec.Timeout != nil {
		test.Timeout(time.Duration(*spec.Timeout))
	}
	if spec.Retries != 0 {
		test.Retry(spec.Retries)
	}
	if spec.Skip {
		test.Skip(spec.SkipReason)
	}
	if spec.Todo {
		test.Todo()
	}
	if spec.Pin {
		test.Pin()
	}
}
