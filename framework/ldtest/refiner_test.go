package ldtest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRefiner(t *testing.T, filters Filters) *Refiner {
	r, err := NewRefiner(filters)
	require.NoError(t, err)
	return r
}

func TestRefinerAllowsEverythingWithoutFilters(t *testing.T) {
	r := mustRefiner(t, Filters{})
	assert.True(t, r.Allows(NewTest("a", noAction)))
	assert.True(t, r.Allows(NewTest("b", noAction).Tag("@slow")))
	assert.True(t, r.Allows(NewGroup("g").Add(NewTest("c", noAction))))
	assert.False(t, r.IsFiltering())
}

func TestRefinerPinAndFilterScenario(t *testing.T) {
	r := mustRefiner(t, Filters{})
	require.NoError(t, r.Add(FilterTags, "@slow"))
	require.NoError(t, r.Add(FilterTests, "2 + 2 = 4"))

	a := NewTest("2 + 2 = 4", noAction)
	b := NewTest("2 + 2 = 4", noAction).Tag("@slow")
	c := NewTest("2 + 2 = 4", noAction).Tag("@slow")
	d := NewTest("3 + 3 = 6", noAction).Tag("@slow")
	r.PinTest(c)
	r.PinTest(d)

	assert.False(t, r.Allows(a))
	assert.False(t, r.Allows(b))
	assert.True(t, r.Allows(c))
	assert.False(t, r.Allows(d))
}

func TestRefinerNegatedTagIsAbsoluteVeto(t *testing.T) {
	r := mustRefiner(t, Filters{Tags: FilterValueList{"!@flaky", "@fast"}, Tests: FilterValueList{"x"}})
	test := NewTest("x", noAction).Tag("@fast", "@flaky")
	r.PinTest(test)
	assert.False(t, r.Allows(test))

	other := NewTest("x", noAction).Tag("@fast")
	r.PinTest(other)
	assert.True(t, r.Allows(other))
}

func TestRefinerPinGateIsGlobal(t *testing.T) {
	r := mustRefiner(t, Filters{})
	pinned := NewTest("pinned", noAction)
	unpinned := NewTest("unpinned", noAction)
	assert.True(t, r.Allows(unpinned))

	r.PinTest(pinned)
	assert.True(t, r.HasPins())
	assert.True(t, r.IsPinned(pinned))
	assert.False(t, r.IsPinned(unpinned))
	assert.True(t, r.Allows(pinned))
	assert.False(t, r.Allows(unpinned))
}

func TestRefinerPinIsByIdentity(t *testing.T) {
	r := mustRefiner(t, Filters{})
	first := NewTest("same title", noAction)
	second := NewTest("same title", noAction)
	r.PinTest(first)
	assert.True(t, r.Allows(first))
	assert.False(t, r.Allows(second))
}

func TestRefinerPositiveTagsNeedAtLeastOneMatch(t *testing.T) {
	r := mustRefiner(t, Filters{Tags: FilterValueList{"@a", "@b"}})
	assert.True(t, r.Allows(NewTest("t", noAction).Tag("@b")))
	assert.False(t, r.Allows(NewTest("t", noAction).Tag("@c")))
	assert.False(t, r.Allows(NewTest("t", noAction)))
}

func TestRefinerGroupFilter(t *testing.T) {
	r := mustRefiner(t, Filters{Groups: FilterValueList{"math"}})

	lone := NewTest("lone", noAction)
	assert.False(t, r.Allows(lone))

	inMath := NewTest("sum", noAction)
	math := NewGroup("math").Add(inMath)
	assert.True(t, r.Allows(inMath))
	assert.True(t, r.Allows(math))

	inOther := NewTest("concat", noAction)
	other := NewGroup("strings").Add(inOther)
	assert.False(t, r.Allows(inOther))
	assert.False(t, r.Allows(other))
}

func TestRefinerGroupEligibilityFollowsItsTests(t *testing.T) {
	r := mustRefiner(t, Filters{Tags: FilterValueList{"@fast"}})
	g := NewGroup("g")
	assert.False(t, r.Allows(g), "empty group")

	g.Add(NewTest("slow", noAction).Tag("@slow"))
	assert.False(t, r.Allows(g))

	g.Add(NewTest("fast", noAction).Tag("@fast"))
	assert.True(t, r.Allows(g))
}

func TestRefinerCategoriesAreAdditive(t *testing.T) {
	r := mustRefiner(t, Filters{Tests: FilterValueList{"a"}})
	require.NoError(t, r.Add(FilterTests, "b"))
	assert.True(t, r.Allows(NewTest("a", noAction)))
	assert.True(t, r.Allows(NewTest("b", noAction)))
	assert.False(t, r.Allows(NewTest("c", noAction)))
}

func TestRefinerRejectsInvalidConfiguration(t *testing.T) {
	r := mustRefiner(t, Filters{})
	var cerr *ConfigurationError

	err := r.Add("colors", "red")
	assert.True(t, errors.As(err, &cerr))

	err = r.Add(FilterTags, "!")
	assert.True(t, errors.As(err, &cerr))

	err = r.Add(FilterTests, "")
	assert.True(t, errors.As(err, &cerr))

	_, err = NewRefiner(Filters{Groups: FilterValueList{""}})
	assert.True(t, errors.As(err, &cerr))

	assert.False(t, r.IsFiltering())
}

func TestRefinerFiltersSnapshot(t *testing.T) {
	r := mustRefiner(t, Filters{Tags: FilterValueList{"@b", "!@x", "@a"}, Tests: FilterValueList{"t2", "t1"}})
	f := r.Filters()
	assert.Equal(t, FilterValueList{"t1", "t2"}, f.Tests)
	assert.Equal(t, FilterValueList{"@a", "@b", "!@x"}, f.Tags)
	assert.Len(t, f.Groups, 0)
}

func TestFilterValueListAsFlag(t *testing.T) {
	var l FilterValueList
	require.NoError(t, l.Set("a"))
	require.NoError(t, l.Set("b"))
	assert.Equal(t, FilterValueList{"a", "b"}, l)
	assert.Equal(t, `"a" or "b"`, l.String())
}

func TestPrintFilterDescription(t *testing.T) {
	var buf bytes.Buffer
	PrintFilterDescription(&buf, mustRefiner(t, Filters{}))
	assert.Equal(t, "", buf.String())

	r := mustRefiner(t, Filters{Tags: FilterValueList{"@fast", "!@flaky"}, Groups: FilterValueList{"math"}})
	PrintFilterDescription(&buf, r)
	assert.Contains(t, buf.String(), `skip any test not in group "math"`)
	assert.Contains(t, buf.String(), `skip any test not tagged "@fast"`)
	assert.Contains(t, buf.String(), `skip any test tagged "@flaky"`)
}
