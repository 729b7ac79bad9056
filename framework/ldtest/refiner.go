package ldtest

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// FilterCategory names one of the independent kinds of filter.
type FilterCategory string

const (
	FilterTests  FilterCategory = "tests"
	FilterTags   FilterCategory = "tags"
	FilterGroups FilterCategory = "groups"
)

// FilterValueList is a list of filter values that can be used as a repeatable command-line flag.
type FilterValueList []string

func (l FilterValueList) String() string {
	ss := make([]string, 0, len(l))
	for _, v := range l {
		ss = append(ss, `"`+v+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set is called by the command line parser
func (l *FilterValueList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

// Filters is the configuration surface of a Refiner. A tag starting with "!" excludes every
// test that has that tag.
type Filters struct {
	Tests  FilterValueList
	Tags   FilterValueList
	Groups FilterValueList
}

// Refiner decides whether a test or group is eligible to run under the current filters.
//
// Each category is additive: adding more values to it widens what it accepts. Categories
// are combined with "and", and an empty category accepts everything. A negated tag excludes
// a test regardless of anything else. Once any test is pinned, only pinned tests are
// eligible, and they must still pass the other filters.
type Refiner struct {
	lock        sync.RWMutex
	tests       map[string]struct{}
	groups      map[string]struct{}
	tags        map[string]struct{}
	negatedTags map[string]struct{}
	pinned      map[*Test]struct{}
}

// NewRefiner creates a Refiner with the given initial filters.
func NewRefiner(filters Filters) (*Refiner, error) {
	r := &Refiner{
		tests:       make(map[string]struct{}),
		groups:      make(map[string]struct{}),
		tags:        make(map[string]struct{}),
		negatedTags: make(map[string]struct{}),
		pinned:      make(map[*Test]struct{}),
	}
	for category, values := range map[FilterCategory][]string{
		FilterTests:  filters.Tests,
		FilterTags:   filters.Tags,
		FilterGroups: filters.Groups,
	} {
		if err := r.Add(category, values...); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add unions values into a filter category. An unknown category, an empty value, or a tag
// that consists of "!" alone is a ConfigurationError, in which case nothing is added.
func (r *Refiner) Add(category FilterCategory, values ...string) error {
	for _, v := range values {
		if v == "" {
			return configErrorf("empty value for filter category %q", category)
		}
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	switch category {
	case FilterTests:
		addAll(r.tests, values)
	case FilterGroups:
		addAll(r.groups, values)
	case FilterTags:
		for _, v := range values {
			if v == "!" {
				return configErrorf("negated tag filter needs a tag name")
			}
		}
		for _, v := range values {
			if tag, negated := strings.CutPrefix(v, "!"); negated {
				r.negatedTags[tag] = struct{}{}
			} else {
				r.tags[v] = struct{}{}
			}
		}
	default:
		return configErrorf("unknown filter category %q", category)
	}
	return nil
}

func addAll(set map[string]struct{}, values []string) {
	for _, v := range values {
		set[v] = struct{}{}
	}
}

// PinTest adds a test to the pinned set.
func (r *Refiner) PinTest(test *Test) {
	if test == nil {
		panic(configErrorf("cannot pin a nil test"))
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.pinned[test] = struct{}{}
}

// HasPins returns true if any test has been pinned.
func (r *Refiner) HasPins() bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.pinned) != 0
}

// IsPinned returns true if the test has been pinned.
func (r *Refiner) IsPinned(test *Test) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	_, ok := r.pinned[test]
	return ok
}

// Filters returns a snapshot of the current filters, with values sorted.
func (r *Refiner) Filters() Filters {
	r.lock.RLock()
	defer r.lock.RUnlock()
	tags := sortedKeys(r.tags)
	for _, tag := range sortedKeys(r.negatedTags) {
		tags = append(tags, "!"+tag)
	}
	return Filters{
		Tests:  sortedKeys(r.tests),
		Tags:   tags,
		Groups: sortedKeys(r.groups),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := maps.Keys(set)
	slices.Sort(keys)
	return keys
}

// IsFiltering returns true if any filter or pin would exclude some test.
func (r *Refiner) IsFiltering() bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.tests) != 0 || len(r.groups) != 0 || len(r.tags) != 0 ||
		len(r.negatedTags) != 0 || len(r.pinned) != 0
}

// Allows returns true if the node is eligible to run. A group is eligible if at least one of
// its tests is.
func (r *Refiner) Allows(node Node) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	switch n := node.(type) {
	case *Test:
		groupTitle, inGroup := "", false
		if n.group != nil {
			groupTitle, inGroup = n.group.title, true
		}
		return r.allowsTest(n, groupTitle, inGroup)
	case *Group:
		for _, test := range n.tests {
			if r.allowsTest(test, n.title, true) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (r *Refiner) allowsTest(test *Test, groupTitle string, inGroup bool) bool {
	for _, tag := range test.tags {
		if _, ok := r.negatedTags[tag]; ok {
			return false
		}
	}
	if len(r.pinned) != 0 {
		if _, ok := r.pinned[test]; !ok {
			return false
		}
	}
	if len(r.tags) != 0 {
		found := false
		for _, tag := range test.tags {
			if _, ok := r.tags[tag]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(r.tests) != 0 {
		if _, ok := r.tests[test.title]; !ok {
			return false
		}
	}
	if len(r.groups) != 0 {
		if !inGroup {
			return false
		}
		if _, ok := r.groups[groupTitle]; !ok {
			return false
		}
	}
	return true
}

// PrintFilterDescription writes a description of the active filters, if there are any.
func PrintFilterDescription(w io.Writer, r *Refiner) {
	if !r.IsFiltering() {
		return
	}
	filters := r.Filters()
	_, _ = fmt.Fprintln(w, "Some tests will be skipped based on the filter criteria for this test run:")
	if len(filters.Tests) != 0 {
		_, _ = fmt.Fprintf(w, "  skip any test not titled %s\n", filters.Tests)
	}
	if len(filters.Groups) != 0 {
		_, _ = fmt.Fprintf(w, "  skip any test not in group %s\n", filters.Groups)
	}
	var positive, negated FilterValueList
	for _, tag := range filters.Tags {
		if name, ok := strings.CutPrefix(tag, "!"); ok {
			negated = append(negated, name)
		} else {
			positive = append(positive, tag)
		}
	}
	if len(positive) != 0 {
		_, _ = fmt.Fprintf(w, "  skip any test not tagged %s\n", positive)
	}
	if len(negated) != 0 {
		_, _ = fmt.Fprintf(w, "  skip any test tagged %s\n", negated)
	}
	if r.HasPins() {
		_, _ = fmt.Fprintln(w, "  skip any test that is not pinned")
	}
	_, _ = fmt.Fprintln(w)
}
