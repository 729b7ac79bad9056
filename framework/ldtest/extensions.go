package ldtest

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ExtensionFactory builds the implementation of a named capability for one scope. It is
// called once for every T that is constructed, so the value it returns can be bound to that
// scope (for instance an assertion helper that reports through t).
type ExtensionFactory func(t *T) interface{}

// Extensions is a registry of named capabilities that tests can look up from their scope.
// Rather than attaching methods to a shared context type, each capability is resolved by name
// when a scope is built.
type Extensions map[string]ExtensionFactory

// Register adds a capability. Registering the same name twice, or a nil factory, is a
// ConfigurationError.
func (e Extensions) Register(name string, factory ExtensionFactory) error {
	if name == "" || factory == nil {
		return configErrorf("extension needs a name and a factory")
	}
	if _, ok := e[name]; ok {
		return configErrorf("extension %q is already registered", name)
	}
	e[name] = factory
	return nil
}

// Has returns true if the named capability is registered.
func (e Extensions) Has(name string) bool {
	_, ok := e[name]
	return ok
}

// Names returns the registered capability names in sorted order.
func (e Extensions) Names() []string {
	names := maps.Keys(e)
	slices.Sort(names)
	return names
}

func (e Extensions) resolve(t *T) map[string]interface{} {
	if len(e) == 0 {
		return nil
	}
	ret := make(map[string]interface{}, len(e))
	for _, name := range e.Names() {
		ret[name] = e[name](t)
	}
	return ret
}

// Extension returns the named capability of the scope, converted to V.
func Extension[V any](t *T, name string) (V, bool) {
	var empty V
	raw, ok := t.extensions[name]
	if !ok {
		return empty, false
	}
	v, ok := raw.(V)
	return v, ok
}

// HasExtension returns true if the named capability is available in this scope.
func (t *T) HasExtension(name string) bool {
	_, ok := t.extensions[name]
	return ok
}

// RequireExtension causes the test to be skipped if the named capability is not available.
func (t *T) RequireExtension(name string) {
	if !t.HasExtension(name) {
		t.SkipWithReason(fmt.Sprintf("extension %q is not available", name))
	}
}
