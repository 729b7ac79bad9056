package ldtest

import (
	"errors"
)

// errSkipped is returned by a setup run when a hook called Skip. The reason is in the scope.
var errSkipped = errors.New("scope skipped")

// SetupResult is what a setup handler hands back: either nothing to undo, or a cleanup that
// will be run during teardown of the same scope.
type SetupResult struct {
	cleanup func(*T) error
}

// NoCleanup is the result of a setup handler that acquired nothing.
func NoCleanup() SetupResult {
	return SetupResult{}
}

// CleanupWith is the result of a setup handler that acquired something which cleanupFn
// releases. The cleanup runs even if a later setup handler of the same scope fails.
func CleanupWith(cleanupFn func(*T) error) SetupResult {
	return SetupResult{cleanup: cleanupFn}
}

// HasCleanup returns true if the result carries a cleanup function.
func (r SetupResult) HasCleanup() bool {
	return r.cleanup != nil
}

// SetupFunc is a setup handler. Returning an error, calling t.FailNow, or panicking stops the
// remaining setup of the scope; calling t.Skip skips the scope.
type SetupFunc func(t *T) (SetupResult, error)

// TeardownFunc is a teardown handler. Teardown handlers always run, and a failing one does not
// prevent the others from running.
type TeardownFunc func(t *T) error

// SetupOnly adapts a setup function that never needs a cleanup.
func SetupOnly(fn func(t *T) error) SetupFunc {
	return func(t *T) (SetupResult, error) {
		return NoCleanup(), fn(t)
	}
}

// Hooks is the ordered list of setup and teardown handlers of one suite, group or test.
type Hooks struct {
	setups    []SetupFunc
	teardowns []TeardownFunc
}

// Setup appends a setup handler. A nil handler is a ConfigurationError, raised as a panic.
func (h *Hooks) Setup(fn SetupFunc) {
	if fn == nil {
		panic(configErrorf("setup handler must not be nil"))
	}
	h.setups = append(h.setups, fn)
}

// Teardown appends a teardown handler. A nil handler is a ConfigurationError, raised as a panic.
func (h *Hooks) Teardown(fn TeardownFunc) {
	if fn == nil {
		panic(configErrorf("teardown handler must not be nil"))
	}
	h.teardowns = append(h.teardowns, fn)
}

// Len returns the number of setup and teardown handlers.
func (h *Hooks) Len() (setups, teardowns int) {
	return len(h.setups), len(h.teardowns)
}

// hookRun tracks the handlers of one scope execution, so that teardown releases exactly what
// setup acquired.
type hookRun struct {
	hooks    *Hooks
	t        *T
	scope    HookScope
	owner    string
	cleanups []func(*T) error
}

// setUp runs the setup handlers in order and stops at the first failure, which is returned
// as a *HookError (or errSkipped). The returned hookRun is never nil and must be torn down.
func (h *Hooks) setUp(t *T, scope HookScope, owner string) (*hookRun, error) {
	run := &hookRun{hooks: h, t: t, scope: scope, owner: owner}
	for _, setup := range h.setups {
		var result SetupResult
		err := run.call(PhaseSetup, func() error {
			var err error
			result, err = setup(t)
			return err
		})
		// A handler that failed after acquiring something still gets its cleanup run.
		if result.cleanup != nil {
			run.cleanups = append(run.cleanups, result.cleanup)
		}
		if err != nil {
			return run, err
		}
	}
	return run, nil
}

// tearDown runs the cleanups returned by successful setup handlers, most recent first, and
// then every teardown handler in registration order. All failures are returned.
func (r *hookRun) tearDown() []error {
	var errs []error
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		cleanup := r.cleanups[i]
		if err := r.call(PhaseTeardown, func() error { return cleanup(r.t) }); err != nil && err != errSkipped {
			errs = append(errs, err)
		}
	}
	r.cleanups = nil
	for _, teardown := range r.hooks.teardowns {
		if err := r.call(PhaseTeardown, func() error { return teardown(r.t) }); err != nil && err != errSkipped {
			errs = append(errs, err)
		}
	}
	return errs
}

func (r *hookRun) call(phase HookPhase, fn func() error) error {
	mark := r.t.errorCount()
	err := r.t.protect(fn)
	if err == nil {
		return nil
	}
	if err == errStopped {
		if st := r.t.state(); st.skipped && !st.failed {
			return errSkipped
		}
		err = r.t.takeErrorsSince(mark)
	}
	return &HookError{Scope: r.scope, Owner: r.owner, Phase: phase, Err: err}
}
