package ldtest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/launchdarkly/suite-harness/framework"
)

// errStopped is what protect returns when the code it ran called FailNow or Skip. The reason
// has already been recorded in the scope.
var errStopped = errors.New("scope stopped")

// T represents one execution scope: a suite, a group, or one attempt of a test. It is very
// similar to Go's testing.T type, and satisfies the TestingT interfaces of testify's assert and
// require packages.
//
// A T is allocated fresh for every scope execution and is passed unchanged to that scope's
// setup hooks, its action (for a test), and its teardown hooks. Values stored with Set are
// visible to nested scopes through Get.
type T struct {
	*scopeCore

	// gate is set only on the handle given to an action that runs under a timeout. Once the
	// timeout expires, anything reported through that handle is dropped.
	gate *actionGate
}

type scopeCore struct {
	ctx         context.Context
	cancel      context.CancelFunc
	id          TestID
	parent      *T
	extensions  map[string]interface{}
	debugLogger framework.CapturingLogger

	lock       sync.Mutex
	values     map[string]interface{}
	failed     bool
	skipped    bool
	skipReason string
	cleanups   []func()
	errors     []error
	helperFns  []string
}

// actionGate is guarded by the scope's lock.
type actionGate struct {
	abandoned bool
}

func newScope(ctx context.Context, parent *T, id TestID, extensions Extensions) *T {
	scopeCtx, cancel := context.WithCancel(ctx)
	t := &T{scopeCore: &scopeCore{
		ctx:    scopeCtx,
		cancel: cancel,
		id:     id,
		parent: parent,
	}}
	if parent != nil {
		parent.debugLogger.AddChildLogger(&t.debugLogger) // see comments on t.DebugLogger()
	}
	t.extensions = extensions.resolve(t)
	return t
}

// abandoned must be called with the lock held.
func (t *T) abandoned() bool {
	return t.gate != nil && t.gate.abandoned
}

// close runs the Defer cleanups, detaches the scope's logger from its parent and cancels its
// context.
func (t *T) close() {
	t.lock.Lock()
	cleanups := t.cleanups
	t.cleanups = nil
	t.lock.Unlock()
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanup := cleanups[i]
		if err := t.protect(func() error { cleanup(); return nil }); err != nil && err != errStopped {
			t.Debug("deferred cleanup failed: %s", err)
		}
	}
	if t.parent != nil {
		t.parent.debugLogger.RemoveChildLogger(&t.debugLogger)
	}
	t.cancel()
}

// protect runs fn and turns a panic into an error. A FailNow or Skip inside fn is reported as
// errStopped; any other panic becomes an error that includes the stack.
func (t *T) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if scope, ok := r.(*T); ok && scope == t {
				err = errStopped
				return
			}
			err = fmt.Errorf("unexpected panic: %+v\n%s", r, string(debug.Stack()))
		}
	}()
	return fn()
}

// invoke runs a test action in this scope and records any unexpected panic as a failure.
func (t *T) invoke(action func(*T)) {
	err := t.protect(func() error {
		action(t)
		return nil
	})
	switch {
	case err == nil:
	case err == errStopped:
		t.lock.Lock()
		if t.failed && !t.skipped && len(t.errors) == 0 && !t.abandoned() {
			t.errors = append(t.errors, errors.New("test failed with no failure message"))
		}
		t.lock.Unlock()
	default:
		t.fail(err)
	}
}

// runAction invokes the action, racing it against the timeout if there is one. When the
// timer wins, the test is failed and its context is cancelled, but the action's goroutine is
// left to finish on its own: anything it does after that point (more timers, background work)
// keeps running until it returns or the process exits. The action runs with its own handle to
// the scope, and whatever it reports through that handle after the timeout is discarded. The
// scope itself stays open for the teardown hooks.
func (t *T) runAction(action func(*T), timeout time.Duration) {
	if timeout <= 0 {
		t.invoke(action)
		return
	}
	handle := &T{scopeCore: t.scopeCore, gate: &actionGate{}}
	done := make(chan struct{})
	go func() {
		defer close(done)
		handle.invoke(action)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		handle.expire(timeout)
	}
}

func (t *T) expire(timeout time.Duration) {
	t.lock.Lock()
	if !t.abandoned() {
		t.failed = true
		t.errors = append(t.errors, &TimeoutError{Timeout: timeout})
		if t.gate != nil {
			t.gate.abandoned = true
		}
	}
	t.lock.Unlock()
	t.cancel()
}

func (t *T) fail(err error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.abandoned() {
		return
	}
	t.failed = true
	t.errors = append(t.errors, err)
}

type scopeState struct {
	failed     bool
	skipped    bool
	skipReason string
	errors     []error
}

func (t *T) state() scopeState {
	t.lock.Lock()
	defer t.lock.Unlock()
	return scopeState{
		failed:     t.failed,
		skipped:    t.skipped,
		skipReason: t.skipReason,
		errors:     append([]error(nil), t.errors...),
	}
}

func (t *T) errorCount() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.errors)
}

// takeErrorsSince removes the failures recorded after the first mark errors and returns them
// combined, so that a hook which failed through FailNow reports them as its own error.
func (t *T) takeErrorsSince(mark int) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.errors) <= mark {
		return errors.New("FailNow called with no failure message")
	}
	taken := t.errors[mark:]
	t.errors = t.errors[:mark:mark]
	if len(taken) == 1 {
		return taken[0]
	}
	return multierror.Append(nil, taken...)
}

// ID returns the full name of the current scope.
func (t *T) ID() TestID {
	return t.id
}

// Context returns a context that is cancelled when the scope ends, or as soon as a test
// exceeds its timeout. Long-running test code should watch it.
func (t *T) Context() context.Context {
	return t.ctx
}

// Set stores a value in this scope's state bag.
func (t *T) Set(key string, value interface{}) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.values == nil {
		t.values = make(map[string]interface{})
	}
	t.values[key] = value
}

// Get looks up a value in this scope's state bag, then in the enclosing scopes.
func (t *T) Get(key string) (interface{}, bool) {
	for s := t; s != nil; s = s.parent {
		s.lock.Lock()
		v, ok := s.values[key]
		s.lock.Unlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// Value is a typed form of T.Get.
func Value[V any](t *T, key string) (V, bool) {
	var empty V
	raw, ok := t.Get(key)
	if !ok {
		return empty, false
	}
	v, ok := raw.(V)
	return v, ok
}

// Errorf reports a test failure. It is equivalent to Go's testing.T.Errorf. It does not cause the test
// to terminate, but adds the failure message to the output and marks the test as failed.
//
// You will rarely use this method directly; it is part of this type's implementation of the base
// interfaces testing.T and assert.TestingT, allowing it to be called from assertion helpers.
func (t *T) Errorf(format string, args ...interface{}) {
	t.lock.Lock()
	helpers := append([]string(nil), t.helperFns...)
	t.lock.Unlock()

	err := transformError(fmt.Errorf(format, args...), getStacktrace(false, helpers))

	t.lock.Lock()
	defer t.lock.Unlock()
	if t.abandoned() {
		t.debugLogger.Printf("discarded failure reported after timeout: %s", err)
		return
	}
	t.failed = true
	t.errors = append(t.errors, err)
}

// FailNow causes the test to immediately terminate and be marked as failed.
//
// You will rarely use this method directly; it is part of this type's implementation of the base
// interfaces testing.T and assert.TestingT, allowing it to be called from assertion helpers.
func (t *T) FailNow() {
	t.lock.Lock()
	if !t.abandoned() {
		t.failed = true
	}
	t.lock.Unlock()
	panic(t)
}

// Failed returns true if the scope has been marked as failed.
func (t *T) Failed() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.failed
}

// Skip causes the test to immediately terminate and be marked as skipped.
func (t *T) Skip() {
	t.lock.Lock()
	if !t.abandoned() {
		t.skipped = true
	}
	t.lock.Unlock()
	panic(t)
}

// SkipWithReason is equivalent to Skip but provides a message.
func (t *T) SkipWithReason(reason string) {
	t.lock.Lock()
	if !t.abandoned() {
		t.skipReason = reason
	}
	t.lock.Unlock()
	t.Skip()
}

// Debug writes a message to the output for this test scope.
func (t *T) Debug(message string, args ...interface{}) {
	t.debugLogger.Printf(message, args...)
}

// DebugLogger returns a Logger instance for writing output for this test scope.
//
// The output that is captured for a test is delivered with its test:end event. Reporters choose
// whether to display it.
//
// A test's logger starts out with a copy of any output that was already logged for its group
// and suite. While the test is running, any further output that is sent to the group's or
// suite's logger goes to the test's logger instead. This is useful when an outer scope manages
// a fixture that logs on behalf of whichever test is using it.
func (t *T) DebugLogger() framework.Logger {
	return &t.debugLogger
}

// Defer schedules a cleanup function which is guaranteed to be called when this scope
// exits for any reason. Unlike a Go defer statement, Defer can be used from within helper
// functions.
func (t *T) Defer(cleanupFn func()) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.abandoned() {
		return
	}
	t.cleanups = append(t.cleanups, cleanupFn)
}

// Helper marks the function that calls it as a test helper that shouldn't appear in stacktraces.
// Equivalent to Go's testing.T.Helper().
func (t *T) Helper() {
	pc, _, _, ok := runtime.Caller(1) // 0 is Helper() itself, 1 is who called it
	if !ok {
		return
	}
	f := runtime.FuncForPC(pc)
	if f == nil {
		return
	}
	t.lock.Lock()
	t.helperFns = append(t.helperFns, f.Name())
	t.lock.Unlock()
}
