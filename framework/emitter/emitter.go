// Package emitter provides the event bus that connects a test run to its reporters.
//
// Listeners run one at a time, in registration order, each to completion before the next.
// Failures are funneled: with an error handler installed every listener failure goes to that
// handler and Emit succeeds; without one, Emit still runs every listener and then returns the
// accumulated failures to its caller. Either way one misbehaving reporter cannot stop the
// other reporters from seeing the event.
package emitter

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Listener receives the payload of one emitted event.
type Listener func(ctx context.Context, payload interface{}) error

// ErrorHandler receives listener failures when one is installed with OnError.
type ErrorHandler func(err *ListenerError)

// Subscription identifies a registered listener so that it can be removed with Off.
type Subscription struct {
	event string
	id    uint64
}

// Event returns the name of the event the listener was registered for.
func (s Subscription) Event() string { return s.event }

// ListenerError is a failure of a single listener, either a returned error or a panic.
type ListenerError struct {
	Event string
	Err   error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener for %q failed: %s", e.Event, e.Err)
}

func (e *ListenerError) Unwrap() error { return e.Err }

// ConfigurationError is the panic value of a registration that can never work, such as a nil
// listener.
type ConfigurationError struct {
	Event   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for %q: %s", e.Event, e.Message)
}

type registration struct {
	id       uint64
	listener Listener
}

// Emitter is a publish/subscribe bus keyed by event name.
type Emitter struct {
	listeners map[string][]registration
	onError   ErrorHandler
	lastID    uint64
	lock      sync.Mutex
}

// New returns an Emitter with no listeners and no error handler.
func New() *Emitter {
	return &Emitter{listeners: make(map[string][]registration)}
}

// On registers a listener. Registering a nil listener is a programming error and panics with
// a *ConfigurationError.
func (e *Emitter) On(event string, listener Listener) Subscription {
	if listener == nil {
		panic(&ConfigurationError{Event: event, Message: "listener must not be nil"})
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	e.lastID++
	e.listeners[event] = append(e.listeners[event], registration{id: e.lastID, listener: listener})
	return Subscription{event: event, id: e.lastID}
}

// Off removes a listener. It returns false if the subscription was not active.
func (e *Emitter) Off(sub Subscription) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	regs := e.listeners[sub.event]
	for i, r := range regs {
		if r.id == sub.id {
			e.listeners[sub.event] = append(regs[:i:i], regs[i+1:]...)
			return true
		}
	}
	return false
}

// OnError installs the error handler, replacing any previous one. Passing nil removes it.
func (e *Emitter) OnError(handler ErrorHandler) {
	e.lock.Lock()
	e.onError = handler
	e.lock.Unlock()
}

// ListenerCount returns the number of listeners currently registered for an event.
func (e *Emitter) ListenerCount(event string) int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return len(e.listeners[event])
}

// Emit delivers the payload to every listener of the event. Listeners registered or removed
// while Emit is running do not affect the current delivery.
func (e *Emitter) Emit(ctx context.Context, event string, payload interface{}) error {
	e.lock.Lock()
	regs := append([]registration(nil), e.listeners[event]...)
	handler := e.onError
	e.lock.Unlock()

	var result *multierror.Error
	for _, r := range regs {
		err := invoke(ctx, event, r.listener, payload)
		if err == nil {
			continue
		}
		if handler != nil {
			handler(err)
			continue
		}
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func invoke(ctx context.Context, event string, listener Listener, payload interface{}) (lerr *ListenerError) {
	defer func() {
		if r := recover(); r != nil {
			lerr = &ListenerError{Event: event, Err: fmt.Errorf("listener panicked: %v", r)}
		}
	}()
	if err := listener(ctx, payload); err != nil {
		return &ListenerError{Event: event, Err: err}
	}
	return nil
}

// Handle adapts a listener for a specific payload type. Any other payload type is reported as
// a listener failure.
func Handle[P any](fn func(ctx context.Context, payload P) error) Listener {
	return func(ctx context.Context, payload interface{}) error {
		p, ok := payload.(P)
		if !ok {
			var expected P
			return fmt.Errorf("unexpected payload type %T (wanted %T)", payload, expected)
		}
		return fn(ctx, p)
	}
}
