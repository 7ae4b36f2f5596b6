package eventsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrListenerPanic marks a listener that panicked instead of returning.
var ErrListenerPanic = errors.New("eventsync: listener panicked")

// Listener handles one event. The returned handle, if any, tracks work the
// listener started but did not wait for.
type Listener func(ctx context.Context, ev Event) (*Handle, error)

// Middleware wraps a listener.
type Middleware func(Listener) Listener

// ListenerError reports the listener that failed an emission.
type ListenerError struct {
	Kind  Kind
	Index int // position in registration order
	Err   error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("eventsync: listener %d for %s failed: %v", e.Index, e.Kind.Channel(), e.Err)
}

func (e *ListenerError) Unwrap() error { return e.Err }

// Dispatcher is a named-channel publish/subscribe register. Emission fans
// out synchronously to every listener of the event's kind.
type Dispatcher struct {
	mu          sync.RWMutex
	listeners   map[Kind][]Listener
	middlewares []Middleware
	beforeHooks []func(context.Context, Event)
	afterHooks  []func(context.Context, Event, *Handle, error)
	errorHooks  []func(context.Context, Event, error)

	emittedCount   uint64
	deliveredCount uint64
	failedCount    uint64
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{listeners: make(map[Kind][]Listener)}
}

// Register appends l to the listeners of kind. The same listener may be
// registered more than once and is then invoked once per registration.
func (d *Dispatcher) Register(kind Kind, l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[kind] = append(d.listeners[kind], l)
}

// Listeners returns how many listeners are registered for kind.
func (d *Dispatcher) Listeners(kind Kind) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[kind])
}

// Use adds middleware applied to every listener, outermost first.
func (d *Dispatcher) Use(mw ...Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, mw...)
}

// OnBefore registers a hook run before each listener invocation.
func (d *Dispatcher) OnBefore(hook func(context.Context, Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.beforeHooks = append(d.beforeHooks, hook)
}

// OnAfter registers a hook run after each listener invocation, failed or not.
func (d *Dispatcher) OnAfter(hook func(context.Context, Event, *Handle, error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.afterHooks = append(d.afterHooks, hook)
}

// OnError registers a hook run when a listener fails.
func (d *Dispatcher) OnError(hook func(context.Context, Event, error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errorHooks = append(d.errorHooks, hook)
}

// Emit invokes every listener registered for ev.Kind in registration order.
// It does not wait for the returned handles. The first failing listener
// stops the emission and is returned as a *ListenerError.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) ([]*Handle, error) {
	d.mu.RLock()
	listeners := d.listeners[ev.Kind]
	if len(listeners) == 0 {
		d.mu.RUnlock()
		return nil, nil
	}
	listeners = append([]Listener(nil), listeners...)
	middlewares := d.middlewares
	before, after, onErr := d.beforeHooks, d.afterHooks, d.errorHooks
	d.mu.RUnlock()

	atomic.AddUint64(&d.emittedCount, 1)

	handles := make([]*Handle, 0, len(listeners))
	for i, l := range listeners {
		wrapped := l
		for j := len(middlewares) - 1; j >= 0; j-- {
			wrapped = middlewares[j](wrapped)
		}

		for _, hook := range before {
			hook(ctx, ev)
		}
		h, err := invoke(ctx, wrapped, ev)
		for _, hook := range after {
			hook(ctx, ev, h, err)
		}

		if err != nil {
			atomic.AddUint64(&d.failedCount, 1)
			for _, hook := range onErr {
				hook(ctx, ev, err)
			}
			return handles, &ListenerError{Kind: ev.Kind, Index: i, Err: err}
		}
		atomic.AddUint64(&d.deliveredCount, 1)
		if h != nil {
			handles = append(handles, h)
		}
	}
	return handles, nil
}

func invoke(ctx context.Context, l Listener, ev Event) (h *Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, fmt.Errorf("%w: %v", ErrListenerPanic, r)
		}
	}()
	return l(ctx, ev)
}

// Metrics returns snapshot counters: emissions with at least one listener,
// successful listener invocations and failed ones.
func (d *Dispatcher) Metrics() (emitted, delivered, failed uint64) {
	return atomic.LoadUint64(&d.emittedCount),
		atomic.LoadUint64(&d.deliveredCount),
		atomic.LoadUint64(&d.failedCount)
}
