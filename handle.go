package eventsync

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Handle represents the asynchronous tail of a listener invocation.
// A nil *Handle behaves as already resolved.
type Handle struct {
	done chan struct{}
}

var resolved = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// ResolvedHandle returns a handle whose work has already completed.
func ResolvedHandle() *Handle {
	return &Handle{done: resolved}
}

func (h *Handle) resolve() {
	close(h.done)
}

// Done is closed once the work behind the handle has been applied.
func (h *Handle) Done() <-chan struct{} {
	if h == nil {
		return resolved
	}
	return h.done
}

// Resolved reports whether the work has completed, without blocking.
func (h *Handle) Resolved() bool {
	select {
	case <-h.Done():
		return true
	default:
		return false
	}
}

// Wait blocks until the handle resolves or ctx ends.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitAll waits for every handle in the batch. It returns the context
// error if ctx ends first.
func AwaitAll(ctx context.Context, handles []*Handle) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handles {
		if h.Resolved() {
			continue
		}
		g.Go(func() error {
			return h.Wait(gctx)
		})
	}
	return g.Wait()
}
