package eventsync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewEvent verifies that NewEvent returns an event with the expected fields set.
func TestNewEvent(t *testing.T) {
	ev := NewEvent(KindA, 3, 7)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, KindA, ev.Kind)
	assert.Equal(t, uint64(3), ev.Seq)
	assert.Equal(t, uint64(7), ev.Tick)
}

// TestNewEventUniqueId ensures that multiple calls to NewEvent generate unique IDs.
func TestNewEventUniqueId(t *testing.T) {
	e1 := NewEvent(KindB, 1, 1)
	e2 := NewEvent(KindB, 1, 1)
	assert.NotEqual(t, e1.ID, e2.ID)
}

func TestKindChannel(t *testing.T) {
	assert.Equal(t, "eventA", KindA.Channel())
	assert.Equal(t, "eventB", KindB.Channel())
}

func TestKindsReturnsCopy(t *testing.T) {
	ks := Kinds()
	require.Equal(t, []Kind{KindA, KindB}, ks)
	ks[0] = KindB
	_ = append(ks, Kind("C"))
	assert.Equal(t, []Kind{KindA, KindB}, Kinds())
}

// TestEmitSameListenerTwice checks that a listener registered twice runs twice, in order.
func TestEmitSameListenerTwice(t *testing.T) {
	d := NewDispatcher()
	var calls []int
	n := 0
	l := func(ctx context.Context, ev Event) (*Handle, error) {
		n++
		calls = append(calls, n)
		return nil, nil
	}
	d.Register(KindA, l)
	d.Register(KindA, l)
	require.Equal(t, 2, d.Listeners(KindA))

	handles, err := d.Emit(context.Background(), NewEvent(KindA, 1, 0))
	require.NoError(t, err)
	assert.Empty(t, handles)
	assert.Equal(t, []int{1, 2}, calls)
}

func TestEmitRegistrationOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		d.Register(KindB, func(ctx context.Context, ev Event) (*Handle, error) {
			order = append(order, name)
			return nil, nil
		})
	}
	_, err := d.Emit(context.Background(), NewEvent(KindB, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

// TestEmitWithoutListeners ensures emitting on an empty channel is a no-op.
func TestEmitWithoutListeners(t *testing.T) {
	d := NewDispatcher()
	d.Register(KindA, func(ctx context.Context, ev Event) (*Handle, error) {
		t.Fatal("listener for A must not run")
		return nil, nil
	})

	handles, err := d.Emit(context.Background(), NewEvent(KindB, 1, 0))
	require.NoError(t, err)
	assert.Nil(t, handles)

	emitted, delivered, failed := d.Metrics()
	assert.Zero(t, emitted)
	assert.Zero(t, delivered)
	assert.Zero(t, failed)
}

func TestEmitReturnsHandles(t *testing.T) {
	d := NewDispatcher()
	h := newHandle()
	d.Register(KindA, func(ctx context.Context, ev Event) (*Handle, error) { return h, nil })
	d.Register(KindA, func(ctx context.Context, ev Event) (*Handle, error) { return nil, nil })

	handles, err := d.Emit(context.Background(), NewEvent(KindA, 1, 0))
	require.NoError(t, err)
	require.Len(t, handles, 1)
	assert.Same(t, h, handles[0])
	assert.False(t, handles[0].Resolved(), "emit must not wait for async tails")
}

// TestEmitListenerError tests that the first failing listener stops the emission.
func TestEmitListenerError(t *testing.T) {
	d := NewDispatcher()
	boom := errors.New("boom")
	var ran []int
	d.Register(KindA, func(ctx context.Context, ev Event) (*Handle, error) {
		ran = append(ran, 0)
		return nil, nil
	})
	d.Register(KindA, func(ctx context.Context, ev Event) (*Handle, error) {
		ran = append(ran, 1)
		return nil, boom
	})
	d.Register(KindA, func(ctx context.Context, ev Event) (*Handle, error) {
		ran = append(ran, 2)
		return nil, nil
	})
	var hooked error
	d.OnError(func(ctx context.Context, ev Event, err error) { hooked = err })

	_, err := d.Emit(context.Background(), NewEvent(KindA, 1, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var le *ListenerError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, KindA, le.Kind)
	assert.Equal(t, 1, le.Index)
	assert.Equal(t, "eventsync: listener 1 for eventA failed: boom", le.Error())

	assert.Equal(t, []int{0, 1}, ran)
	assert.Equal(t, boom, hooked)

	emitted, delivered, failed := d.Metrics()
	assert.Equal(t, uint64(1), emitted)
	assert.Equal(t, uint64(1), delivered)
	assert.Equal(t, uint64(1), failed)
}

func TestEmitListenerPanic(t *testing.T) {
	d := NewDispatcher()
	d.Register(KindB, func(ctx context.Context, ev Event) (*Handle, error) {
		panic("listener exploded")
	})

	_, err := d.Emit(context.Background(), NewEvent(KindB, 1, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrListenerPanic)
	assert.Contains(t, err.Error(), "listener exploded")
}

func TestMiddlewareAndHooks(t *testing.T) {
	d := NewDispatcher()
	var trace []string
	mw := func(name string) Middleware {
		return func(next Listener) Listener {
			return func(ctx context.Context, ev Event) (*Handle, error) {
				trace = append(trace, name+">")
				h, err := next(ctx, ev)
				trace = append(trace, "<"+name)
				return h, err
			}
		}
	}
	d.Use(mw("outer"), mw("inner"))
	d.OnBefore(func(ctx context.Context, ev Event) { trace = append(trace, "before") })
	d.OnAfter(func(ctx context.Context, ev Event, h *Handle, err error) { trace = append(trace, "after") })
	d.Register(KindA, func(ctx context.Context, ev Event) (*Handle, error) {
		trace = append(trace, "listener")
		return nil, nil
	})

	_, err := d.Emit(context.Background(), NewEvent(KindA, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "outer>", "inner>", "listener", "<inner", "<outer", "after"}, trace)
}

// BenchmarkEmit measures fan-out to a single listener.
func BenchmarkEmit(b *testing.B) {
	d := NewDispatcher()
	d.Register(KindA, func(ctx context.Context, ev Event) (*Handle, error) { return nil, nil })
	ev := NewEvent(KindA, 1, 0)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = d.Emit(ctx, ev)
	}
}
