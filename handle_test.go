package eventsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_NilIsResolved(t *testing.T) {
	var h *Handle
	assert.True(t, h.Resolved())
	assert.NoError(t, h.Wait(context.Background()))
}

func TestHandle_Resolve(t *testing.T) {
	h := newHandle()
	assert.False(t, h.Resolved())
	h.resolve()
	assert.True(t, h.Resolved())
	assert.True(t, ResolvedHandle().Resolved())
}

func TestHandle_WaitContext(t *testing.T) {
	h := newHandle()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.Wait(ctx), context.Canceled)
}

func TestAwaitAll(t *testing.T) {
	handles := []*Handle{ResolvedHandle(), nil, newHandle(), newHandle()}
	go func() {
		time.Sleep(5 * time.Millisecond)
		handles[2].resolve()
		handles[3].resolve()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, AwaitAll(ctx, handles))
	for _, h := range handles {
		assert.True(t, h.Resolved())
	}
}

func TestAwaitAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := AwaitAll(ctx, []*Handle{ResolvedHandle(), newHandle()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAwaitAll_Empty(t *testing.T) {
	assert.NoError(t, AwaitAll(context.Background(), nil))
}
