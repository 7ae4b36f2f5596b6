package eventsync

import (
	"context"
	"errors"
	"sync/atomic"
	"unsafe"
)

// OverrunPolicy defines what happens when the ring buffer is full. The
// synchronizer stages with ReturnError and never fills the ring; DropOldest
// is for callers that use an EventStore on its own as a lossy buffer.
type OverrunPolicy int

const (
	// ReturnError makes Enqueue fail fast with ErrBufferFull.
	ReturnError OverrunPolicy = iota
	// DropOldest discards the oldest pending event to make room.
	DropOldest
)

// ErrBufferFull is returned by Enqueue when OverrunPolicy==ReturnError and the ring buffer is saturated.
var ErrBufferFull = errors.New("eventsync: buffer is full")

const cacheLine = 64

type pad [cacheLine - unsafe.Sizeof(uint64(0))]byte

// EventStore stages generated events in a lock-free ring buffer and hands
// them to the dispatcher in enqueue order on Flush.
type EventStore struct {
	dispatcher *Dispatcher
	size       uint64
	buf        []unsafe.Pointer // holds *Event
	events     []Event
	_          pad
	head       uint64 // write index
	_          pad
	tail       uint64 // read index

	OverrunPolicy OverrunPolicy

	enqueuedCount   uint64
	dispatchedCount uint64
	droppedCount    uint64
}

// NewEventStore initializes a new EventStore. bufferSize must be a power of two.
func NewEventStore(dispatcher *Dispatcher, bufferSize uint64, policy OverrunPolicy) *EventStore {
	if bufferSize == 0 || bufferSize&(bufferSize-1) != 0 {
		panic("bufferSize must be a power of two")
	}
	return &EventStore{
		dispatcher:    dispatcher,
		size:          bufferSize,
		buf:           make([]unsafe.Pointer, bufferSize),
		events:        make([]Event, bufferSize),
		OverrunPolicy: policy,
	}
}

// bufferSizeFor returns the smallest power of two holding n events.
func bufferSizeFor(n int) uint64 {
	size := uint64(2)
	for size < uint64(n) {
		size <<= 1
	}
	return size
}

// Cap returns the number of events the ring holds.
func (es *EventStore) Cap() int {
	return int(es.size)
}

// Len returns the number of events waiting to be flushed.
func (es *EventStore) Len() int {
	return int(atomic.LoadUint64(&es.head) - atomic.LoadUint64(&es.tail))
}

// Enqueue stores an event, applying OverrunPolicy when the ring is full.
// Enqueue and Flush must be called from the same goroutine.
func (es *EventStore) Enqueue(e Event) error {
	for {
		head := atomic.LoadUint64(&es.head)
		tail := atomic.LoadUint64(&es.tail)
		if head-tail < es.size {
			idx := atomic.AddUint64(&es.head, 1) - 1
			slot := idx & (es.size - 1)
			ev := &es.events[slot]
			*ev = e
			atomic.StorePointer(&es.buf[slot], unsafe.Pointer(ev))
			atomic.AddUint64(&es.enqueuedCount, 1)
			return nil
		}

		switch es.OverrunPolicy {
		case DropOldest:
			atomic.StorePointer(&es.buf[tail&(es.size-1)], nil)
			atomic.AddUint64(&es.tail, 1)
			atomic.AddUint64(&es.droppedCount, 1)
			continue
		default:
			return ErrBufferFull
		}
	}
}

// Flush dispatches every pending event in enqueue order and returns the
// handles the listeners produced. On the first listener failure the
// remaining pending events are discarded and the error returned.
func (es *EventStore) Flush(ctx context.Context) ([]*Handle, error) {
	head := atomic.LoadUint64(&es.head)
	tail := atomic.LoadUint64(&es.tail)
	if tail == head {
		return nil, nil
	}

	mask := es.size - 1
	var handles []*Handle
	for i := tail; i < head; i++ {
		p := atomic.SwapPointer(&es.buf[i&mask], nil)
		if p == nil {
			continue // slot not written yet
		}
		ev := *(*Event)(p)
		hs, err := es.dispatcher.Emit(ctx, ev)
		handles = append(handles, hs...)
		atomic.AddUint64(&es.dispatchedCount, 1)
		if err != nil {
			atomic.StoreUint64(&es.tail, i+1)
			es.discard()
			return handles, err
		}
	}
	atomic.StoreUint64(&es.tail, head)
	return handles, nil
}

// discard drops every pending event without dispatching it.
func (es *EventStore) discard() {
	head := atomic.LoadUint64(&es.head)
	mask := es.size - 1
	for i := atomic.LoadUint64(&es.tail); i < head; i++ {
		atomic.StorePointer(&es.buf[i&mask], nil)
	}
	atomic.StoreUint64(&es.tail, head)
}

// Metrics returns snapshot counters.
func (es *EventStore) Metrics() (enqueued, dispatched, dropped uint64) {
	return atomic.LoadUint64(&es.enqueuedCount),
		atomic.LoadUint64(&es.dispatchedCount),
		atomic.LoadUint64(&es.droppedCount)
}
