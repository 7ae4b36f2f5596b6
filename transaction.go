package eventsync

import (
	"context"
)

// Batch collects the events of one generation cycle and dispatches them
// together, in the order they were added.
type Batch struct {
	store  *EventStore
	events []Event
}

// BeginBatch starts a new batch on the EventStore.
func (es *EventStore) BeginBatch() *Batch {
	return &Batch{store: es}
}

// Add appends an event to the batch buffer.
func (b *Batch) Add(e Event) {
	b.events = append(b.events, e)
}

// Len returns the number of buffered events.
func (b *Batch) Len() int {
	return len(b.events)
}

// Commit enqueues all buffered events and dispatches them immediately.
// It returns the first error from Enqueue or from a listener. When Enqueue
// fails nothing is dispatched and the store is left empty.
func (b *Batch) Commit(ctx context.Context) ([]*Handle, error) {
	defer b.Rollback()
	for _, e := range b.events {
		if err := b.store.Enqueue(e); err != nil {
			b.store.discard()
			return nil, err
		}
	}
	return b.store.Flush(ctx)
}

// Rollback clears the events buffered in the batch.
func (b *Batch) Rollback() {
	b.events = b.events[:0]
}
