package eventsync

import (
	"github.com/google/uuid"
)

// Kind identifies which tally bucket an event affects.
type Kind string

const (
	KindA Kind = "A"
	KindB Kind = "B"
)

var kinds = []Kind{KindA, KindB}

// Kinds lists every modelled kind in emission order.
func Kinds() []Kind {
	return append([]Kind(nil), kinds...)
}

// Channel returns the dispatcher channel name for the kind.
func (k Kind) Channel() string {
	return "event" + string(k)
}

func (k Kind) String() string { return string(k) }

// Event is a single generated occurrence of a kind.
type Event struct {
	ID   string
	Kind Kind
	Seq  uint64 // 1-based ordinal within its kind
	Tick uint64
}

// NewEvent returns an event with a fresh ID.
func NewEvent(kind Kind, seq, tick uint64) Event {
	return Event{
		ID:   uuid.NewString(),
		Kind: kind,
		Seq:  seq,
		Tick: tick,
	}
}

// Tally maps a kind to a non-negative count.
type Tally map[Kind]uint64

// Get returns the count for kind, zero if absent.
func (t Tally) Get(kind Kind) uint64 {
	return t[kind]
}
