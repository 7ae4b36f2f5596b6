package eventsync

// Metrics receives pipeline instrumentation. Implementations must be safe
// for concurrent use; sink completions report from timer goroutines.
type Metrics interface {
	// EventsGenerated records n events of kind produced by one tick.
	EventsGenerated(kind Kind, n int)
	// EventRecorded records a Local Counter increment.
	EventRecorded(kind Kind)
	// SyncScheduled records a Durable Sink write that is now in flight.
	SyncScheduled(kind Kind)
	// EventSynced records a completed Durable Sink write.
	EventSynced(kind Kind)
	// TickCompleted records one generation cycle.
	TickCompleted()
	// SuccessRate records the final rate of a kind.
	SuccessRate(kind Kind, rate float64)
}

type nopMetrics struct{}

func (nopMetrics) EventsGenerated(Kind, int) {}
func (nopMetrics) EventRecorded(Kind)        {}
func (nopMetrics) SyncScheduled(Kind)        {}
func (nopMetrics) EventSynced(Kind)          {}
func (nopMetrics) TickCompleted()            {}
func (nopMetrics) SuccessRate(Kind, float64) {}

// NopMetrics returns a Metrics that discards everything.
func NopMetrics() Metrics { return nopMetrics{} }
