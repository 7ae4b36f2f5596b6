package eventsync

import (
	"log/slog"
	"sync"
)

// Handler is the local counter: the fast, synchronous consumer.
type Handler struct {
	mu      sync.Mutex
	stats   Tally
	log     *slog.Logger
	metrics Metrics
}

// NewHandler returns a Handler with all tallies at zero. A nil log or
// metrics falls back to slog.Default and NopMetrics.
func NewHandler(log *slog.Logger, metrics Metrics) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Handler{
		stats:   make(Tally),
		log:     log,
		metrics: metrics,
	}
}

// SaveEvent increments the tally of kind by one.
func (h *Handler) SaveEvent(kind Kind) {
	h.mu.Lock()
	h.stats[kind]++
	total := h.stats[kind]
	h.mu.Unlock()

	h.metrics.EventRecorded(kind)
	h.log.Debug("event saved", slog.String("kind", kind.String()), slog.Uint64("total", total))
}

// Count returns the tally of kind.
func (h *Handler) Count(kind Kind) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats[kind]
}

// Snapshot returns a copy of all tallies.
func (h *Handler) Snapshot() Tally {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(Tally, len(h.stats))
	for k, v := range h.stats {
		out[k] = v
	}
	return out
}
