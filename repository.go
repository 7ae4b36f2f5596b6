package eventsync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultSyncLatency is the simulated write latency of the durable sink.
const DefaultSyncLatency = 500 * time.Millisecond

// RepositoryOptions configures a Repository. Zero values pick defaults.
type RepositoryOptions struct {
	Clock   clockwork.Clock
	Latency time.Duration
	Log     *slog.Logger
	Metrics Metrics
}

// Repository is the durable sink: the slow consumer whose tally only moves
// after a fixed latency has elapsed.
type Repository struct {
	clock   clockwork.Clock
	latency time.Duration
	log     *slog.Logger
	metrics Metrics

	mu       sync.Mutex
	stats    Tally
	inflight int
	idle     chan struct{} // closed while inflight == 0
}

// NewRepository returns a Repository with all tallies at zero.
func NewRepository(opts RepositoryOptions) *Repository {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics()
	}
	idle := make(chan struct{})
	close(idle)
	return &Repository{
		clock:   opts.Clock,
		latency: opts.Latency,
		log:     opts.Log,
		metrics: opts.Metrics,
		stats:   make(Tally),
		idle:    idle,
	}
}

// Latency returns the configured sync delay.
func (r *Repository) Latency() time.Duration {
	return r.latency
}

// SyncEvent schedules the tally increment of kind after the configured
// latency. The returned handle resolves once the increment is applied.
// With zero latency the increment happens before SyncEvent returns.
func (r *Repository) SyncEvent(kind Kind) *Handle {
	r.metrics.SyncScheduled(kind)
	if r.latency <= 0 {
		r.apply(kind)
		return ResolvedHandle()
	}

	r.mu.Lock()
	if r.inflight == 0 {
		r.idle = make(chan struct{})
	}
	r.inflight++
	r.mu.Unlock()

	h := newHandle()
	r.clock.AfterFunc(r.latency, func() {
		r.apply(kind)
		r.mu.Lock()
		r.inflight--
		if r.inflight == 0 {
			close(r.idle)
		}
		r.mu.Unlock()
		h.resolve()
	})
	return h
}

func (r *Repository) apply(kind Kind) {
	r.mu.Lock()
	r.stats[kind]++
	total := r.stats[kind]
	r.mu.Unlock()

	r.metrics.EventSynced(kind)
	r.log.Debug("event synced", slog.String("kind", kind.String()), slog.Uint64("total", total))
}

// Count returns the tally of kind.
func (r *Repository) Count(kind Kind) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats[kind]
}

// Snapshot returns a copy of all tallies.
func (r *Repository) Snapshot() Tally {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(Tally, len(r.stats))
	for k, v := range r.stats {
		out[k] = v
	}
	return out
}

// Pending returns the number of scheduled syncs that have not fired yet.
func (r *Repository) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inflight
}

// Wait blocks until no sync is in flight or ctx ends.
func (r *Repository) Wait(ctx context.Context) error {
	r.mu.Lock()
	idle := r.idle
	r.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
