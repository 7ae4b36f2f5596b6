package eventsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"sync"

	"github.com/jonboulle/clockwork"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrAlreadyStarted is returned by Start on a synchronizer that left Idle.
var ErrAlreadyStarted = errors.New("eventsync: already started")

// State is the lifecycle of a Synchronizer.
type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Sampler draws the burst size of kind for one tick.
type Sampler func(kind Kind) int

// UniformSampler draws uniformly from [lo, hi].
func UniformSampler(lo, hi int) Sampler {
	return func(Kind) int {
		return lo + rand.IntN(hi-lo+1)
	}
}

// Option customizes a Synchronizer.
type Option func(*Synchronizer)

// WithClock sets the clock driving ticks and sink latency.
func WithClock(c clockwork.Clock) Option {
	return func(s *Synchronizer) { s.clock = c }
}

// WithSampler replaces the burst size draw.
func WithSampler(fn Sampler) Option {
	return func(s *Synchronizer) { s.sample = fn }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Synchronizer) { s.log = log }
}

// WithOutput sets where the console report is written.
func WithOutput(w io.Writer) Option {
	return func(s *Synchronizer) { s.out = w }
}

// WithMetrics sets the instrumentation backend.
func WithMetrics(m Metrics) Option {
	return func(s *Synchronizer) { s.metrics = m }
}

// Synchronizer generates bursts of A and B events on a fixed interval,
// feeds them through the dispatcher into the local counter and the durable
// sink, and scores the sink's lag once both budgets are spent.
type Synchronizer struct {
	cfg     Config
	runID   string
	clock   clockwork.Clock
	sample  Sampler
	log     *slog.Logger
	out     io.Writer
	metrics Metrics

	dispatcher *Dispatcher
	handler    *Handler
	repo       *Repository
	store      *EventStore

	mu        sync.Mutex
	state     State
	cancel    context.CancelFunc
	done      chan struct{}
	tick      uint64
	generated Tally
	outcome   *Outcome
	err       error
}

// New builds a Synchronizer in the Idle state.
func New(cfg Config, opts ...Option) (*Synchronizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Synchronizer{
		cfg:       cfg,
		runID:     fmt.Sprintf("run-%s", gonanoid.Must(6)),
		done:      make(chan struct{}),
		generated: make(Tally),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.sample == nil {
		s.sample = UniformSampler(cfg.MinBurst, cfg.MaxBurst)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With(slog.String("run", s.runID))
	if s.out == nil {
		s.out = os.Stdout
	}
	if s.metrics == nil {
		s.metrics = NopMetrics()
	}

	s.dispatcher = NewDispatcher()
	s.handler = NewHandler(s.log, s.metrics)
	s.repo = NewRepository(RepositoryOptions{
		Clock:   s.clock,
		Latency: cfg.SyncLatency,
		Log:     s.log,
		Metrics: s.metrics,
	})
	// sized for two default bursts; larger draws are committed in chunks
	s.store = NewEventStore(s.dispatcher, bufferSizeFor(2*cfg.MaxBurst), ReturnError)

	for _, k := range kinds {
		s.dispatcher.Register(k, s.listener(k))
	}
	s.dispatcher.OnError(func(_ context.Context, ev Event, err error) {
		s.log.Error("listener failed", slog.String("kind", ev.Kind.String()), slog.String("event", ev.ID), slog.Any("err", err))
	})
	return s, nil
}

func (s *Synchronizer) listener(kind Kind) Listener {
	return func(_ context.Context, _ Event) (*Handle, error) {
		s.handler.SaveEvent(kind)
		return s.repo.SyncEvent(kind), nil
	}
}

// RunID identifies the run in logs.
func (s *Synchronizer) RunID() string { return s.runID }

// Dispatcher exposes the bus so callers can attach extra listeners or hooks.
func (s *Synchronizer) Dispatcher() *Dispatcher { return s.dispatcher }

// Handler returns the local counter.
func (s *Synchronizer) Handler() *Handler { return s.handler }

// Repository returns the durable sink.
func (s *Synchronizer) Repository() *Repository { return s.repo }

// State returns the current lifecycle state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns the current tick counter and tallies.
func (s *Synchronizer) Stats() TickStats {
	s.mu.Lock()
	tick := s.tick
	generated := make(Tally, len(s.generated))
	for k, v := range s.generated {
		generated[k] = v
	}
	s.mu.Unlock()

	// sink first: it moves on timer goroutines, the counter only on the loop
	synced := s.repo.Snapshot()
	return TickStats{
		Tick:      tick,
		Generated: generated,
		Recorded:  s.handler.Snapshot(),
		Synced:    synced,
	}
}

// Start begins periodic generation. Cancelling ctx stops the run like Stop.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = Running
	ticker := s.clock.NewTicker(s.cfg.Interval)

	s.log.Info("event generation started",
		slog.Int("max_events", s.cfg.MaxEvents),
		slog.Duration("interval", s.cfg.Interval),
		slog.Duration("sync_latency", s.cfg.SyncLatency),
	)
	go s.loop(ctx, ticker)
	return nil
}

func (s *Synchronizer) loop(ctx context.Context, ticker clockwork.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.finish(nil, nil)
			return
		case <-ticker.Chan():
			if ctx.Err() != nil {
				s.finish(nil, nil)
				return
			}
			exhausted, err := s.step(ctx)
			if err != nil {
				s.finish(nil, fmt.Errorf("tick aborted: %w", err))
				return
			}
			if exhausted {
				s.finish(s.report(), nil)
				return
			}
		}
	}
}

// step runs one generation cycle and reports whether both budgets are spent.
func (s *Synchronizer) step(ctx context.Context) (bool, error) {
	s.mu.Lock()
	tick := s.tick + 1
	base := make(Tally, len(kinds))
	for k, v := range s.generated {
		base[k] = v
	}
	s.mu.Unlock()

	counts := make(map[Kind]int, len(kinds))
	for _, k := range kinds {
		counts[k] = clampBurst(s.sample(k), s.cfg.MaxEvents, base.Get(k))
	}

	// sink handles are not awaited before scoring
	batch := s.store.BeginBatch()
	for _, k := range kinds {
		for i := 0; i < counts[k]; i++ {
			batch.Add(NewEvent(k, base.Get(k)+uint64(i)+1, tick))
			if batch.Len() == s.store.Cap() {
				if _, err := batch.Commit(ctx); err != nil {
					return false, err
				}
			}
		}
	}
	if _, err := batch.Commit(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	for _, k := range kinds {
		s.generated[k] += uint64(counts[k])
	}
	s.tick = tick
	s.mu.Unlock()

	for _, k := range kinds {
		s.metrics.EventsGenerated(k, counts[k])
	}
	s.metrics.TickCompleted()

	stats := s.Stats()
	writeTickStats(s.out, stats)
	s.log.Debug("tick",
		slog.Uint64("tick", tick),
		slog.Int("burst_a", counts[KindA]),
		slog.Int("burst_b", counts[KindB]),
		slog.Int("sync_pending", s.repo.Pending()),
	)

	budget := uint64(s.cfg.MaxEvents)
	for _, k := range kinds {
		if stats.Generated.Get(k) < budget {
			return false, nil
		}
	}
	return true, nil
}

// clampBurst limits a draw so the cumulative count never passes budget.
func clampBurst(draw, budget int, generated uint64) int {
	remaining := budget - int(generated)
	if remaining <= 0 || draw <= 0 {
		return 0
	}
	return min(draw, remaining)
}

func (s *Synchronizer) report() *Outcome {
	o := Evaluate(s.Stats(), s.cfg.Threshold)
	o.RunID = s.runID
	for _, k := range kinds {
		s.metrics.SuccessRate(k, o.Rates[k])
	}
	writeOutcome(s.out, o)
	s.log.Info("run evaluated",
		slog.Float64("rate_a", o.Rates[KindA]),
		slog.Float64("rate_b", o.Rates[KindB]),
		slog.Float64("success", o.Success),
		slog.Float64("failure", o.Failure),
	)
	return o
}

func (s *Synchronizer) finish(o *Outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Stopped {
		return
	}
	s.state = Stopped
	s.outcome = o
	s.err = err
	if s.cancel != nil {
		s.cancel()
	}
	close(s.done)

	fmt.Fprintln(s.out, "Event generation stopped.")
	if err != nil {
		s.log.Error("event generation aborted", slog.Any("err", err))
		return
	}
	s.log.Info("event generation stopped", slog.Uint64("ticks", s.tick))
}

// Stop cancels periodic generation and waits for the loop to exit. Sink
// writes already scheduled keep firing. Stop is idempotent. Listeners and
// dispatcher hooks run on the loop and must call Cancel instead.
func (s *Synchronizer) Stop() {
	s.Cancel()
	<-s.done
}

// Cancel requests a stop without waiting for the loop to exit. The tick in
// progress completes and the run reaches Stopped before the next one.
func (s *Synchronizer) Cancel() {
	s.mu.Lock()
	switch s.state {
	case Idle:
		s.mu.Unlock()
		s.finish(nil, nil)
		return
	case Stopped:
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.mu.Unlock()
	cancel()
}

// Done is closed when the synchronizer reaches Stopped.
func (s *Synchronizer) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until Stopped and returns the outcome. The outcome is nil
// when the run was stopped before both budgets were spent.
func (s *Synchronizer) Wait(ctx context.Context) (*Outcome, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, s.err
}

// Run starts generation and blocks until the run ends.
func (s *Synchronizer) Run(ctx context.Context) (*Outcome, error) {
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s.Wait(context.Background())
}

// Drain waits for in-flight sink writes to land. The scored run never
// calls it.
func (s *Synchronizer) Drain(ctx context.Context) error {
	return s.repo.Wait(ctx)
}
