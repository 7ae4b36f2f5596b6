package eventsync

import (
	"github.com/prometheus/client_golang/prometheus"
)

// promMetrics implements Metrics using Prometheus.
type promMetrics struct {
	generated   *prometheus.CounterVec
	recorded    *prometheus.CounterVec
	synced      *prometheus.CounterVec
	pending     prometheus.Gauge
	ticks       prometheus.Counter
	successRate *prometheus.GaugeVec
}

// NewPrometheusMetrics creates Prometheus collectors for the pipeline and
// registers them on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) Metrics {
	m := &promMetrics{
		generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventsync_events_generated_total",
			Help: "Total number of events generated",
		}, []string{"kind"}),

		recorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventsync_events_recorded_total",
			Help: "Total number of events recorded by the local counter",
		}, []string{"kind"}),

		synced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventsync_events_synced_total",
			Help: "Total number of events completed by the durable sink",
		}, []string{"kind"}),

		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eventsync_sync_pending",
			Help: "Durable sink writes currently in flight",
		}),

		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventsync_ticks_total",
			Help: "Total number of generation cycles",
		}),

		successRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "eventsync_success_rate",
			Help: "Durable sink tally over local counter tally at the end of the run",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.generated,
		m.recorded,
		m.synced,
		m.pending,
		m.ticks,
		m.successRate,
	)

	return m
}

func (m *promMetrics) EventsGenerated(kind Kind, n int) {
	m.generated.WithLabelValues(kind.String()).Add(float64(n))
}

func (m *promMetrics) EventRecorded(kind Kind) {
	m.recorded.WithLabelValues(kind.String()).Inc()
}

func (m *promMetrics) SyncScheduled(Kind) {
	m.pending.Inc()
}

func (m *promMetrics) EventSynced(kind Kind) {
	m.pending.Dec()
	m.synced.WithLabelValues(kind.String()).Inc()
}

func (m *promMetrics) TickCompleted() {
	m.ticks.Inc()
}

func (m *promMetrics) SuccessRate(kind Kind, rate float64) {
	m.successRate.WithLabelValues(kind.String()).Set(rate)
}
