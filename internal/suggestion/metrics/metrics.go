package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for suggestion lifecycle operations.
type Metrics struct {
	Created             *prometheus.CounterVec
	Transitions         *prometheus.CounterVec
	IllegalTransitions  prometheus.Counter
	Expired             prometheus.Counter
	SweepDuration       prometheus.Histogram
	DecisionLatency     prometheus.Histogram
}

// New registers and returns suggestion metrics collectors.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "othello_suggestions_created_total",
			Help: "Total number of suggestions created, labeled by verdict outcome",
		}, []string{"outcome"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "othello_suggestion_transitions_total",
			Help: "Total number of lifecycle transitions, labeled by from and to status",
		}, []string{"from", "to"}),
		IllegalTransitions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "othello_suggestion_illegal_transitions_total",
			Help: "Total number of rejected illegal transition attempts",
		}),
		Expired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "othello_suggestions_expired_total",
			Help: "Total number of suggestions moved to expired by the sweeper",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "othello_suggestion_sweep_duration_seconds",
			Help:    "Duration of one expiry sweep in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		DecisionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "othello_suggestion_decision_latency_seconds",
			Help:    "Time between suggestion creation and the user's decision in seconds",
			Buckets: []float64{1, 10, 60, 300, 1800, 3600, 21600, 86400},
		}),
	}
}

func (m *Metrics) IncrementCreated(outcome string) {
	m.Created.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementTransitions(from, to string) {
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncrementIllegalTransitions() {
	m.IllegalTransitions.Inc()
}

func (m *Metrics) IncrementExpired() {
	m.Expired.Inc()
}

func (m *Metrics) ObserveSweepDuration(seconds float64) {
	m.SweepDuration.Observe(seconds)
}

func (m *Metrics) ObserveDecisionLatency(seconds float64) {
	m.DecisionLatency.Observe(seconds)
}
