package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent registry operations.
type Metrics struct {
	TierChanges          *prometheus.CounterVec
	TierLookups          *prometheus.CounterVec
	EscalationsRejected  prometheus.Counter
	VersionConflicts     prometheus.Counter
	TierLookupLatency    prometheus.Histogram
}

// New registers and returns consent metrics collectors.
func New() *Metrics {
	return &Metrics{
		TierChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "othello_consent_tier_changes_total",
			Help: "Total number of tier changes, labeled by scope and new tier",
		}, []string{"scope", "tier"}),
		TierLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "othello_consent_tier_lookups_total",
			Help: "Total number of tier lookups, labeled by resolution source",
		}, []string{"source"}),
		EscalationsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "othello_consent_escalations_rejected_total",
			Help: "Total number of autonomous-tier escalations rejected for missing confirmation",
		}),
		VersionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "othello_consent_version_conflicts_total",
			Help: "Total number of optimistic-concurrency conflicts on tier writes",
		}),
		TierLookupLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "othello_consent_tier_lookup_latency_seconds",
			Help:    "Latency of tier resolution in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}
}

func (m *Metrics) IncrementTierChanges(scope, tier string) {
	m.TierChanges.WithLabelValues(scope, tier).Inc()
}

func (m *Metrics) IncrementTierLookups(source string) {
	m.TierLookups.WithLabelValues(source).Inc()
}

func (m *Metrics) IncrementEscalationsRejected() {
	m.EscalationsRejected.Inc()
}

func (m *Metrics) IncrementVersionConflicts() {
	m.VersionConflicts.Inc()
}

func (m *Metrics) ObserveTierLookupLatency(seconds float64) {
	m.TierLookupLatency.Observe(seconds)
}
