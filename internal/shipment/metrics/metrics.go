// Package metrics exposes shipment lifecycle counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ShipmentsCreated   prometheus.Counter
	Transitions        *prometheus.CounterVec
	Evaluations        *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	DocumentsUploaded  *prometheus.CounterVec
	TokensIssued       prometheus.Counter
	TokensConsumed     *prometheus.CounterVec
}

// New registers the shipment metrics on reg. Production passes the default
// registerer; tests pass a fresh registry per suite.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ShipmentsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "preclear_shipments_created_total",
			Help: "Shipments created.",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "preclear_shipment_transitions_total",
			Help: "Status transitions applied, labeled by source and target state.",
		}, []string{"from", "to"}),
		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "preclear_evaluations_total",
			Help: "Compliance evaluations, labeled by verdict.",
		}, []string{"status"}),
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "preclear_evaluation_duration_seconds",
			Help:    "Compliance evaluation latency.",
			Buckets: prometheus.DefBuckets,
		}),
		DocumentsUploaded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "preclear_documents_uploaded_total",
			Help: "Documents uploaded, labeled by type.",
		}, []string{"type"}),
		TokensIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "preclear_tokens_issued_total",
			Help: "Preclear tokens issued after broker approval.",
		}),
		TokensConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "preclear_tokens_consumed_total",
			Help: "Preclear token verification attempts, labeled by outcome.",
		}, []string{"outcome"}),
	}
}
