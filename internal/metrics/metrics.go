package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationDuration tracks the latency of ledger mutations by operation
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "ledger_operation_duration_seconds",
			Help: "Duration of ledger mutations in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
				5.0,   // 5s
			},
		},
		[]string{"operation", "status"}, // status is success or failure
	)

	// DonationAmount tracks the distribution of donation sizes in base units
	DonationAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_donation_amount",
			Help:    "Donation amounts in base units",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
	)

	// EventPublishFailures counts ledger events that could not be published
	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_event_publish_failures_total",
			Help: "Total number of ledger events that failed to publish",
		},
		[]string{"event_type"},
	)

	// ReconciliationDrift counts invariant violations found by the reconciler
	ReconciliationDrift = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_reconciliation_drift_total",
			Help: "Total number of stored totals that disagreed with recomputed sums",
		},
		[]string{"check"},
	)
)

// RecordOperationDuration records the duration of a ledger mutation
func RecordOperationDuration(operation, status string, duration float64) {
	OperationDuration.WithLabelValues(operation, status).Observe(duration)
}

// RecordDonationAmount records the size of an accepted donation
func RecordDonationAmount(amount int64) {
	DonationAmount.Observe(float64(amount))
}

// RecordEventPublishFailure records a failed event publish
func RecordEventPublishFailure(eventType string) {
	EventPublishFailures.WithLabelValues(eventType).Inc()
}

// RecordReconciliationDrift records a detected invariant violation
func RecordReconciliationDrift(check string) {
	ReconciliationDrift.WithLabelValues(check).Inc()
}
