package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	purchasesProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "purchase",
			Name:      "requests_processed_total",
			Help:      "Total purchase requests processed, by terminal outcome.",
		},
		[]string{"outcome"}, // "success", "invalid_customer", "package_unavailable", "insufficient_funds", "debit_failed", "activation_failed"
	)

	purchaseProcessingDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "purchase",
			Name:      "request_duration_seconds",
			Help:      "Duration of purchase request processing.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	compensationCreditFailuresCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "purchase",
			Name:      "compensation_credit_failures_total",
			Help:      "Total failed attempts to apply a compensating credit.",
		},
	)

	reconciliationEntriesQueuedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "purchase",
			Name:      "reconciliation_entries_queued_total",
			Help:      "Total debits parked in the reconciliation queue after compensation exhaustion.",
		},
	)
)
