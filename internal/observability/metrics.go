package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "travel_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	CheckoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_checkouts_total",
			Help: "Checkout attempts by terminal outcome",
		},
		[]string{"outcome"},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "travel_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox record",
		},
	)

	PaymentsReconciled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "travel_payments_reconciled_total",
			Help: "Orphaned payments refunded by the sweep worker",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "travel_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
