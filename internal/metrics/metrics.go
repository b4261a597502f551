package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersTotal tracks settled and rejected transfers per outcome.
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_transfers_total",
			Help: "Total number of transfer attempts",
		},
		[]string{"kind", "outcome"},
	)

	// TransferLatency tracks end-to-end settlement latency.
	TransferLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_transfer_latency_seconds",
			Help:    "Transfer settlement latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SwapsTotal tracks executed swaps per pair.
	SwapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_swaps_total",
			Help: "Total number of executed swaps",
		},
		[]string{"pair"},
	)

	// TradesMatched tracks trades emitted by the order matcher.
	TradesMatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_trades_matched_total",
			Help: "Total number of matched trades",
		},
		[]string{"pair"},
	)

	// BatchSize observes transfer batch sizes.
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_batch_size",
			Help:    "Number of transfers per batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	// SignatureVerifications tracks verification outcomes; a rising
	// "invalid" count is an attack signal.
	SignatureVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_signature_verifications_total",
			Help: "Total number of signature verifications",
		},
		[]string{"outcome"},
	)

	// ProofVerifications tracks range-proof verification outcomes.
	ProofVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_proof_verifications_total",
			Help: "Total number of range proof verifications",
		},
		[]string{"outcome"},
	)

	// CacheRequests tracks cache hits and misses per category.
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_cache_requests_total",
			Help: "Cache lookups by category and result",
		},
		[]string{"category", "result"},
	)

	// DBConnectionPoolUsage tracks connection pool saturation (percent).
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
