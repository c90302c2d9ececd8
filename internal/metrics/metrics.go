package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LedgerOpsTotal tracks ledger operations by operation and outcome
	LedgerOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solforge_ledger_ops_total",
			Help: "The total number of ledger operations",
		},
		[]string{"op", "status"}, // issue/trade/referral/withdraw, success/rejected/failed
	)

	// SnapshotFlushes tracks snapshot flushes by outcome
	SnapshotFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solforge_snapshot_flushes_total",
			Help: "The total number of snapshot flushes",
		},
		[]string{"status"}, // success, failed
	)

	// SnapshotFlushSeconds tracks time taken to flush a snapshot
	SnapshotFlushSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "solforge_snapshot_flush_seconds",
		Help:    "Time taken to flush a snapshot in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	// SnapshotBytes tracks the size of the last persisted snapshot
	SnapshotBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "solforge_snapshot_bytes",
		Help: "Size of the last persisted snapshot in bytes",
	})

	// CoinsTotal tracks the number of coins in the ledger
	CoinsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "solforge_coins_total",
		Help: "The number of coins in the ledger",
	})

	// ProfilesTotal tracks the number of wallet profiles in the ledger
	ProfilesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "solforge_profiles_total",
		Help: "The number of wallet profiles in the ledger",
	})

	// ChainBalanceLookups tracks chain balance lookups by outcome
	ChainBalanceLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solforge_chain_balance_lookups_total",
			Help: "The total number of chain balance lookups",
		},
		[]string{"status"}, // success, cached, failed
	)
)

// RecordLedgerOp records the outcome of a single ledger operation.
func RecordLedgerOp(op, status string) {
	LedgerOpsTotal.WithLabelValues(op, status).Inc()
}

// RecordFlush records the outcome of a snapshot flush.
func RecordFlush(status string, seconds float64, bytes int) {
	SnapshotFlushes.WithLabelValues(status).Inc()
	if status == "success" {
		SnapshotFlushSeconds.Observe(seconds)
		SnapshotBytes.Set(float64(bytes))
	}
}

// RecordStoreStats records snapshot-level gauges after a mutation.
func RecordStoreStats(coins, profiles int) {
	CoinsTotal.Set(float64(coins))
	ProfilesTotal.Set(float64(profiles))
}

// RecordBalanceLookup records a chain balance lookup outcome.
func RecordBalanceLookup(status string) {
	ChainBalanceLookups.WithLabelValues(status).Inc()
}
