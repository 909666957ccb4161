package persistence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	resultOK        = "ok"
	resultMissing   = "missing"
	resultCorrupt   = "corrupt"
	resultError     = "error"
	resultFailed    = "failed"
	resultDiscarded = "discarded"
	resultHeld      = "held"
)

var (
	// SnapshotLoads counts snapshot loads by outcome (ok, missing, corrupt, error).
	SnapshotLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_snapshot_loads_total",
			Help: "Total number of cart snapshot loads by result",
		},
		[]string{"result"},
	)

	// SnapshotSaves counts finished saves by outcome (ok, failed, discarded, held).
	SnapshotSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_snapshot_saves_total",
			Help: "Total number of cart snapshot saves by result",
		},
		[]string{"result"},
	)

	// SnapshotSaveAttempts counts individual store writes, retries included.
	SnapshotSaveAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_snapshot_save_attempts_total",
			Help: "Total number of cart snapshot write attempts, including retries",
		},
	)

	// SnapshotSaveDuration observes end-to-end save time, retries included.
	SnapshotSaveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cart_snapshot_save_duration_seconds",
			Help:    "Duration of cart snapshot saves in seconds, including retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SnapshotCommittedVersion is the highest version written to the store.
	SnapshotCommittedVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cart_snapshot_committed_version",
			Help: "Highest cart version written to the store",
		},
	)
)
