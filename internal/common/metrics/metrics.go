// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menusync_syncs_completed_total",
			Help: "Total number of branch syncs completed",
		},
		[]string{"triggered_by"},
	)

	SyncsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menusync_syncs_failed_total",
			Help: "Total number of branch syncs failed",
		},
		[]string{"error_code"},
	)

	SyncConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "menusync_sync_conflicts_total",
			Help: "Total number of locked-field conflicts recorded during syncs",
		},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "menusync_sync_duration_seconds",
			Help: "Duration of single-branch sync in seconds",
		},
	)

	VersionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menusync_versions_created_total",
			Help: "Total number of master menu versions created",
		},
		[]string{"change_type"},
	)

	BulkSyncsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "menusync_bulk_syncs_active",
			Help: "Number of bulk sync fan-outs currently running",
		},
	)
)
