// Package observability exposes Prometheus metrics for the detection feed.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates every collector the feed reports to.
type Metrics struct {
	ItemsOpened        prometheus.Counter
	ItemsReopened      prometheus.Counter
	ItemsClosed        prometheus.Counter
	ItemsMerged        prometheus.Counter
	ItemsTrimmed       *prometheus.CounterVec // by reason: age, count, storage, deleted
	SnapshotsCaptured  prometheus.Counter
	SnapshotFailures   prometheus.Counter
	ResolutionOutcomes *prometheus.CounterVec // by outcome: linked, pending, not_found, download_failed
	CachedAssetBytes   prometheus.Gauge
	SaveFailures       prometheus.Counter
}

// NewMetrics creates and registers all feed collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ItemsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reolink_feed",
			Name:      "items_opened_total",
			Help:      "Number of newly opened detection items",
		}),
		ItemsReopened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reolink_feed",
			Name:      "items_reopened_total",
			Help:      "Number of items reopened within the merge window",
		}),
		ItemsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reolink_feed",
			Name:      "items_closed_total",
			Help:      "Number of detection items closed",
		}),
		ItemsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reolink_feed",
			Name:      "items_merged_total",
			Help:      "Number of rebuilt candidates merged into existing items",
		}),
		ItemsTrimmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reolink_feed",
			Name:      "items_trimmed_total",
			Help:      "Number of items removed by retention, count or storage trimming",
		}, []string{"reason"}),
		SnapshotsCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reolink_feed",
			Name:      "snapshots_captured_total",
			Help:      "Number of snapshots captured and persisted",
		}),
		SnapshotFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reolink_feed",
			Name:      "snapshot_failures_total",
			Help:      "Number of snapshot capture or persist failures",
		}),
		ResolutionOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reolink_feed",
			Name:      "recording_resolution_total",
			Help:      "Recording resolution attempts by outcome",
		}, []string{"outcome"}),
		CachedAssetBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reolink_feed",
			Name:      "cached_asset_bytes",
			Help:      "Cumulative size of on-disk assets referenced by items",
		}),
		SaveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reolink_feed",
			Name:      "save_failures_total",
			Help:      "Number of failed timeline persistence writes",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ItemsOpened, m.ItemsReopened, m.ItemsClosed, m.ItemsMerged,
			m.ItemsTrimmed, m.SnapshotsCaptured, m.SnapshotFailures,
			m.ResolutionOutcomes, m.CachedAssetBytes, m.SaveFailures,
		)
	}
	return m
}
