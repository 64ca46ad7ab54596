// Package metrics collects the prometheus gauges, served on /metrics, that
// don't belong to any single component: cache size, scheduler last-run
// staleness, and active player-sync counts. Only the scheduler last-run
// gauge is updated (through RecordSchedulerRun); nothing in the module sets
// the cache or player-sync gauges. Job-queue
// counters (claimed/completed/failed/retried) are registered directly by
// internal/queue against the same registry; this package follows that
// register-on-construction shape for the collectors that don't have an
// obvious home.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the ambient gauges threaded through cmd/server/main.go.
type Registry struct {
	CacheBytes       prometheus.Gauge
	CacheBlobCount   prometheus.Gauge
	SchedulerLastRun *prometheus.GaugeVec
	PlayerSyncActive prometheus.Gauge
}

// New builds and registers the ambient gauges against reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		CacheBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "curator_cache_bytes",
			Help: "Total bytes currently held in the content-addressed blob cache.",
		}),
		CacheBlobCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "curator_cache_blob_count",
			Help: "Number of distinct blobs currently held in the cache.",
		}),
		SchedulerLastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "curator_scheduler_last_run_unixtime",
			Help: "Unix timestamp of the last successful cadence trigger, per library and cadence.",
		}, []string{"library_id", "cadence"}),
		PlayerSyncActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "curator_player_sync_active",
			Help: "Number of player-sync scenarios currently in flight.",
		}),
	}
	reg.MustRegister(r.CacheBytes, r.CacheBlobCount, r.SchedulerLastRun, r.PlayerSyncActive)
	return r
}

// RecordSchedulerRun stamps the last-run gauge for a library/cadence pair.
func (r *Registry) RecordSchedulerRun(libraryID string, cadence string, at time.Time) {
	r.SchedulerLastRun.WithLabelValues(libraryID, cadence).Set(float64(at.Unix()))
}
