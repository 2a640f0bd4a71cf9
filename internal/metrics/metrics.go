// Package metrics exposes Prometheus counters for the watch loop. Metrics
// are best-effort observability; the monitor contract remains the state
// files, not this endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts completed scan passes over the watch root.
	ScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hbwatch_scans_total",
		Help: "Total number of completed scan passes.",
	})

	// JobsCompletedTotal counts successful encodes.
	JobsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hbwatch_jobs_completed_total",
		Help: "Total number of files encoded successfully.",
	})

	// JobsFailedTotal counts per-file failures by reason category.
	JobsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hbwatch_jobs_failed_total",
		Help: "Total number of per-file failures, by reason.",
	}, []string{"reason"})

	// BytesSavedTotal accumulates original minus compressed bytes.
	BytesSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hbwatch_bytes_saved_total",
		Help: "Cumulative bytes saved across completed encodes.",
	})
)

// Failure reason label values.
const (
	ReasonRejected     = "suffix_rejected"
	ReasonOutputExists = "output_exists"
	ReasonProbe        = "probe_failed"
	ReasonEncoder      = "encoder_failed"
	ReasonFolder       = "folder_empty"
)
