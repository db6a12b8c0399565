package metrics

import "github.com/prometheus/client_golang/prometheus"

// Index and ingestion Prometheus metrics.
var (
	IndexRebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_rebuilds_total",
			Help:      "Index rebuilds by outcome",
		},
		[]string{"outcome"}, // "ready" / "empty" / "error"
	)

	IndexBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_build_duration_seconds",
			Help:      "Index build duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	IndexChunks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_chunks",
			Help:      "Number of chunks in the installed snapshot",
		},
	)

	IngestSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_skipped_objects_total",
			Help:      "Objects skipped during corpus loading",
		},
		[]string{"reason"},
	)

	CaptureRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_process_running",
			Help:      "1 when the capture process is alive",
		},
	)
)
