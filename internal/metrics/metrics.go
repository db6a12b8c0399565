// Package metrics holds the Prometheus collectors for HTTP, model, index and capture.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Once

// Register registers every recall collector on the default registry.
// Later calls do nothing.
func Register() {
	registerOnce.Do(register)
}

func register() {
	prometheus.MustRegister(
		httpRequestDuration,
		httpRequestsTotal,
		httpInFlight,
		ModelRequestsTotal,
		ModelRequestDuration,
		ModelTokensTotal,
		ModelErrorsTotal,
		ModelBudgetTokensRemaining,
		AnswerCacheTotal,
		IndexRebuildsTotal,
		IndexBuildDuration,
		IndexChunks,
		IngestSkippedTotal,
		CaptureRunning,
	)
}
