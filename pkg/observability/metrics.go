package observability

import (
	"github.com/facebookincubator/go-belt/tool/experimental/metrics"
)

// NewMetrics returns the Metrics of the publisher. No metrics exporter is
// configured, so this is the go-belt default.
func NewMetrics() metrics.Metrics {
	return metrics.Default()
}
