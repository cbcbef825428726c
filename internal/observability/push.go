package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends the default registry's metrics to a Pushgateway under the given
// job and run id. Batch commands call it once on exit.
func Push(url, job, runID string) error {
	return PushFrom(prometheus.DefaultGatherer, url, job, runID)
}

// PushFrom pushes metrics from an explicit gatherer.
func PushFrom(g prometheus.Gatherer, url, job, runID string) error {
	p := push.New(url, job).Gatherer(g)
	if runID != "" {
		p = p.Grouping("run_id", runID)
	}
	if err := p.Push(); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
