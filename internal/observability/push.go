package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends the stage metrics to a Prometheus Pushgateway under the given
// job name. Batch stages call it once on exit.
func Push(ctx context.Context, url, job string, m *Metrics) error {
	registry := prometheus.NewRegistry()
	for _, c := range m.Collectors() {
		if err := registry.Register(c); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}

	if err := push.New(url, job).Gatherer(registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
