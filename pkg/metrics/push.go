package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// ProbeJob is the Pushgateway job name the probe reports under.
const ProbeJob = "webmonitor_probe"

// Push replaces the metrics stored for job on the Pushgateway at url with
// everything g gathers. Short-lived commands use it in place of a scrape
// endpoint.
func Push(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	if err := push.New(url, job).Gatherer(g).PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", url, err)
	}
	return nil
}
