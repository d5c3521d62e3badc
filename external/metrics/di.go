package metrics

import (
	"fmt"

	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/metrics"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (metrics.Recorder, error) {
		c := do.MustInvoke[*config.Config](i)
		if c.MetricsAddr == "" {
			return metrics.Noop{}, nil
		}
		r := NewPrometheusRecorder()
		if err := r.Serve(c.MetricsAddr); err != nil {
			return nil, fmt.Errorf("start metrics server: %w", err)
		}
		return r, nil
	})
}
