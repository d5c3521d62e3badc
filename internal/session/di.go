package session

import (
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/metrics"
	"github.com/foxseedlab/kikitori/internal/output"
	"github.com/foxseedlab/kikitori/internal/repository"
	"github.com/foxseedlab/kikitori/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		engine := do.MustInvoke[transcriber.Engine](i)
		sink := do.MustInvoke[output.Sink](i)
		recorder := do.MustInvoke[metrics.Recorder](i)
		return NewManager(cfg, repo, engine, sink, recorder), nil
	})
}
