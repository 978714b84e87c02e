package api

import (
	"github.com/fundsight/tally/internal/ai"
	"github.com/fundsight/tally/internal/config"
	"github.com/fundsight/tally/internal/extraction"
	"github.com/fundsight/tally/internal/infrastructure"
	"github.com/fundsight/tally/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	AI         ai.Config
	Extraction extraction.Config
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
			Tasks:     infra.Tasks,
			Registry:  infra.Registry,
			Pipeline:  infra.Pipeline,
		},
		Pagination: cfg.API.Pagination,
		AI:         cfg.AI,
		Extraction: cfg.Extraction,
	}
}
