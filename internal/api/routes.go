package api

import (
	"net/http"

	"github.com/fundsight/tally/internal/config"
	"github.com/fundsight/tally/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
) {
	groups := []routes.Group{
		domain.Documents.Handler(domain.Extraction.Dispatch, cfg.API.MaxUploadSizeBytes()).Routes(),
		domain.Tags.Handler().Routes(),
		domain.Extraction.Handler().Routes(),
	}
	groups = append(groups, domain.Metrics.Handler().Routes()...)

	routes.Register(mux, groups...)
}
