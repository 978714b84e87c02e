package extraction

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/fundsight/tally/internal/documents"
	"github.com/fundsight/tally/pkg/handlers"
	"github.com/fundsight/tally/pkg/routes"
)

// Handler provides HTTP endpoints for extraction pipeline operations.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "extraction"),
	}
}

// Routes returns the route group definition for extraction endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/documents",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/{id}/process", Handler: h.Process},
			{Method: "POST", Pattern: "/{id}/analyze-period", Handler: h.AnalyzePeriod},
		},
	}
}

// Process runs the full pipeline synchronously and returns the run summary.
// Used for explicit reprocessing of errored or stale documents.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, documents.ErrNotFound)
		return
	}

	result, err := h.sys.Process(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// AnalyzePeriod re-runs period detection against the stored parsed content.
func (h *Handler) AnalyzePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, documents.ErrNotFound)
		return
	}

	result, err := h.sys.AnalyzePeriod(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
