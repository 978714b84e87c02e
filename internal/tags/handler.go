package tags

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/fundsight/tally/pkg/handlers"
	"github.com/fundsight/tally/pkg/routes"
)

// Handler provides HTTP endpoints for document tag operations.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "tags"),
	}
}

// Routes returns the route group definition for tag endpoints. Routes are
// document-scoped and registered under the /documents prefix.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/documents",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}/tags", Handler: h.List},
			{Method: "POST", Pattern: "/{id}/update-tags", Handler: h.Update},
		},
	}
}

// List returns a document's tags, optionally filtered by kind.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrValidation)
		return
	}

	var kind *Kind
	if k := r.URL.Query().Get("kind"); k != "" {
		parsed, err := ParseKind(k)
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
			return
		}
		kind = &parsed
	}

	result, err := h.sys.List(r.Context(), id, kind)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Update applies a manual tag correction to a document. Period changes
// detach the document from metrics that no longer match; re-attachment
// requires an explicit add-to-records call.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrValidation)
		return
	}

	var cmd UpdateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrValidation)
		return
	}

	if err := h.sys.UpdateTags(r.Context(), id, cmd); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	tags, err := h.sys.List(r.Context(), id, nil)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"id":   id,
		"tags": tags,
	})
}
