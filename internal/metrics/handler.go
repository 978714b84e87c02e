package metrics

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/fundsight/tally/pkg/handlers"
	"github.com/fundsight/tally/pkg/routes"
)

// Handler provides HTTP endpoints for metric aggregation operations.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// AnalyzeRequest optionally narrows an analysis run to specific documents.
type AnalyzeRequest struct {
	DocumentIDs []uuid.UUID `json:"document_ids"`
}

// AddToRecordsRequest controls whether enrollment triggers a recompute.
type AddToRecordsRequest struct {
	Analyze bool `json:"analyze"`
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "metrics"),
	}
}

// Routes returns the route groups for metric endpoints: period queries and
// analysis under /metrics, document enrollment under /documents, and forced
// association under /admin.
func (h *Handler) Routes() []routes.Group {
	return []routes.Group{
		{
			Prefix: "/metrics",
			Routes: []routes.Route{
				{Method: "GET", Pattern: "/{year}/{month}", Handler: h.Get},
				{Method: "GET", Pattern: "/table/{year}", Handler: h.Table},
				{Method: "POST", Pattern: "/analyze/{year}/{month}", Handler: h.Analyze},
			},
		},
		{
			Prefix: "/documents",
			Routes: []routes.Route{
				{Method: "POST", Pattern: "/{id}/add-to-records", Handler: h.AddToRecords},
			},
		},
		{
			Prefix: "/admin",
			Routes: []routes.Route{
				{Method: "POST", Pattern: "/force-analyze/{year}/{month}", Handler: h.ForceAnalyze},
			},
		},
	}
}

// Get returns the metric for one period, zero-valued when absent.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	year, month, err := parsePeriod(r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.Get(r.Context(), year, month)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Table returns the twelve-month table for a year.
func (h *Handler) Table(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrValidation)
		return
	}

	result, err := h.sys.Table(r.Context(), year)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Analyze recomputes a period's figures from its documents.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	year, month, err := parsePeriod(r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	var req AnalyzeRequest
	if err := decodeOptional(r, &req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrValidation)
		return
	}

	result, err := h.sys.AnalyzePeriod(r.Context(), year, month, req.DocumentIDs)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// AddToRecords enrolls a document in the metrics of its period tags.
func (h *Handler) AddToRecords(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrValidation)
		return
	}

	var req AddToRecordsRequest
	if err := decodeOptional(r, &req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrValidation)
		return
	}

	result, err := h.sys.AddToRecords(r.Context(), id, req.Analyze)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// ForceAnalyze rewrites a period's membership without recomputing figures.
func (h *Handler) ForceAnalyze(w http.ResponseWriter, r *http.Request) {
	year, month, err := parsePeriod(r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	var req AnalyzeRequest
	if err := decodeOptional(r, &req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrValidation)
		return
	}

	result, err := h.sys.ForceAssociate(r.Context(), year, month, req.DocumentIDs)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func parsePeriod(r *http.Request) (int, int, error) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		return 0, 0, ErrValidation
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil {
		return 0, 0, ErrValidation
	}
	return year, month, ValidatePeriod(year, month)
}

// decodeOptional parses an optional JSON body; an empty body is valid.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
