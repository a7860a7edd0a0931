// Package handler wires case endpoints to the case service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"credence/internal/cases/models"
	id "credence/pkg/domain"
	dErrors "credence/pkg/domain-errors"
	"credence/pkg/platform/httputil"
)

// Service defines the case operations the transport needs.
type Service interface {
	Check(ctx context.Context, req *models.CheckRequest) (*models.CheckResponse, error)
	Get(ctx context.Context, userID id.UserID, caseID id.CaseID) (*models.Case, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// Handler exposes the case API.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a case handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts case endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/cases", h.HandleCheck)
	r.Get("/v1/cases/{caseID}", h.HandleGet)
	r.Get("/v1/stats", h.HandleStats)
}

// HandleCheck handles POST /v1/cases requests.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, ok := httputil.DecodeJSON[models.CheckRequest](w, r, h.logger)
	if !ok {
		return
	}

	resp, err := h.service.Check(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "case intake failed",
			"user_id", req.UserID,
			"type", req.Type,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "case accepted",
		"case_id", resp.CaseID,
		"user_id", req.UserID,
		"type", req.Type,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusAccepted, resp)
}

// HandleGet handles GET /v1/cases/{caseID} requests. The owner is identified
// by the user_id query parameter; cases of other users read as not found.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	userID, err := id.ParseUserID(r.URL.Query().Get("user_id"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "user_id query parameter"))
		return
	}

	c, err := h.service.Get(ctx, userID, caseID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "case lookup failed", "case_id", caseID, "error", err)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.CaseResponse{Case: c})
}

// HandleStats handles GET /v1/stats requests.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "stats aggregation failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.StatsResponse{Stats: *stats})
}
