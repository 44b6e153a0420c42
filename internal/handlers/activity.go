package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/saluran/fieldreport-server/internal/middleware"
	"github.com/saluran/fieldreport-server/internal/models"
	"go.uber.org/zap"
)

// ActivityReader reads the report activity log
type ActivityReader interface {
	FetchByReport(ctx context.Context, reportID string, limit int) ([]models.ActivityLog, error)
	FetchRecent(ctx context.Context, actor string, limit int) ([]models.ActivityLog, error)
}

// ReportAuthorizer checks that a report belongs to the caller
type ReportAuthorizer interface {
	Authorize(ctx context.Context, id, actor string) error
}

// ActivityHandler handles activity log endpoints
type ActivityHandler struct {
	svc     ActivityReader
	reports ReportAuthorizer
	logger  *zap.SugaredLogger
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(svc ActivityReader, reports ReportAuthorizer, logger *zap.SugaredLogger) *ActivityHandler {
	return &ActivityHandler{svc: svc, reports: reports, logger: logger}
}

// ByReport handles GET /api/v1/reports/{id}/activity
func (h *ActivityHandler) ByReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "Report id required")
		return
	}
	if err := h.reports.Authorize(r.Context(), id, middleware.OwnerFromContext(r.Context())); err != nil {
		respondServiceError(w, h.logger, err, "Failed to load report")
		return
	}

	logs, err := h.svc.FetchByReport(r.Context(), id, limitParam(r, 50))
	if err != nil {
		h.logger.Errorw("Failed to fetch report activity", "report", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch logs")
		return
	}

	respondJSON(w, http.StatusOK, logs)
}

// Recent handles GET /api/v1/activity/recent
// Returns the caller's own recent saves and deletes.
func (h *ActivityHandler) Recent(w http.ResponseWriter, r *http.Request) {
	logs, err := h.svc.FetchRecent(r.Context(), middleware.OwnerFromContext(r.Context()), limitParam(r, 100))
	if err != nil {
		h.logger.Errorw("Failed to fetch recent activity", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch recent activity")
		return
	}

	respondJSON(w, http.StatusOK, logs)
}

func limitParam(r *http.Request, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 || n > 500 {
		return fallback
	}
	return n
}
