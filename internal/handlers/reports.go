package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/saluran/fieldreport-server/internal/middleware"
	"github.com/saluran/fieldreport-server/internal/models"
	"github.com/saluran/fieldreport-server/internal/render"
	"github.com/saluran/fieldreport-server/internal/services"
	"github.com/saluran/fieldreport-server/internal/tree"
	"go.uber.org/zap"
)

// PDFExporter prints a document to PDF
type PDFExporter interface {
	Export(ctx context.Context, doc *render.Document) (*render.Result, error)
}

// ReportHandler handles saved report endpoints
type ReportHandler struct {
	reports ReportService
	pdf     PDFExporter
	logger  *zap.SugaredLogger
}

// NewReportHandler creates a new report handler
func NewReportHandler(rs ReportService, pdf PDFExporter, logger *zap.SugaredLogger) *ReportHandler {
	return &ReportHandler{reports: rs, pdf: pdf, logger: logger}
}

// List handles GET /api/v1/reports?variant=daily&limit=20
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := services.ReportFilter{Owner: middleware.OwnerFromContext(r.Context())}

	if v := r.URL.Query().Get("variant"); v != "" {
		parsed, err := models.ParseVariant(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Variant = parsed
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 || n > 200 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		filter.Limit = n
	}

	list, err := h.reports.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to list reports")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// Get handles GET /api/v1/reports/{id}
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, ok := h.load(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, tree.Present(report))
}

// Delete handles DELETE /api/v1/reports/{id}
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.reports.Delete(r.Context(), id, middleware.OwnerFromContext(r.Context())); err != nil {
		respondServiceError(w, h.logger, err, "Failed to delete report")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportPDF handles GET /api/v1/reports/{id}/pdf
func (h *ReportHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, func(doc *render.Document) (*render.Result, error) {
		return h.pdf.Export(r.Context(), doc)
	})
}

// ExportXLSX handles GET /api/v1/reports/{id}/xlsx
func (h *ReportHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, render.XLSX)
}

// ExportHTML handles GET /api/v1/reports/{id}/html (print preview)
func (h *ReportHandler) ExportHTML(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, render.HTMLResult)
}

func (h *ReportHandler) export(w http.ResponseWriter, r *http.Request, fn func(*render.Document) (*render.Result, error)) {
	report, ok := h.load(w, r)
	if !ok {
		return
	}
	doc, err := render.NewDocument(report)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to prepare document")
		return
	}
	res, err := fn(doc)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to render document")
		return
	}

	w.Header().Set("Content-Type", res.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`,
		res.Filename, url.PathEscape(res.Filename)))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(res.Data)
}

func (h *ReportHandler) load(w http.ResponseWriter, r *http.Request) (models.Report, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "Report id required")
		return models.Report{}, false
	}
	report, err := h.reports.Load(r.Context(), id, middleware.OwnerFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to load report")
		return models.Report{}, false
	}
	return report, true
}
