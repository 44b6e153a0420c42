// Package handlers contains HTTP request handlers for the field report API.
// Handlers parse requests, call services, and return JSON responses.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/saluran/fieldreport-server/internal/drafts"
	"github.com/saluran/fieldreport-server/internal/media"
	"github.com/saluran/fieldreport-server/internal/render"
	"github.com/saluran/fieldreport-server/internal/services"
	"github.com/saluran/fieldreport-server/internal/tree"
	"github.com/saluran/fieldreport-server/internal/variant"
	"go.uber.org/zap"
)

var validate = validator.New()

// decodeJSON decodes the request body into dst and validates its tags
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, strings.ToLower(fe.Field())+" ("+fe.Tag()+")")
			}
			return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// respondServiceError maps domain errors to status codes. Anything unknown
// is logged and answered with 500.
func respondServiceError(w http.ResponseWriter, logger *zap.SugaredLogger, err error, fallback string) {
	var (
		verr *tree.ValidationError
		uerr *media.UploadError
	)
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Message, "path": verr.Path})
	case errors.Is(err, variant.ErrMissingField):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrReportNotFound):
		respondError(w, http.StatusNotFound, "Report not found")
	case errors.Is(err, drafts.ErrNotFound):
		respondError(w, http.StatusNotFound, "Draft not found or expired")
	case errors.As(err, &uerr):
		logger.Warnw("Photo upload failed", "slot", uerr.Slot, "file", uerr.Filename, "error", uerr.Err)
		respondJSON(w, http.StatusBadGateway, map[string]string{
			"error": "Photo upload failed",
			"slot":  string(uerr.Slot),
			"file":  uerr.Filename,
		})
	case errors.Is(err, render.ErrPDFDependencyMissing):
		respondError(w, http.StatusServiceUnavailable, "PDF export is not available")
	default:
		logger.Errorw(fallback, "error", err)
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

// Helper: respond with JSON
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Helper: respond with error
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
