package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/saluran/fieldreport-server/internal/drafts"
	"github.com/saluran/fieldreport-server/internal/media"
	"github.com/saluran/fieldreport-server/internal/middleware"
	"github.com/saluran/fieldreport-server/internal/models"
	"github.com/saluran/fieldreport-server/internal/services"
	"github.com/saluran/fieldreport-server/internal/tree"
	"go.uber.org/zap"
)

// DraftStore keeps report trees under edit
type DraftStore interface {
	Create(ctx context.Context, owner string, r models.Report) (*drafts.Draft, error)
	Get(ctx context.Context, id string) (*drafts.Draft, error)
	Put(ctx context.Context, d *drafts.Draft) error
	Delete(ctx context.Context, id string) error
	PutBlob(ctx context.Context, id string, data []byte) (string, error)
	DropBlob(ctx context.Context, id string, handles ...string) error
	DropBlobs(ctx context.Context, id string) error
	Blobs(id string) media.BlobSource
}

// ReportService loads and persists whole report trees
type ReportService interface {
	Save(ctx context.Context, r models.Report, blobs media.BlobSource, actor string) (models.Report, error)
	Load(ctx context.Context, id, actor string) (models.Report, error)
	Delete(ctx context.Context, id, actor string) error
	List(ctx context.Context, filter services.ReportFilter) ([]models.ReportSummary, error)
}

// DraftHandler exposes the editing operations on a draft report tree
type DraftHandler struct {
	drafts    DraftStore
	reports   ReportService
	maxUpload int64
	logger    *zap.SugaredLogger
}

// NewDraftHandler creates a new draft handler. maxUpload bounds the size of
// one photo upload request.
func NewDraftHandler(ds DraftStore, rs ReportService, maxUpload int64, logger *zap.SugaredLogger) *DraftHandler {
	return &DraftHandler{drafts: ds, reports: rs, maxUpload: maxUpload, logger: logger}
}

type createDraftRequest struct {
	Variant  string `json:"variant" validate:"omitempty,oneof=daily monthly tertiary"`
	ReportID string `json:"report_id" validate:"omitempty,uuid"`
}

type fieldRequest struct {
	Path  string      `json:"path" validate:"required"`
	Value interface{} `json:"value"`
}

type pathRequest struct {
	Path string `json:"path" validate:"required"`
}

type photoRemoveRequest struct {
	Path  string `json:"path" validate:"required"`
	Index *int   `json:"index" validate:"required,min=0"`
}

type draftResponse struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
	Report    tree.View `json:"report"`
}

func newDraftResponse(d *drafts.Draft) draftResponse {
	return draftResponse{ID: d.ID, UpdatedAt: d.UpdatedAt, Report: tree.Present(d.Report)}
}

// Create handles POST /api/v1/drafts
// Starts a new report of a variant, or opens a saved report for editing.
func (h *DraftHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDraftRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	owner := middleware.OwnerFromContext(r.Context())

	var report models.Report
	if req.ReportID != "" {
		loaded, err := h.reports.Load(r.Context(), req.ReportID, owner)
		if err != nil {
			respondServiceError(w, h.logger, err, "Failed to load report")
			return
		}
		report = loaded
	} else {
		v := models.VariantDaily
		if req.Variant != "" {
			v = models.Variant(req.Variant)
		}
		report = tree.NewReport(v, owner)
	}

	d, err := h.drafts.Create(r.Context(), owner, report)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to create draft")
		return
	}

	h.logger.Infow("Draft created", "draft", d.ID, "report", report.ID, "variant", report.Variant)
	respondJSON(w, http.StatusCreated, newDraftResponse(d))
}

// Get handles GET /api/v1/drafts/{id}
func (h *DraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, ok := h.load(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, newDraftResponse(d))
}

// Delete handles DELETE /api/v1/drafts/{id}
func (h *DraftHandler) Delete(w http.ResponseWriter, r *http.Request) {
	d, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.drafts.Delete(r.Context(), d.ID); err != nil {
		respondServiceError(w, h.logger, err, "Failed to discard draft")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetField handles PATCH /api/v1/drafts/{id}/fields
func (h *DraftHandler) SetField(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.mutate(w, r, func(rep models.Report) (models.Report, error) {
		return tree.SetField(rep, req.Path, req.Value)
	})
}

// AddChild handles POST /api/v1/drafts/{id}/children
func (h *DraftHandler) AddChild(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, ok := h.load(w, r)
	if !ok {
		return
	}
	next, key, err := tree.AddChild(d.Report, req.Path)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to add element")
		return
	}
	d.Report = next
	if err := h.drafts.Put(r.Context(), d); err != nil {
		respondServiceError(w, h.logger, err, "Failed to store draft")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"key":   key,
		"draft": newDraftResponse(d),
	})
}

// RemoveChild handles DELETE /api/v1/drafts/{id}/children
func (h *DraftHandler) RemoveChild(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.mutate(w, r, func(rep models.Report) (models.Report, error) {
		return tree.RemoveChild(rep, req.Path)
	})
}

// AttachPhotos handles POST /api/v1/drafts/{id}/photos
// Multipart form: "path" names the slot, each "file" part is one photo.
// The bytes stay in the draft store until the report is saved.
func (h *DraftHandler) AttachPhotos(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	path := r.FormValue("path")
	files := r.MultipartForm.File["file"]
	if path == "" || len(files) == 0 {
		respondError(w, http.StatusBadRequest, "Missing required fields: path, file")
		return
	}

	d, ok := h.load(w, r)
	if !ok {
		return
	}

	next := d.Report
	var stored []string
	for _, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			h.dropBlobs(r.Context(), d.ID, stored)
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		handle, err := h.drafts.PutBlob(r.Context(), d.ID, data)
		if err != nil {
			h.dropBlobs(r.Context(), d.ID, stored)
			respondServiceError(w, h.logger, err, "Failed to store photo")
			return
		}
		stored = append(stored, handle)
		next, err = tree.AttachPhoto(next, path, models.PendingPhoto(models.Attachment{
			Handle:      handle,
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        int64(len(data)),
		}))
		if err != nil {
			h.dropBlobs(r.Context(), d.ID, stored)
			respondServiceError(w, h.logger, err, "Failed to attach photo")
			return
		}
	}

	d.Report = next
	if err := h.drafts.Put(r.Context(), d); err != nil {
		h.dropBlobs(r.Context(), d.ID, stored)
		respondServiceError(w, h.logger, err, "Failed to store draft")
		return
	}
	respondJSON(w, http.StatusCreated, newDraftResponse(d))
}

// RemovePhoto handles DELETE /api/v1/drafts/{id}/photos
func (h *DraftHandler) RemovePhoto(w http.ResponseWriter, r *http.Request) {
	var req photoRemoveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.mutate(w, r, func(rep models.Report) (models.Report, error) {
		return tree.RemovePhoto(rep, req.Path, *req.Index)
	})
}

// Save handles POST /api/v1/drafts/{id}/save
// Uploads pending photos, reconciles the tree with the store and rebases
// the draft on the saved ids so further edits update the same rows. Once
// started, a save runs to completion even if the client goes away.
func (h *DraftHandler) Save(w http.ResponseWriter, r *http.Request) {
	d, ok := h.load(w, r)
	if !ok {
		return
	}
	owner := middleware.OwnerFromContext(r.Context())
	ctx := context.WithoutCancel(r.Context())

	saved, err := h.reports.Save(ctx, d.Report, h.drafts.Blobs(d.ID), owner)
	if err != nil {
		var serr *services.StoreError
		if errors.As(err, &serr) && saved.Key == d.Report.Key {
			// keep the ids of rows written before the failure
			d.Report = tree.Rebase(d.Report, saved)
			if perr := h.drafts.Put(ctx, d); perr != nil {
				h.logger.Warnw("Failed to rebase draft after partial save", "draft", d.ID, "error", perr)
			}
		}
		respondServiceError(w, h.logger, err, "Failed to save report")
		return
	}

	pending := tree.PendingHandles(d.Report)
	d.Report = tree.Rebase(d.Report, saved)
	if err := h.drafts.Put(ctx, d); err != nil {
		h.logger.Warnw("Failed to rebase draft", "draft", d.ID, "error", err)
	}
	// photos in slots the variant suppresses stay pending in the draft
	if remaining := tree.PendingHandles(d.Report); len(remaining) == 0 {
		if err := h.drafts.DropBlobs(ctx, d.ID); err != nil {
			h.logger.Warnw("Failed to drop draft blobs", "draft", d.ID, "error", err)
		}
	} else {
		h.dropBlobs(ctx, d.ID, without(pending, remaining))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"report_id": saved.ID,
		"draft":     newDraftResponse(d),
	})
}

// mutate applies fn to the draft tree and stores the result. A refused
// mutation leaves the stored draft unchanged. Blobs of pending photos that
// the mutation removed are dropped.
func (h *DraftHandler) mutate(w http.ResponseWriter, r *http.Request, fn func(models.Report) (models.Report, error)) {
	d, ok := h.load(w, r)
	if !ok {
		return
	}
	next, err := fn(d.Report)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to update draft")
		return
	}
	removed := without(tree.PendingHandles(d.Report), tree.PendingHandles(next))
	d.Report = next
	if err := h.drafts.Put(r.Context(), d); err != nil {
		respondServiceError(w, h.logger, err, "Failed to store draft")
		return
	}
	h.dropBlobs(r.Context(), d.ID, removed)
	respondJSON(w, http.StatusOK, newDraftResponse(d))
}

// dropBlobs removes blobs no longer referenced by the draft. Failures only
// leave the blobs to expire with the draft.
func (h *DraftHandler) dropBlobs(ctx context.Context, draftID string, handles []string) {
	if len(handles) == 0 {
		return
	}
	if err := h.drafts.DropBlob(ctx, draftID, handles...); err != nil {
		h.logger.Warnw("Failed to drop draft blobs", "draft", draftID, "error", err)
	}
}

// without returns the handles of all that are not in keep
func without(all, keep []string) []string {
	kept := make(map[string]struct{}, len(keep))
	for _, h := range keep {
		kept[h] = struct{}{}
	}
	var out []string
	for _, h := range all {
		if _, ok := kept[h]; !ok {
			out = append(out, h)
		}
	}
	return out
}

// load fetches the draft named in the URL. Drafts of other owners are
// reported as missing.
func (h *DraftHandler) load(w http.ResponseWriter, r *http.Request) (*drafts.Draft, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "Draft id required")
		return nil, false
	}
	d, err := h.drafts.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to load draft")
		return nil, false
	}
	owner := middleware.OwnerFromContext(r.Context())
	if d.Owner != "" && owner != "" && d.Owner != owner {
		respondServiceError(w, h.logger, drafts.ErrNotFound, "Failed to load draft")
		return nil, false
	}
	return d, true
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", fh.Filename)
	}
	return data, nil
}
