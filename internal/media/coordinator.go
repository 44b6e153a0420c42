// Package media turns pending photo attachments into durable object storage
// URLs before a report is persisted.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/saluran/fieldreport-server/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrMissingBlob is returned when a pending attachment has no bytes behind it
var ErrMissingBlob = errors.New("attachment data not found")

// Uploader stores an object and returns its durable URL
type Uploader interface {
	Upload(ctx context.Context, objectPath, contentType string, body io.Reader, size int64) (string, error)
}

// BlobSource returns the bytes of a pending attachment
type BlobSource interface {
	Blob(ctx context.Context, handle string) ([]byte, error)
}

// UploadError reports the slot and file that failed to reach storage
type UploadError struct {
	Slot     models.Slot
	Filename string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s photo %q: %v", e.Slot, e.Filename, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ObjectPath builds {report}/{site}/{detail}/{slot}/{filename}
func ObjectPath(reportKey, siteKey, detailKey string, slot models.Slot, filename string) string {
	return path.Join(reportKey, siteKey, detailKey, string(slot), cleanFilename(filename))
}

// ObjectName is the stored name of an attachment: the client filename with
// the attachment handle appended to the stem, so two uploads of
// "image.jpg" into one slot never share an object.
func ObjectName(a models.Attachment) string {
	name := cleanFilename(a.Filename)
	handle := strings.ReplaceAll(a.Handle, "/", "")
	if handle == "" {
		return name
	}
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + handle + ext
}

func cleanFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

// Coordinator uploads pending photos. Slots are resolved concurrently; the
// photos of a single slot are uploaded one after another in list order.
type Coordinator struct {
	uploader Uploader
	logger   *zap.SugaredLogger
}

// NewCoordinator creates a new upload coordinator
func NewCoordinator(uploader Uploader, logger *zap.SugaredLogger) *Coordinator {
	return &Coordinator{uploader: uploader, logger: logger}
}

// SlotRef locates one photo slot of a report
type SlotRef struct {
	ReportKey string
	SiteKey   string
	DetailKey string
	Slot      models.Slot
}

// ResolveSlot returns the slot with every pending photo replaced by the URL it
// was stored under. Stored photos pass through untouched. The first failure
// stops the slot.
func (c *Coordinator) ResolveSlot(ctx context.Context, src BlobSource, ref SlotRef, photos []models.Photo) ([]models.Photo, error) {
	slot := ref.Slot
	out := make([]models.Photo, len(photos))
	for i, p := range photos {
		a, pending := p.Attachment()
		if !pending {
			out[i] = p
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, &UploadError{Slot: slot, Filename: a.Filename, Err: err}
		}

		data, err := src.Blob(ctx, a.Handle)
		if err != nil {
			return nil, &UploadError{Slot: slot, Filename: a.Filename, Err: err}
		}

		objectPath := ObjectPath(ref.ReportKey, ref.SiteKey, ref.DetailKey, slot, ObjectName(a))
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		url, err := c.uploader.Upload(ctx, objectPath, contentType, bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, &UploadError{Slot: slot, Filename: a.Filename, Err: err}
		}

		c.logger.Debugw("Photo uploaded", "path", objectPath, "size", len(data))
		out[i] = models.StoredPhoto(url)
	}
	return out, nil
}

type slotJob struct {
	site, detail int
	ref          SlotRef
	photos       []models.Photo
}

// ResolveReport uploads every pending photo of the report. The returned
// report holds stored photos only. On failure the original report is
// returned with the first *UploadError; uploads that already completed are
// left in storage.
func (c *Coordinator) ResolveReport(ctx context.Context, r models.Report, src BlobSource) (models.Report, error) {
	var jobs []slotJob
	for i, s := range r.Sites {
		for j, a := range s.Activities {
			for _, slot := range models.Slots {
				photos := a.Photos.Get(slot)
				if hasPending(photos) {
					jobs = append(jobs, slotJob{
						site:   i,
						detail: j,
						ref:    SlotRef{ReportKey: r.Key, SiteKey: s.Key, DetailKey: a.Key, Slot: slot},
						photos: photos,
					})
				}
			}
		}
	}
	if len(jobs) == 0 {
		return r, nil
	}

	results := make([][]models.Photo, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for n, job := range jobs {
		n, job := n, job
		g.Go(func() error {
			resolved, err := c.ResolveSlot(gctx, src, job.ref, job.photos)
			if err != nil {
				return err
			}
			results[n] = resolved
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Warnw("Photo upload failed", "report", r.Key, "error", err)
		return r, err
	}

	sites := make([]models.Site, len(r.Sites))
	copy(sites, r.Sites)
	for i := range sites {
		activities := make([]models.ActivityDetail, len(sites[i].Activities))
		copy(activities, sites[i].Activities)
		sites[i].Activities = activities
	}
	for n, job := range jobs {
		a := &sites[job.site].Activities[job.detail]
		a.Photos = a.Photos.With(job.ref.Slot, results[n])
	}
	r.Sites = sites

	c.logger.Infow("Photos resolved", "report", r.Key, "slots", len(jobs))
	return r, nil
}

func hasPending(photos []models.Photo) bool {
	for _, p := range photos {
		if p.IsPending() {
			return true
		}
	}
	return false
}
