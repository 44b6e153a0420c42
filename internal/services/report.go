package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/saluran/fieldreport-server/internal/media"
	"github.com/saluran/fieldreport-server/internal/models"
	"github.com/saluran/fieldreport-server/internal/tree"
	"github.com/saluran/fieldreport-server/internal/variant"
	"go.uber.org/zap"
)

// ReportService saves, loads and deletes report trees
type ReportService struct {
	store      Store
	reconciler *Reconciler
	uploads    *media.Coordinator
	activity   ActivityRecorder
	atomic     bool
	logger     *zap.SugaredLogger
}

// ReportServiceOptions configures a ReportService
type ReportServiceOptions struct {
	// Atomic runs each save and delete in one transaction when the store
	// supports it. Otherwise writes that completed before a failure stay.
	Atomic   bool
	Activity ActivityRecorder
}

// NewReportService creates a new report service
func NewReportService(store Store, uploads *media.Coordinator, opts ReportServiceOptions, logger *zap.SugaredLogger) *ReportService {
	return &ReportService{
		store:      store,
		reconciler: NewReconciler(logger),
		uploads:    uploads,
		activity:   opts.Activity,
		atomic:     opts.Atomic,
		logger:     logger,
	}
}

// Save validates the report, uploads its pending photos and reconciles it
// with the store. It returns the saved tree: normalized for its variant,
// photos stored, and every persisted node carrying its store id.
func (s *ReportService) Save(ctx context.Context, r models.Report, blobs media.BlobSource, actor string) (models.Report, error) {
	if _, err := models.ParseVariant(string(r.Variant)); err != nil {
		return r, &tree.ValidationError{Path: "variant", Message: err.Error(), Err: tree.ErrInvalidValue}
	}
	p := variant.For(r.Variant)
	if err := tree.Check(r); err != nil {
		return r, err
	}
	if err := p.Validate(r); err != nil {
		return r, err
	}

	created := r.ID == ""
	if !created {
		row, err := s.store.GetReport(ctx, r.ID)
		switch {
		case errors.Is(err, ErrReportNotFound):
			// deleted since it was loaded; the save recreates it
			r.ID = ""
			created = true
		case err != nil:
			return r, storeErr(LevelReport, "select", err)
		case !ownedBy(row, actor):
			return r, ErrReportNotFound
		}
	}
	if r.Owner == "" {
		r.Owner = actor
	}

	resolved := p.Normalize(r)
	if s.uploads != nil {
		var err error
		resolved, err = s.uploads.ResolveReport(ctx, resolved, blobs)
		if err != nil {
			return r, err
		}
	}

	var (
		saved models.Report
		stats SaveStats
	)
	err := s.withStore(ctx, func(st Store) error {
		var err error
		saved, stats, err = s.reconciler.Save(ctx, st, resolved)
		return err
	})
	if err != nil {
		s.logger.Errorw("Report save failed", "report", r.ID, "error", err, "atomic", s.atomic)
		if s.atomic {
			return r, err
		}
		return saved, err
	}

	action := ActionUpdated
	if created {
		action = ActionCreated
	}
	s.record(ctx, saved.ID, action, actor, fmt.Sprintf("%d site(s), %d inserted, %d updated, %d deleted",
		len(saved.Sites), stats.Inserted, stats.Updated, stats.Deleted))

	s.logger.Infow("Report saved",
		"id", saved.ID,
		"variant", saved.Variant,
		"sites", len(saved.Sites),
		"inserted", stats.Inserted,
		"updated", stats.Updated,
		"deleted", stats.Deleted,
	)
	return saved, nil
}

// Load reads a full report tree. Either the whole tree is returned or an
// error; a partial tree is never returned.
func (s *ReportService) Load(ctx context.Context, id, actor string) (models.Report, error) {
	row, err := s.owned(ctx, id, actor)
	if err != nil {
		return models.Report{}, err
	}

	r := reportFromRow(row)
	siteRows, err := s.store.ListSites(ctx, id)
	if err != nil {
		return models.Report{}, storeErr(LevelSite, "select", err)
	}
	for _, sr := range siteRows {
		site, err := s.loadSite(ctx, sr)
		if err != nil {
			return models.Report{}, err
		}
		r.Sites = append(r.Sites, site)
	}

	return tree.Fill(r), nil
}

func (s *ReportService) loadSite(ctx context.Context, sr models.SiteRow) (models.Site, error) {
	site := siteFromRow(sr)

	activityRows, err := s.store.ListActivities(ctx, sr.ID)
	if err != nil {
		return site, storeErr(LevelActivity, "select", err)
	}
	for _, ar := range activityRows {
		a := activityFromRow(ar)
		materialRows, err := s.store.ListMaterials(ctx, ar.ID)
		if err != nil {
			return site, storeErr(LevelMaterial, "select", err)
		}
		for _, mr := range materialRows {
			a.Materials = append(a.Materials, materialFromRow(mr))
		}
		site.Activities = append(site.Activities, a)
	}

	equipmentRows, err := s.store.ListEquipment(ctx, sr.ID)
	if err != nil {
		return site, storeErr(LevelEquipment, "select", err)
	}
	for _, er := range equipmentRows {
		site.Equipment = append(site.Equipment, equipmentFromRow(er))
	}

	heavyRows, err := s.store.ListHeavyEquipment(ctx, sr.ID)
	if err != nil {
		return site, storeErr(LevelHeavyEquipment, "select", err)
	}
	for _, hr := range heavyRows {
		site.HeavyEquipment = append(site.HeavyEquipment, heavyEquipmentFromRow(hr))
	}
	return site, nil
}

// Delete removes a report and all of its rows, children first
func (s *ReportService) Delete(ctx context.Context, id, actor string) error {
	if _, err := s.owned(ctx, id, actor); err != nil {
		return err
	}

	var stats SaveStats
	err := s.withStore(ctx, func(st Store) error {
		var err error
		stats, err = s.reconciler.Delete(ctx, st, id)
		return err
	})
	if err != nil {
		s.logger.Errorw("Report delete failed", "report", id, "error", err)
		return err
	}

	s.record(ctx, id, ActionDeleted, actor, fmt.Sprintf("%d row(s) deleted", stats.Deleted))
	s.logger.Infow("Report deleted", "id", id, "rows", stats.Deleted)
	return nil
}

// List returns report summaries for the list view
func (s *ReportService) List(ctx context.Context, filter ReportFilter) ([]models.ReportSummary, error) {
	reports, err := s.store.ListReports(ctx, filter)
	if err != nil {
		return nil, storeErr(LevelReport, "select", err)
	}
	return reports, nil
}

func (s *ReportService) withStore(ctx context.Context, fn func(Store) error) error {
	if tx, ok := s.store.(Transactor); ok && s.atomic {
		return tx.InTx(ctx, fn)
	}
	return fn(s.store)
}

func (s *ReportService) record(ctx context.Context, reportID, action, actor, summary string) {
	if s.activity == nil {
		return
	}
	err := s.activity.Log(ctx, &models.ActivityLogEntry{
		ReportID: reportID,
		Action:   action,
		Actor:    actor,
		Summary:  summary,
	})
	if err != nil {
		s.logger.Warnw("Failed to log report activity", "report", reportID, "error", err)
	}
}

// Authorize reports ErrReportNotFound unless the report exists and belongs
// to actor
func (s *ReportService) Authorize(ctx context.Context, id, actor string) error {
	_, err := s.owned(ctx, id, actor)
	return err
}

func (s *ReportService) owned(ctx context.Context, id, actor string) (*models.ReportRow, error) {
	row, err := s.store.GetReport(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReportNotFound) {
			return nil, err
		}
		return nil, storeErr(LevelReport, "select", err)
	}
	if !ownedBy(row, actor) {
		return nil, ErrReportNotFound
	}
	return row, nil
}

func ownedBy(row *models.ReportRow, actor string) bool {
	return row.Owner == "" || actor == "" || row.Owner == actor
}
