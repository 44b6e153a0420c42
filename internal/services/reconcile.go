package services

import (
	"context"

	"github.com/saluran/fieldreport-server/internal/models"
	"go.uber.org/zap"
)

// Reconciler writes a report tree to the store level by level. Each entity
// is updated when its id is among the rows already stored under its parent
// and inserted otherwise; rows that are no longer in the tree are then
// deleted, children before parents. Equipment and heavy equipment are
// replaced wholesale per site.
//
// Writes are not rolled back on failure. The returned tree carries every id
// assigned up to the point of failure.
type Reconciler struct {
	logger *zap.SugaredLogger
}

// NewReconciler creates a new reconciler
func NewReconciler(logger *zap.SugaredLogger) *Reconciler {
	return &Reconciler{logger: logger}
}

// SaveStats counts the writes of one save
type SaveStats struct {
	Inserted int
	Updated  int
	Deleted  int
}

type reconcileRun struct {
	st     Store
	logger *zap.SugaredLogger
	stats  SaveStats
}

// Save reconciles the report against st and returns it with store ids set.
// The tree must already be normalized and hold stored photos only.
func (rc *Reconciler) Save(ctx context.Context, st Store, r models.Report) (models.Report, SaveStats, error) {
	run := &reconcileRun{st: st, logger: rc.logger}
	out, err := run.report(ctx, r)
	return out, run.stats, err
}

func (run *reconcileRun) report(ctx context.Context, r models.Report) (models.Report, error) {
	row, err := reportRow(r)
	if err != nil {
		return r, err
	}

	exists := false
	if r.ID != "" {
		exists, err = run.st.ReportExists(ctx, r.ID)
		if err != nil {
			return r, storeErr(LevelReport, "select", err)
		}
	}
	if exists {
		if err := run.st.UpdateReport(ctx, row); err != nil {
			return r, storeErr(LevelReport, "update", err)
		}
		run.stats.Updated++
	} else {
		id, err := run.st.InsertReport(ctx, row)
		if err != nil {
			return r, storeErr(LevelReport, "insert", err)
		}
		r.ID = id
		run.stats.Inserted++
	}

	var existing []string
	if exists {
		existing, err = run.st.SiteIDs(ctx, r.ID)
		if err != nil {
			return r, storeErr(LevelSite, "select", err)
		}
	}
	stored := newIDSet(existing)
	keep := make(idSet, len(r.Sites))

	sites := make([]models.Site, len(r.Sites))
	copy(sites, r.Sites)
	r.Sites = sites
	for i := range sites {
		s, err := run.site(ctx, r.ID, i, sites[i], stored)
		sites[i] = s
		if err != nil {
			return r, err
		}
		keep.add(s.ID)
	}

	if orphans := minus(existing, keep); len(orphans) > 0 {
		if err := run.deleteSites(ctx, r.ID, orphans); err != nil {
			return r, err
		}
	}
	return r, nil
}

func (run *reconcileRun) site(ctx context.Context, reportID string, position int, s models.Site, stored idSet) (models.Site, error) {
	row, err := siteRow(reportID, position, s)
	if err != nil {
		return s, err
	}
	exists := stored.has(s.ID)
	if exists {
		if err := run.st.UpdateSite(ctx, row); err != nil {
			return s, storeErr(LevelSite, "update", err)
		}
		run.stats.Updated++
	} else {
		id, err := run.st.InsertSite(ctx, row)
		if err != nil {
			return s, storeErr(LevelSite, "insert", err)
		}
		s.ID = id
		run.stats.Inserted++
	}

	var existing []string
	if exists {
		existing, err = run.st.ActivityIDs(ctx, s.ID)
		if err != nil {
			return s, storeErr(LevelActivity, "select", err)
		}
	}
	storedActivities := newIDSet(existing)
	keep := make(idSet, len(s.Activities))

	activities := make([]models.ActivityDetail, len(s.Activities))
	copy(activities, s.Activities)
	s.Activities = activities
	for i := range activities {
		a, err := run.activity(ctx, s.ID, i, activities[i], storedActivities)
		activities[i] = a
		if err != nil {
			return s, err
		}
		keep.add(a.ID)
	}

	if err := run.replaceEquipment(ctx, &s); err != nil {
		return s, err
	}
	if err := run.replaceHeavyEquipment(ctx, &s); err != nil {
		return s, err
	}

	if orphans := minus(existing, keep); len(orphans) > 0 {
		if err := run.deleteActivities(ctx, s.ID, orphans); err != nil {
			return s, err
		}
	}
	return s, nil
}

func (run *reconcileRun) activity(ctx context.Context, siteID string, position int, a models.ActivityDetail, stored idSet) (models.ActivityDetail, error) {
	row, err := activityRow(siteID, position, a)
	if err != nil {
		return a, err
	}
	exists := stored.has(a.ID)
	if exists {
		if err := run.st.UpdateActivity(ctx, row); err != nil {
			return a, storeErr(LevelActivity, "update", err)
		}
		run.stats.Updated++
	} else {
		id, err := run.st.InsertActivity(ctx, row)
		if err != nil {
			return a, storeErr(LevelActivity, "insert", err)
		}
		a.ID = id
		run.stats.Inserted++
	}

	var existing []string
	if exists {
		existing, err = run.st.MaterialIDs(ctx, a.ID)
		if err != nil {
			return a, storeErr(LevelMaterial, "select", err)
		}
	}
	storedMaterials := newIDSet(existing)
	keep := make(idSet, len(a.Materials))

	materials := make([]models.Material, len(a.Materials))
	copy(materials, a.Materials)
	a.Materials = materials
	position = 0
	for i, m := range materials {
		if m.Blank() {
			// placeholder rows are not persisted; a stored row that was
			// blanked out becomes an orphan below
			materials[i].ID = ""
			continue
		}
		mrow := materialRow(a.ID, position, m)
		position++
		if storedMaterials.has(m.ID) {
			if err := run.st.UpdateMaterial(ctx, mrow); err != nil {
				return a, storeErr(LevelMaterial, "update", err)
			}
			run.stats.Updated++
		} else {
			id, err := run.st.InsertMaterial(ctx, mrow)
			if err != nil {
				return a, storeErr(LevelMaterial, "insert", err)
			}
			materials[i].ID = id
			run.stats.Inserted++
		}
		keep.add(materials[i].ID)
	}

	if orphans := minus(existing, keep); len(orphans) > 0 {
		if err := run.st.DeleteMaterials(ctx, a.ID, orphans); err != nil {
			return a, storeErr(LevelMaterial, "delete", err)
		}
		run.stats.Deleted += len(orphans)
	}
	return a, nil
}

func (run *reconcileRun) replaceEquipment(ctx context.Context, s *models.Site) error {
	n, err := run.st.DeleteEquipmentBySite(ctx, s.ID)
	if err != nil {
		return storeErr(LevelEquipment, "delete", err)
	}
	run.stats.Deleted += int(n)
	items := make([]models.Equipment, len(s.Equipment))
	copy(items, s.Equipment)
	s.Equipment = items
	position := 0
	for i, e := range items {
		items[i].ID = ""
		if e.Blank() {
			continue
		}
		id, err := run.st.InsertEquipment(ctx, equipmentRow(s.ID, position, e))
		if err != nil {
			return storeErr(LevelEquipment, "insert", err)
		}
		items[i].ID = id
		position++
		run.stats.Inserted++
	}
	return nil
}

func (run *reconcileRun) replaceHeavyEquipment(ctx context.Context, s *models.Site) error {
	n, err := run.st.DeleteHeavyEquipmentBySite(ctx, s.ID)
	if err != nil {
		return storeErr(LevelHeavyEquipment, "delete", err)
	}
	run.stats.Deleted += int(n)
	items := make([]models.HeavyEquipmentUsage, len(s.HeavyEquipment))
	copy(items, s.HeavyEquipment)
	s.HeavyEquipment = items
	position := 0
	for i, h := range items {
		items[i].ID = ""
		if h.Blank() {
			continue
		}
		id, err := run.st.InsertHeavyEquipment(ctx, heavyEquipmentRow(s.ID, position, h))
		if err != nil {
			return storeErr(LevelHeavyEquipment, "insert", err)
		}
		items[i].ID = id
		position++
		run.stats.Inserted++
	}
	return nil
}

// deleteActivities removes activities and their materials, materials first
func (run *reconcileRun) deleteActivities(ctx context.Context, siteID string, ids []string) error {
	for _, id := range ids {
		materials, err := run.st.MaterialIDs(ctx, id)
		if err != nil {
			return storeErr(LevelMaterial, "select", err)
		}
		if len(materials) > 0 {
			if err := run.st.DeleteMaterials(ctx, id, materials); err != nil {
				return storeErr(LevelMaterial, "delete", err)
			}
			run.stats.Deleted += len(materials)
		}
	}
	if err := run.st.DeleteActivities(ctx, siteID, ids); err != nil {
		return storeErr(LevelActivity, "delete", err)
	}
	run.stats.Deleted += len(ids)
	return nil
}

// deleteSites removes sites with their whole subtree, bottom-up
func (run *reconcileRun) deleteSites(ctx context.Context, reportID string, ids []string) error {
	for _, id := range ids {
		activities, err := run.st.ActivityIDs(ctx, id)
		if err != nil {
			return storeErr(LevelActivity, "select", err)
		}
		if len(activities) > 0 {
			if err := run.deleteActivities(ctx, id, activities); err != nil {
				return err
			}
		}
		n, err := run.st.DeleteEquipmentBySite(ctx, id)
		if err != nil {
			return storeErr(LevelEquipment, "delete", err)
		}
		run.stats.Deleted += int(n)
		n, err = run.st.DeleteHeavyEquipmentBySite(ctx, id)
		if err != nil {
			return storeErr(LevelHeavyEquipment, "delete", err)
		}
		run.stats.Deleted += int(n)
	}
	if err := run.st.DeleteSites(ctx, reportID, ids); err != nil {
		return storeErr(LevelSite, "delete", err)
	}
	run.stats.Deleted += len(ids)
	run.logger.Debugw("Orphan sites deleted", "report", reportID, "count", len(ids))
	return nil
}

// deleteReport removes a report and everything below it
func (run *reconcileRun) deleteReport(ctx context.Context, id string) error {
	sites, err := run.st.SiteIDs(ctx, id)
	if err != nil {
		return storeErr(LevelSite, "select", err)
	}
	if len(sites) > 0 {
		if err := run.deleteSites(ctx, id, sites); err != nil {
			return err
		}
	}
	if err := run.st.DeleteReport(ctx, id); err != nil {
		return storeErr(LevelReport, "delete", err)
	}
	run.stats.Deleted++
	return nil
}

// Delete removes a report bottom-up without relying on cascades
func (rc *Reconciler) Delete(ctx context.Context, st Store, id string) (SaveStats, error) {
	run := &reconcileRun{st: st, logger: rc.logger}
	err := run.deleteReport(ctx, id)
	return run.stats, err
}
