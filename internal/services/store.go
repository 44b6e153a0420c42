// Package services contains business logic layers.
// Services are called by handlers and interact with the database.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/saluran/fieldreport-server/internal/models"
)

// ErrReportNotFound is returned when a report id has no row
var ErrReportNotFound = errors.New("report not found")

// Store levels, used in errors and logs
const (
	LevelReport         = "report"
	LevelSite           = "site"
	LevelActivity       = "activity"
	LevelMaterial       = "material"
	LevelEquipment      = "equipment"
	LevelHeavyEquipment = "heavy_equipment"
)

// StoreError is a failed store operation during a save, load or delete
type StoreError struct {
	Level string
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Level, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(level, op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Level: level, Op: op, Err: err}
}

// Store is the relational backing store: per level select-by-parent,
// insert returning the new id, update by id and delete by id set.
// Deletes never rely on cascading foreign keys.
type Store interface {
	ReportExists(ctx context.Context, id string) (bool, error)
	GetReport(ctx context.Context, id string) (*models.ReportRow, error)
	InsertReport(ctx context.Context, row *models.ReportRow) (string, error)
	UpdateReport(ctx context.Context, row *models.ReportRow) error
	DeleteReport(ctx context.Context, id string) error
	ListReports(ctx context.Context, filter ReportFilter) ([]models.ReportSummary, error)

	SiteIDs(ctx context.Context, reportID string) ([]string, error)
	ListSites(ctx context.Context, reportID string) ([]models.SiteRow, error)
	InsertSite(ctx context.Context, row *models.SiteRow) (string, error)
	UpdateSite(ctx context.Context, row *models.SiteRow) error
	DeleteSites(ctx context.Context, reportID string, ids []string) error

	ActivityIDs(ctx context.Context, siteID string) ([]string, error)
	ListActivities(ctx context.Context, siteID string) ([]models.ActivityRow, error)
	InsertActivity(ctx context.Context, row *models.ActivityRow) (string, error)
	UpdateActivity(ctx context.Context, row *models.ActivityRow) error
	DeleteActivities(ctx context.Context, siteID string, ids []string) error

	MaterialIDs(ctx context.Context, activityID string) ([]string, error)
	ListMaterials(ctx context.Context, activityID string) ([]models.MaterialRow, error)
	InsertMaterial(ctx context.Context, row *models.MaterialRow) (string, error)
	UpdateMaterial(ctx context.Context, row *models.MaterialRow) error
	DeleteMaterials(ctx context.Context, activityID string, ids []string) error

	ListEquipment(ctx context.Context, siteID string) ([]models.EquipmentRow, error)
	InsertEquipment(ctx context.Context, row *models.EquipmentRow) (string, error)
	DeleteEquipmentBySite(ctx context.Context, siteID string) (int64, error)

	ListHeavyEquipment(ctx context.Context, siteID string) ([]models.HeavyEquipmentRow, error)
	InsertHeavyEquipment(ctx context.Context, row *models.HeavyEquipmentRow) (string, error)
	DeleteHeavyEquipmentBySite(ctx context.Context, siteID string) (int64, error)
}

// Transactor is implemented by stores that can run a unit of work in a
// single database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// ReportFilter narrows the list view
type ReportFilter struct {
	Owner   string
	Variant models.Variant
	Limit   int
}

type idSet map[string]struct{}

func newIDSet(ids []string) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s idSet) has(id string) bool {
	_, ok := s[id]
	return id != "" && ok
}

func (s idSet) add(id string) { s[id] = struct{}{} }

// minus returns the ids not in keep, preserving their order
func minus(ids []string, keep idSet) []string {
	var out []string
	for _, id := range ids {
		if !keep.has(id) {
			out = append(out, id)
		}
	}
	return out
}
