package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saluran/fieldreport-server/internal/models"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on the report tables
type PostgresStore struct {
	pool *pgxpool.Pool
	db   dbtx
}

// NewPostgresStore creates a store on the pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, db: pool}
}

// InTx runs fn against a store bound to one transaction
func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&PostgresStore{db: tx})
	})
}

func (s *PostgresStore) ReportExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reports WHERE id = $1::uuid)`, id).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) GetReport(ctx context.Context, id string) (*models.ReportRow, error) {
	query := `
		SELECT id::text, report_date, period, variant, owner, created_at, updated_at
		FROM reports WHERE id = $1::uuid
	`

	var r models.ReportRow
	var variant string
	err := s.db.QueryRow(ctx, query, id).Scan(&r.ID, &r.Date, &r.Period, &variant, &r.Owner, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select report: %w", err)
	}
	r.Variant = models.Variant(variant)
	return &r, nil
}

func (s *PostgresStore) InsertReport(ctx context.Context, row *models.ReportRow) (string, error) {
	query := `
		INSERT INTO reports (report_date, period, variant, owner)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text
	`

	var id string
	err := s.db.QueryRow(ctx, query, row.Date, row.Period, string(row.Variant), row.Owner).Scan(&id)
	return id, err
}

func (s *PostgresStore) UpdateReport(ctx context.Context, row *models.ReportRow) error {
	query := `
		UPDATE reports SET report_date = $2, period = $3, variant = $4, updated_at = NOW()
		WHERE id = $1::uuid
	`

	_, err := s.db.Exec(ctx, query, row.ID, row.Date, row.Period, string(row.Variant))
	return err
}

func (s *PostgresStore) DeleteReport(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM reports WHERE id = $1::uuid`, id)
	return err
}

func (s *PostgresStore) ListReports(ctx context.Context, filter ReportFilter) ([]models.ReportSummary, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT r.id::text, r.report_date, r.period, r.variant, r.updated_at,
			COUNT(s.id),
			COALESCE(ARRAY_AGG(s.street ORDER BY s.position) FILTER (WHERE s.street <> ''), '{}')
		FROM reports r
		LEFT JOIN report_sites s ON s.report_id = r.id
		WHERE ($1::text = '' OR r.owner = $1::text) AND ($2::text = '' OR r.variant = $2::text)
		GROUP BY r.id
		ORDER BY r.updated_at DESC
		LIMIT $3
	`

	rows, err := s.db.Query(ctx, query, filter.Owner, string(filter.Variant), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []models.ReportSummary{}
	for rows.Next() {
		var r models.ReportSummary
		var variant string
		if err := rows.Scan(&r.ID, &r.Date, &r.Period, &variant, &r.UpdatedAt, &r.SiteCount, &r.Streets); err != nil {
			return nil, err
		}
		r.Variant = models.Variant(variant)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *PostgresStore) SiteIDs(ctx context.Context, reportID string) ([]string, error) {
	return s.ids(ctx, `SELECT id::text FROM report_sites WHERE report_id = $1::uuid ORDER BY position, created_at`, reportID)
}

func (s *PostgresStore) ListSites(ctx context.Context, reportID string) ([]models.SiteRow, error) {
	query := `
		SELECT id::text, report_id::text, position, street, district, sub_district,
			length, width, sediment_height, volume,
			planned_length, realized_length, planned_volume, realized_volume, remaining_days,
			coordinators, personnel, notes, activity_date
		FROM report_sites
		WHERE report_id = $1::uuid
		ORDER BY position, created_at
	`

	rows, err := s.db.Query(ctx, query, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []models.SiteRow
	for rows.Next() {
		var r models.SiteRow
		if err := rows.Scan(&r.ID, &r.ReportID, &r.Position, &r.Street, &r.District, &r.SubDistrict,
			&r.Length, &r.Width, &r.SedimentHeight, &r.Volume,
			&r.PlannedLength, &r.RealizedLength, &r.PlannedVolume, &r.RealizedVolume, &r.RemainingDays,
			&r.Coordinators, &r.Personnel, &r.Notes, &r.ActivityDate); err != nil {
			return nil, err
		}
		sites = append(sites, r)
	}
	return sites, rows.Err()
}

func (s *PostgresStore) InsertSite(ctx context.Context, r *models.SiteRow) (string, error) {
	query := `
		INSERT INTO report_sites (report_id, position, street, district, sub_district,
			length, width, sediment_height, volume,
			planned_length, realized_length, planned_volume, realized_volume, remaining_days,
			coordinators, personnel, notes, activity_date)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id::text
	`

	var id string
	err := s.db.QueryRow(ctx, query, r.ReportID, r.Position, r.Street, r.District, r.SubDistrict,
		r.Length, r.Width, r.SedimentHeight, r.Volume,
		r.PlannedLength, r.RealizedLength, r.PlannedVolume, r.RealizedVolume, r.RemainingDays,
		r.Coordinators, r.Personnel, r.Notes, r.ActivityDate).Scan(&id)
	return id, err
}

func (s *PostgresStore) UpdateSite(ctx context.Context, r *models.SiteRow) error {
	query := `
		UPDATE report_sites SET position = $2, street = $3, district = $4, sub_district = $5,
			length = $6, width = $7, sediment_height = $8, volume = $9,
			planned_length = $10, realized_length = $11, planned_volume = $12, realized_volume = $13,
			remaining_days = $14, coordinators = $15, personnel = $16, notes = $17, activity_date = $18
		WHERE id = $1::uuid
	`

	_, err := s.db.Exec(ctx, query, r.ID, r.Position, r.Street, r.District, r.SubDistrict,
		r.Length, r.Width, r.SedimentHeight, r.Volume,
		r.PlannedLength, r.RealizedLength, r.PlannedVolume, r.RealizedVolume, r.RemainingDays,
		r.Coordinators, r.Personnel, r.Notes, r.ActivityDate)
	return err
}

func (s *PostgresStore) DeleteSites(ctx context.Context, reportID string, ids []string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM report_sites WHERE report_id = $1::uuid AND id = ANY($2::uuid[])`, reportID, ids)
	return err
}

func (s *PostgresStore) ActivityIDs(ctx context.Context, siteID string) ([]string, error) {
	return s.ids(ctx, `SELECT id::text FROM activity_details WHERE site_id = $1::uuid ORDER BY position, created_at`, siteID)
}

func (s *PostgresStore) ListActivities(ctx context.Context, siteID string) ([]models.ActivityRow, error) {
	query := `
		SELECT id::text, site_id::text, position, channel_type, sediment_type, description,
			photos_before, photos_progress, photos_after, photos_sketch
		FROM activity_details
		WHERE site_id = $1::uuid
		ORDER BY position, created_at
	`

	rows, err := s.db.Query(ctx, query, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []models.ActivityRow
	for rows.Next() {
		var r models.ActivityRow
		if err := rows.Scan(&r.ID, &r.SiteID, &r.Position, &r.Channel, &r.Sediment, &r.Description,
			&r.PhotosBefore, &r.PhotosProgress, &r.PhotosAfter, &r.PhotosSketch); err != nil {
			return nil, err
		}
		activities = append(activities, r)
	}
	return activities, rows.Err()
}

func (s *PostgresStore) InsertActivity(ctx context.Context, r *models.ActivityRow) (string, error) {
	query := `
		INSERT INTO activity_details (site_id, position, channel_type, sediment_type, description,
			photos_before, photos_progress, photos_after, photos_sketch)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id::text
	`

	var id string
	err := s.db.QueryRow(ctx, query, r.SiteID, r.Position, r.Channel, r.Sediment, r.Description,
		r.PhotosBefore, r.PhotosProgress, r.PhotosAfter, r.PhotosSketch).Scan(&id)
	return id, err
}

func (s *PostgresStore) UpdateActivity(ctx context.Context, r *models.ActivityRow) error {
	query := `
		UPDATE activity_details SET position = $2, channel_type = $3, sediment_type = $4, description = $5,
			photos_before = $6, photos_progress = $7, photos_after = $8, photos_sketch = $9
		WHERE id = $1::uuid
	`

	_, err := s.db.Exec(ctx, query, r.ID, r.Position, r.Channel, r.Sediment, r.Description,
		r.PhotosBefore, r.PhotosProgress, r.PhotosAfter, r.PhotosSketch)
	return err
}

func (s *PostgresStore) DeleteActivities(ctx context.Context, siteID string, ids []string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM activity_details WHERE site_id = $1::uuid AND id = ANY($2::uuid[])`, siteID, ids)
	return err
}

func (s *PostgresStore) MaterialIDs(ctx context.Context, activityID string) ([]string, error) {
	return s.ids(ctx, `SELECT id::text FROM materials WHERE activity_id = $1::uuid ORDER BY position, created_at`, activityID)
}

func (s *PostgresStore) ListMaterials(ctx context.Context, activityID string) ([]models.MaterialRow, error) {
	query := `
		SELECT id::text, activity_id::text, position, material_type, quantity, unit, notes
		FROM materials
		WHERE activity_id = $1::uuid
		ORDER BY position, created_at
	`

	rows, err := s.db.Query(ctx, query, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var materials []models.MaterialRow
	for rows.Next() {
		var r models.MaterialRow
		if err := rows.Scan(&r.ID, &r.ActivityID, &r.Position, &r.Type, &r.Quantity, &r.Unit, &r.Notes); err != nil {
			return nil, err
		}
		materials = append(materials, r)
	}
	return materials, rows.Err()
}

func (s *PostgresStore) InsertMaterial(ctx context.Context, r *models.MaterialRow) (string, error) {
	query := `
		INSERT INTO materials (activity_id, position, material_type, quantity, unit, notes)
		VALUES ($1::uuid, $2, $3, $4, $5, $6)
		RETURNING id::text
	`

	var id string
	err := s.db.QueryRow(ctx, query, r.ActivityID, r.Position, r.Type, r.Quantity, r.Unit, r.Notes).Scan(&id)
	return id, err
}

func (s *PostgresStore) UpdateMaterial(ctx context.Context, r *models.MaterialRow) error {
	query := `
		UPDATE materials SET position = $2, material_type = $3, quantity = $4, unit = $5, notes = $6
		WHERE id = $1::uuid
	`

	_, err := s.db.Exec(ctx, query, r.ID, r.Position, r.Type, r.Quantity, r.Unit, r.Notes)
	return err
}

func (s *PostgresStore) DeleteMaterials(ctx context.Context, activityID string, ids []string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM materials WHERE activity_id = $1::uuid AND id = ANY($2::uuid[])`, activityID, ids)
	return err
}

func (s *PostgresStore) ListEquipment(ctx context.Context, siteID string) ([]models.EquipmentRow, error) {
	query := `
		SELECT id::text, site_id::text, position, name, quantity, unit
		FROM equipment
		WHERE site_id = $1::uuid
		ORDER BY position, created_at
	`

	rows, err := s.db.Query(ctx, query, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.EquipmentRow
	for rows.Next() {
		var r models.EquipmentRow
		if err := rows.Scan(&r.ID, &r.SiteID, &r.Position, &r.Name, &r.Quantity, &r.Unit); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

func (s *PostgresStore) InsertEquipment(ctx context.Context, r *models.EquipmentRow) (string, error) {
	query := `
		INSERT INTO equipment (site_id, position, name, quantity, unit)
		VALUES ($1::uuid, $2, $3, $4, $5)
		RETURNING id::text
	`

	var id string
	err := s.db.QueryRow(ctx, query, r.SiteID, r.Position, r.Name, r.Quantity, r.Unit).Scan(&id)
	return id, err
}

func (s *PostgresStore) DeleteEquipmentBySite(ctx context.Context, siteID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM equipment WHERE site_id = $1::uuid`, siteID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ListHeavyEquipment(ctx context.Context, siteID string) ([]models.HeavyEquipmentRow, error) {
	query := `
		SELECT id::text, site_id::text, position, equipment_type, quantity,
			diesel_amount, diesel_unit, petrol_amount, petrol_unit, lubricant_amount, lubricant_unit, notes
		FROM heavy_equipment_usage
		WHERE site_id = $1::uuid
		ORDER BY position, created_at
	`

	rows, err := s.db.Query(ctx, query, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.HeavyEquipmentRow
	for rows.Next() {
		var r models.HeavyEquipmentRow
		if err := rows.Scan(&r.ID, &r.SiteID, &r.Position, &r.Type, &r.Quantity,
			&r.DieselAmount, &r.DieselUnit, &r.PetrolAmount, &r.PetrolUnit,
			&r.LubricantAmount, &r.LubricantUnit, &r.Notes); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

func (s *PostgresStore) InsertHeavyEquipment(ctx context.Context, r *models.HeavyEquipmentRow) (string, error) {
	query := `
		INSERT INTO heavy_equipment_usage (site_id, position, equipment_type, quantity,
			diesel_amount, diesel_unit, petrol_amount, petrol_unit, lubricant_amount, lubricant_unit, notes)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id::text
	`

	var id string
	err := s.db.QueryRow(ctx, query, r.SiteID, r.Position, r.Type, r.Quantity,
		r.DieselAmount, r.DieselUnit, r.PetrolAmount, r.PetrolUnit,
		r.LubricantAmount, r.LubricantUnit, r.Notes).Scan(&id)
	return id, err
}

func (s *PostgresStore) DeleteHeavyEquipmentBySite(ctx context.Context, siteID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM heavy_equipment_usage WHERE site_id = $1::uuid`, siteID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ids(ctx context.Context, query, parentID string) ([]string, error) {
	rows, err := s.db.Query(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
