package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saluran/fieldreport-server/internal/models"
	"go.uber.org/zap"
)

// Report activity actions
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ActivityRecorder records report activity
type ActivityRecorder interface {
	Log(ctx context.Context, entry *models.ActivityLogEntry) error
}

// ActivityLogService handles the report activity log
type ActivityLogService struct {
	db     *pgxpool.Pool
	logger *zap.SugaredLogger
}

// NewActivityLogService creates a new activity log service
func NewActivityLogService(db *pgxpool.Pool, logger *zap.SugaredLogger) *ActivityLogService {
	return &ActivityLogService{db: db, logger: logger}
}

// Log records a save or delete of a report
func (s *ActivityLogService) Log(ctx context.Context, entry *models.ActivityLogEntry) error {
	query := `
		INSERT INTO report_activity (report_id, action, actor, summary)
		VALUES ($1::uuid, $2, $3, $4)
	`

	_, err := s.db.Exec(ctx, query, entry.ReportID, entry.Action, entry.Actor, entry.Summary)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}

	s.logger.Infow("Activity logged",
		"report", entry.ReportID,
		"action", entry.Action,
		"actor", entry.Actor,
	)

	return nil
}

// FetchByReport returns the activity of one report, newest first
func (s *ActivityLogService) FetchByReport(ctx context.Context, reportID string, limit int) ([]models.ActivityLog, error) {
	return s.fetch(ctx, `
		SELECT id::text, report_id::text, action, actor, summary, created_at
		FROM report_activity
		WHERE report_id = $1::uuid
		ORDER BY created_at DESC
		LIMIT $2
	`, reportID, limit)
}

// FetchRecent returns recent activity across all reports of an actor
func (s *ActivityLogService) FetchRecent(ctx context.Context, actor string, limit int) ([]models.ActivityLog, error) {
	return s.fetch(ctx, `
		SELECT id::text, report_id::text, action, actor, summary, created_at
		FROM report_activity
		WHERE ($1::text = '' OR actor = $1::text)
		ORDER BY created_at DESC
		LIMIT $2
	`, actor, limit)
}

func (s *ActivityLogService) fetch(ctx context.Context, query string, key string, limit int) ([]models.ActivityLog, error) {
	rows, err := s.db.Query(ctx, query, key, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity log: %w", err)
	}
	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ActivityLog, error) {
		var l models.ActivityLog
		err := row.Scan(&l.ID, &l.ReportID, &l.Action, &l.Actor, &l.Summary, &l.CreatedAt)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan activity log: %w", err)
	}
	if logs == nil {
		logs = []models.ActivityLog{}
	}
	return logs, nil
}
