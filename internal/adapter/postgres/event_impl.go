package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/webmonitor/internal/entity"
	"github.com/user/webmonitor/internal/repository"
)

// EventRepoImpl provides a concrete implementation for the EventRepository interface using PostgreSQL.
type EventRepoImpl struct {
	db *pgxpool.Pool
}

// NewEventRepo creates a new instance of EventRepoImpl.
func NewEventRepo(db *pgxpool.Pool) *EventRepoImpl {
	return &EventRepoImpl{db: db}
}

// insertAll queues one insert per row and sends them in a single round trip.
func insertAll[T any](ctx context.Context, db *pgxpool.Pool, query string, rows []T, args func(T) []any) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(query, args(row)...)
	}
	return db.SendBatch(ctx, batch).Close()
}

func recent[T any](ctx context.Context, db *pgxpool.Pool, query string, siteID uuid.UUID, limit int) ([]T, error) {
	rows, err := db.Query(ctx, query, siteID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[T])
}

func (r *EventRepoImpl) InsertPerformance(ctx context.Context, s entity.PerformanceSample) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO performance_metrics (site_id, time, load_time) VALUES ($1, $2, $3);`,
		s.SiteID, s.Time, s.LoadTime,
	)
	return err
}

func (r *EventRepoImpl) LatestPerformance(ctx context.Context, siteID uuid.UUID) (*entity.PerformanceSample, error) {
	rows, err := r.RecentPerformance(ctx, siteID, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	return &rows[0], nil
}

func (r *EventRepoImpl) RecentPerformance(ctx context.Context, siteID uuid.UUID, limit int) ([]entity.PerformanceSample, error) {
	return recent[entity.PerformanceSample](ctx, r.db, `
		SELECT id, site_id, time, load_time, created_at
		FROM performance_metrics
		WHERE site_id = $1
		ORDER BY id DESC
		LIMIT $2;`, siteID, limit)
}

func (r *EventRepoImpl) InsertErrors(ctx context.Context, rows []entity.JSError) error {
	return insertAll(ctx, r.db,
		`INSERT INTO errors (site_id, type, message, filename, line_number, timestamp) VALUES ($1, $2, $3, $4, $5, $6);`,
		rows, func(e entity.JSError) []any {
			return []any{e.SiteID, e.Type, e.Message, e.Filename, e.LineNumber, e.Timestamp}
		})
}

func (r *EventRepoImpl) RecentErrors(ctx context.Context, siteID uuid.UUID, limit int) ([]entity.JSError, error) {
	return recent[entity.JSError](ctx, r.db, `
		SELECT id, site_id, type, message, filename, line_number, timestamp, created_at
		FROM errors
		WHERE site_id = $1
		ORDER BY id DESC
		LIMIT $2;`, siteID, limit)
}

func (r *EventRepoImpl) InsertConsoleEntries(ctx context.Context, rows []entity.ConsoleEntry) error {
	return insertAll(ctx, r.db,
		`INSERT INTO console_entries (site_id, type, message, timestamp) VALUES ($1, $2, $3, $4);`,
		rows, func(c entity.ConsoleEntry) []any {
			return []any{c.SiteID, c.Type, c.Message, c.Timestamp}
		})
}

func (r *EventRepoImpl) RecentConsoleEntries(ctx context.Context, siteID uuid.UUID, limit int) ([]entity.ConsoleEntry, error) {
	return recent[entity.ConsoleEntry](ctx, r.db, `
		SELECT id, site_id, type, message, timestamp, created_at
		FROM console_entries
		WHERE site_id = $1
		ORDER BY id DESC
		LIMIT $2;`, siteID, limit)
}

// JSONB columns are encoded and decoded by pgx with encoding/json.
func (r *EventRepoImpl) InsertImageIssues(ctx context.Context, rows []entity.ImageIssue) error {
	return insertAll(ctx, r.db,
		`INSERT INTO image_issues (site_id, url, original_size, display_size) VALUES ($1, $2, $3, $4);`,
		rows, func(i entity.ImageIssue) []any {
			return []any{i.SiteID, i.URL, i.OriginalSize, i.DisplaySize}
		})
}

func (r *EventRepoImpl) RecentImageIssues(ctx context.Context, siteID uuid.UUID, limit int) ([]entity.ImageIssue, error) {
	return recent[entity.ImageIssue](ctx, r.db, `
		SELECT id, site_id, url, original_size, display_size, created_at
		FROM image_issues
		WHERE site_id = $1
		ORDER BY id DESC
		LIMIT $2;`, siteID, limit)
}

func (r *EventRepoImpl) InsertResources(ctx context.Context, rows []entity.Resource) error {
	return insertAll(ctx, r.db,
		`INSERT INTO resources (site_id, name, type, duration, size, timestamp) VALUES ($1, $2, $3, $4, $5, $6);`,
		rows, func(res entity.Resource) []any {
			return []any{res.SiteID, res.Name, res.Type, res.Duration, res.Size, res.Timestamp}
		})
}

func (r *EventRepoImpl) RecentResources(ctx context.Context, siteID uuid.UUID, limit int) ([]entity.Resource, error) {
	return recent[entity.Resource](ctx, r.db, `
		SELECT id, site_id, name, type, duration, size, timestamp, created_at
		FROM resources
		WHERE site_id = $1
		ORDER BY id DESC
		LIMIT $2;`, siteID, limit)
}

var _ repository.EventRepository = (*EventRepoImpl)(nil)
