package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/user/webmonitor/internal/entity"
	"github.com/user/webmonitor/internal/repository"
)

// EventRepoImpl implements repository.EventRepository on SQLite.
type EventRepoImpl struct {
	db  *sql.DB
	now func() time.Time
}

func NewEventRepo(db *sql.DB) *EventRepoImpl {
	return &EventRepoImpl{db: db, now: time.Now}
}

// insertAll writes rows through one prepared statement inside a transaction.
func insertAll[T any](ctx context.Context, db *sql.DB, query string, rows []T, args func(T) ([]any, error)) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		a, err := args(row)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, a...); err != nil {
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	return tx.Commit()
}

func queryAll[T any](ctx context.Context, db *sql.DB, query string, siteID uuid.UUID, limit int, scan func(rowScanner) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, siteID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *EventRepoImpl) InsertPerformance(ctx context.Context, s entity.PerformanceSample) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO performance_metrics (site_id, time, load_time, created_at) VALUES (?, ?, ?, ?)`,
		s.SiteID.String(), toMillis(s.Time), s.LoadTime, toMillis(r.now()),
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
	return queryAll(ctx, r.db, `
		SELECT id, site_id, time, load_time, created_at FROM performance_metrics
		WHERE site_id = ? ORDER BY id DESC LIMIT ?`,
		siteID, limit, func(row rowScanner) (entity.PerformanceSample, error) {
			var (
				s          entity.PerformanceSample
				at, stored int64
			)
			err := row.Scan(&s.ID, &s.SiteID, &at, &s.LoadTime, &stored)
			s.Time, s.CreatedAt = fromMillis(at), fromMillis(stored)
			return s, err
		})
}

func (r *EventRepoImpl) InsertErrors(ctx context.Context, rows []entity.JSError) error {
	now := toMillis(r.now())
	return insertAll(ctx, r.db,
		`INSERT INTO errors (site_id, type, message, filename, line_number, timestamp, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rows, func(e entity.JSError) ([]any, error) {
			return []any{e.SiteID.String(), e.Type, e.Message, e.Filename, e.LineNumber, toMillis(e.Timestamp), now}, nil
		})
}

func (r *EventRepoImpl) RecentErrors(ctx context.Context, siteID uuid.UUID, limit int) ([]entity.JSError, error) {
	return queryAll(ctx, r.db, `
		SELECT id, site_id, type, message, filename, line_number, timestamp, created_at FROM errors
		WHERE site_id = ? ORDER BY id DESC LIMIT ?`,
		siteID, limit, func(row rowScanner) (entity.JSError, error) {
			var (
				e          entity.JSError
				at, stored int64
			)
			err := row.Scan(&e.ID, &e.SiteID, &e.Type, &e.Message, &e.Filename, &e.LineNumber, &at, &stored)
			e.Timestamp, e.CreatedAt = fromMillis(at), fromMillis(stored)
			return e, err
		})
}

func (r *EventRepoImpl) InsertConsoleEntries(ctx context.Context, rows []entity.ConsoleEntry) error {
	now := toMillis(r.now())
	return insertAll(ctx, r.db,
		`INSERT INTO console_entries (site_id, type, message, timestamp, created_at) VALUES (?, ?, ?, ?, ?)`,
		rows, func(c entity.ConsoleEntry) ([]any, error) {
			return []any{c.SiteID.String(), c.Type, c.Message, toMillis(c.Timestamp), now}, nil
		})
}

func (r *EventRepoImpl) RecentConsoleEntries(ctx context.Context, siteID uuid.UUID, limit int) ([]entity.ConsoleEntry, error) {
	return queryAll(ctx, r.db, `
		SELECT id, site_id, type, message, timestamp, created_at FROM console_entries
		WHERE site_id = ? ORDER BY id DESC LIMIT ?`,
		siteID, limit, func(row rowScanner) (entity.ConsoleEntry, error) {
			var (
				c          entity.ConsoleEntry
				at, stored int64
			)
			err := row.Scan(&c.ID, &c.SiteID, &c.Type, &c.Message, &at, &stored)
			c.Timestamp, c.CreatedAt = fromMillis(at), fromMillis(stored)
			return c, err
		})
}

func (r *EventRepoImpl) InsertImageIssues(ctx context.Context, rows []entity.ImageIssue) error {
	now := toMillis(r.now())
	return insertAll(ctx, r.db,
		`INSERT INTO image_issues (site_id, url, original_size, display_size, created_at) VALUES (?, ?, json(?), json(?), ?)`,
		rows, func(i entity.ImageIssue) ([]any, error) {
			orig, err := json.Marshal(i.OriginalSize)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal image size: %w", err)
			}
			disp, err := json.Marshal(i.DisplaySize)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal image size: %w", err)
			}
			return []any{i.SiteID.String(), i.URL, string(orig), string(disp), now}, nil
		})
}

func (r *EventRepoImpl) RecentImageIssues(ctx context.Context, siteID uuid.UUID, limit int) ([]entity.ImageIssue, error) {
	return queryAll(ctx, r.db, `
		SELECT id, site_id, url, original_size, display_size, created_at FROM image_issues
		WHERE site_id = ? ORDER BY id DESC LIMIT ?`,
		siteID, limit, func(row rowScanner) (entity.ImageIssue, error) {
			var (
				i          entity.ImageIssue
				orig, disp string
				stored     int64
			)
			if err := row.Scan(&i.ID, &i.SiteID, &i.URL, &orig, &disp, &stored); err != nil {
				return i, err
			}
			i.CreatedAt = fromMillis(stored)
			if err := json.Unmarshal([]byte(orig), &i.OriginalSize); err != nil {
				return i, err
			}
			return i, json.Unmarshal([]byte(disp), &i.DisplaySize)
		})
}

func (r *EventRepoImpl) InsertResources(ctx context.Context, rows []entity.Resource) error {
	now := toMillis(r.now())
	return insertAll(ctx, r.db,
		`INSERT INTO resources (site_id, name, type, duration, size, timestamp, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rows, func(res entity.Resource) ([]any, error) {
			return []any{res.SiteID.String(), res.Name, res.Type, res.Duration, res.Size, toMillis(res.Timestamp), now}, nil
		})
}

func (r *EventRepoImpl) RecentResources(ctx context.Context, siteID uuid.UUID, limit int) ([]entity.Resource, error) {
	return queryAll(ctx, r.db, `
		SELECT id, site_id, name, type, duration, size, timestamp, created_at FROM resources
		WHERE site_id = ? ORDER BY id DESC LIMIT ?`,
		siteID, limit, func(row rowScanner) (entity.Resource, error) {
			var (
				res        entity.Resource
				at, stored int64
			)
			err := row.Scan(&res.ID, &res.SiteID, &res.Name, &res.Type, &res.Duration, &res.Size, &at, &stored)
			res.Timestamp, res.CreatedAt = fromMillis(at), fromMillis(stored)
			return res, err
		})
}

var _ repository.EventRepository = (*EventRepoImpl)(nil)
