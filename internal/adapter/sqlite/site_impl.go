package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/user/webmonitor/internal/entity"
	"github.com/user/webmonitor/internal/repository"
)

// SiteRepoImpl implements repository.SiteRepository on SQLite.
type SiteRepoImpl struct {
	db  *sql.DB
	now func() time.Time
}

func NewSiteRepo(db *sql.DB) *SiteRepoImpl {
	return &SiteRepoImpl{db: db, now: time.Now}
}

// Upsert inserts with ON CONFLICT DO NOTHING so exactly one caller creates a
// given monitoring code; everyone else refreshes the existing row.
func (r *SiteRepoImpl) Upsert(ctx context.Context, site *entity.Site) (bool, error) {
	now := toMillis(r.now())
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sites (id, user_id, slug, url, monitoring_code, status, last_update)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (monitoring_code) DO NOTHING`,
		site.ID.String(), site.UserID.String(), site.Slug, site.URL, site.MonitoringCode, string(site.Status), now,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return false, repository.ErrIDConflict
		}
		return false, fmt.Errorf("insert site: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	created := n == 1
	if !created {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE sites SET url = ?, last_update = ? WHERE monitoring_code = ?`,
			site.URL, now, site.MonitoringCode,
		); err != nil {
			return false, fmt.Errorf("update site: %w", err)
		}
	}
	stored, err := r.FindByMonitoringCode(ctx, site.MonitoringCode)
	if err != nil {
		return false, err
	}
	*site = *stored
	return created, nil
}

const siteColumns = `id, user_id, slug, url, monitoring_code, status, last_update`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (*entity.Site, error) {
	var (
		s          entity.Site
		status     string
		lastUpdate sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.Slug, &s.URL, &s.MonitoringCode, &status, &lastUpdate); err != nil {
		return nil, err
	}
	s.Status = entity.SiteStatus(status)
	if lastUpdate.Valid {
		t := fromMillis(lastUpdate.Int64)
		s.LastUpdate = &t
	}
	return &s, nil
}

func (r *SiteRepoImpl) FindByMonitoringCode(ctx context.Context, code string) (*entity.Site, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE monitoring_code = ?`, code)
	s, err := scanSite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return s, err
}

func (r *SiteRepoImpl) ListByOwner(ctx context.Context, userID uuid.UUID) ([]*entity.Site, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+siteColumns+` FROM sites WHERE user_id = ? ORDER BY slug`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []*entity.Site
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

func (r *SiteRepoImpl) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

var _ repository.SiteRepository = (*SiteRepoImpl)(nil)
