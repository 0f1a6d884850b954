package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/webmonitor/internal/entity"
	"github.com/user/webmonitor/internal/repository"
)

const uniqueViolation = "23505"

// SiteRepoImpl provides a concrete implementation for the SiteRepository interface using PostgreSQL.
type SiteRepoImpl struct {
	db *pgxpool.Pool
}

// NewSiteRepo creates a new instance of SiteRepoImpl.
func NewSiteRepo(db *pgxpool.Pool) *SiteRepoImpl {
	return &SiteRepoImpl{db: db}
}

// Upsert creates the site or refreshes url and last_update of the existing
// row for the same monitoring code. xmax is zero only for freshly inserted rows.
func (r *SiteRepoImpl) Upsert(ctx context.Context, site *entity.Site) (bool, error) {
	query := `
		INSERT INTO sites (id, user_id, slug, url, monitoring_code, status, last_update)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (monitoring_code) DO UPDATE SET
			url = EXCLUDED.url,
			last_update = EXCLUDED.last_update
		RETURNING id, user_id, slug, url, monitoring_code, status, last_update, (xmax = 0) AS created;
	`
	var created bool
	err := r.db.QueryRow(ctx, query,
		site.ID,
		site.UserID,
		site.Slug,
		site.URL,
		site.MonitoringCode,
		site.Status,
	).Scan(
		&site.ID,
		&site.UserID,
		&site.Slug,
		&site.URL,
		&site.MonitoringCode,
		&site.Status,
		&site.LastUpdate,
		&created,
	)
	if err != nil {
		// The monitoring code conflict is absorbed above, so any remaining
		// unique violation is on the id or the slug derived from it.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, repository.ErrIDConflict
		}
		return false, err
	}
	return created, nil
}

// FindByMonitoringCode retrieves a site by its public token.
func (r *SiteRepoImpl) FindByMonitoringCode(ctx context.Context, code string) (*entity.Site, error) {
	query := `
		SELECT id, user_id, slug, url, monitoring_code, status, last_update
		FROM sites
		WHERE monitoring_code = $1;
	`
	var s entity.Site
	err := r.db.QueryRow(ctx, query, code).Scan(
		&s.ID, &s.UserID, &s.Slug, &s.URL, &s.MonitoringCode, &s.Status, &s.LastUpdate,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByOwner retrieves every site owned by userID.
func (r *SiteRepoImpl) ListByOwner(ctx context.Context, userID uuid.UUID) ([]*entity.Site, error) {
	query := `
		SELECT id, user_id, slug, url, monitoring_code, status, last_update
		FROM sites
		WHERE user_id = $1
		ORDER BY slug;
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[entity.Site])
}

// Ping reports whether the database is reachable.
func (r *SiteRepoImpl) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

var _ repository.SiteRepository = (*SiteRepoImpl)(nil)
