package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/user/webmonitor/internal/entity"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrIDConflict is returned by Upsert when the proposed site ID or slug
	// already belongs to another monitoring code.
	ErrIDConflict = errors.New("site id already in use")
)

// SiteRepository defines the contract for storing monitored sites.
type SiteRepository interface {
	// Upsert inserts site, or, if its monitoring code already exists, updates
	// url and last_update in the same statement. site is overwritten with the
	// stored row. created reports whether a new row was inserted.
	Upsert(ctx context.Context, site *entity.Site) (created bool, err error)
	// FindByMonitoringCode returns ErrNotFound when no site carries code.
	FindByMonitoringCode(ctx context.Context, code string) (*entity.Site, error)
	// ListByOwner returns the user's sites ordered by slug.
	ListByOwner(ctx context.Context, userID uuid.UUID) ([]*entity.Site, error)
}
