package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/user/webmonitor/internal/entity"
)

// EventRepository stores the append-only metric rows of a site. Recent*
// methods return the most recently stored rows first, in insertion order;
// client-supplied timestamps play no part in it.
type EventRepository interface {
	InsertPerformance(ctx context.Context, sample entity.PerformanceSample) error
	// LatestPerformance returns ErrNotFound when the site has no samples.
	LatestPerformance(ctx context.Context, siteID uuid.UUID) (*entity.PerformanceSample, error)
	RecentPerformance(ctx context.Context, siteID uuid.UUID, limit int) ([]entity.PerformanceSample, error)

	InsertErrors(ctx context.Context, rows []entity.JSError) error
	RecentErrors(ctx context.Context, siteID uuid.UUID, limit int) ([]entity.JSError, error)

	InsertConsoleEntries(ctx context.Context, rows []entity.ConsoleEntry) error
	RecentConsoleEntries(ctx context.Context, siteID uuid.UUID, limit int) ([]entity.ConsoleEntry, error)

	InsertImageIssues(ctx context.Context, rows []entity.ImageIssue) error
	RecentImageIssues(ctx context.Context, siteID uuid.UUID, limit int) ([]entity.ImageIssue, error)

	InsertResources(ctx context.Context, rows []entity.Resource) error
	RecentResources(ctx context.Context, siteID uuid.UUID, limit int) ([]entity.Resource, error)
}
