package entity

import (
	"time"

	"github.com/google/uuid"
)

// SiteStatus is the health label shown on the dashboard.
type SiteStatus string

const (
	StatusHealthy SiteStatus = "healthy"
	StatusWarning SiteStatus = "warning"
	StatusError   SiteStatus = "error"
)

// Site mirrors the `sites` table. MonitoringCode is the public token
// embedded in the tracker snippet; ID is internal and fixed at creation.
type Site struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Slug           string
	URL            string
	MonitoringCode string
	Status         SiteStatus
	LastUpdate     *time.Time
}

// SiteOverview is a site plus the recent samples of each metric collection.
type SiteOverview struct {
	Site            *Site
	LoadTime        float64
	Errors          []JSError
	ConsoleEntries  []ConsoleEntry
	ImageIssues     []ImageIssue
	PerformanceData []PerformanceSample
}
