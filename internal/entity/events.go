package entity

import (
	"time"

	"github.com/google/uuid"
)

// Event rows are append-only. Each carries the event time reported by the
// agent and CreatedAt, the time the server stored it.

type PerformanceSample struct {
	ID        int64
	SiteID    uuid.UUID
	Time      time.Time
	LoadTime  float64
	CreatedAt time.Time
}

type JSError struct {
	ID         int64
	SiteID     uuid.UUID
	Type       string
	Message    string
	Filename   string
	LineNumber int
	Timestamp  time.Time
	CreatedAt  time.Time
}

type ConsoleEntry struct {
	ID        int64
	SiteID    uuid.UUID
	Type      string // log, info, warn, error
	Message   string
	Timestamp time.Time
	CreatedAt time.Time
}

// Size is stored as JSON, e.g. {"width":1920,"height":1080}.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type ImageIssue struct {
	ID           int64
	SiteID       uuid.UUID
	URL          string
	OriginalSize Size
	DisplaySize  Size
	CreatedAt    time.Time
}

// Resource is one resource-timing entry.
type Resource struct {
	ID        int64
	SiteID    uuid.UUID
	Name      string
	Type      string
	Duration  float64
	Size      int64
	Timestamp time.Time
	CreatedAt time.Time
}
