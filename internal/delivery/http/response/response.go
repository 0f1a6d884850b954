package response

import (
	"time"

	"github.com/user/webmonitor/internal/entity"
)

// Error codes of the error envelope.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "INTERNAL_ERROR"
)

// CollectResponse acknowledges an ingestion call.
type CollectResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Site is the dashboard's view of one site. PerformanceData is only filled
// by the detail endpoint.
type Site struct {
	ID              string             `json:"id"`
	Slug            string             `json:"slug"`
	URL             string             `json:"url"`
	MonitoringCode  string             `json:"monitoringCode"`
	Status          string             `json:"status"`
	LastUpdate      *string            `json:"lastUpdate"`
	Metrics         Metrics            `json:"metrics"`
	PerformanceData []PerformancePoint `json:"performanceData,omitempty"`
}

type Metrics struct {
	LoadTime       float64       `json:"loadTime"`
	Errors         []ErrorItem   `json:"errors"`
	ConsoleEntries []ConsoleItem `json:"consoleEntries"`
	ImageIssues    []ImageItem   `json:"imageIssues"`
}

type ErrorItem struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Filename   string `json:"filename"`
	LineNumber int    `json:"lineNumber"`
	Timestamp  string `json:"timestamp"`
}

type ConsoleItem struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type ImageItem struct {
	URL          string      `json:"url"`
	OriginalSize entity.Size `json:"originalSize"`
	DisplaySize  entity.Size `json:"displaySize"`
}

// PerformancePoint is one chart sample; Time is "HH:MM" in UTC.
type PerformancePoint struct {
	Time     string  `json:"time"`
	LoadTime float64 `json:"loadTime"`
}

func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// FromOverview converts a site overview to its wire form.
func FromOverview(ov *entity.SiteOverview, withSeries bool) Site {
	s := Site{
		ID:             ov.Site.ID.String(),
		Slug:           ov.Site.Slug,
		URL:            ov.Site.URL,
		MonitoringCode: ov.Site.MonitoringCode,
		Status:         string(ov.Site.Status),
		Metrics: Metrics{
			LoadTime:       ov.LoadTime,
			Errors:         make([]ErrorItem, 0, len(ov.Errors)),
			ConsoleEntries: make([]ConsoleItem, 0, len(ov.ConsoleEntries)),
			ImageIssues:    make([]ImageItem, 0, len(ov.ImageIssues)),
		},
	}
	if ov.Site.LastUpdate != nil {
		v := isoTime(*ov.Site.LastUpdate)
		s.LastUpdate = &v
	}
	for _, e := range ov.Errors {
		s.Metrics.Errors = append(s.Metrics.Errors, ErrorItem{
			Type:       e.Type,
			Message:    e.Message,
			Filename:   e.Filename,
			LineNumber: e.LineNumber,
			Timestamp:  isoTime(e.Timestamp),
		})
	}
	for _, c := range ov.ConsoleEntries {
		s.Metrics.ConsoleEntries = append(s.Metrics.ConsoleEntries, ConsoleItem{
			Type:      c.Type,
			Message:   c.Message,
			Timestamp: isoTime(c.Timestamp),
		})
	}
	for _, i := range ov.ImageIssues {
		s.Metrics.ImageIssues = append(s.Metrics.ImageIssues, ImageItem{
			URL:          i.URL,
			OriginalSize: i.OriginalSize,
			DisplaySize:  i.DisplaySize,
		})
	}
	if withSeries {
		s.PerformanceData = make([]PerformancePoint, 0, len(ov.PerformanceData))
		for _, p := range ov.PerformanceData {
			s.PerformanceData = append(s.PerformanceData, PerformancePoint{
				Time:     p.Time.UTC().Format("15:04"),
				LoadTime: p.LoadTime,
			})
		}
	}
	return s
}
