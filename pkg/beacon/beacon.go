// Package beacon defines the JSON wire format the tracker agent sends to the
// ingestion endpoint. One Batch is one beacon.
package beacon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// SiteIDPrefix is the removable marker carried by public monitoring codes.
const SiteIDPrefix = "wm_"

// Batch is the body of one ingestion POST.
type Batch struct {
	SiteID    string `json:"siteId"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
	Data      Data   `json:"data"`
}

// Data carries the whole agent buffer, not a delta.
type Data struct {
	URL            string         `json:"url,omitempty"`
	LoadTime       float64        `json:"loadTime"`
	Errors         []ErrorRecord  `json:"errors"`
	ConsoleEntries []ConsoleEntry `json:"consoleEntries"`
	ImageIssues    []ImageIssue   `json:"imageIssues"`
	Resources      []Resource     `json:"resources"`
}

type ErrorRecord struct {
	Type      string    `json:"type,omitempty"`
	Message   string    `json:"message"`
	Filename  string    `json:"filename"`
	Lineno    int       `json:"lineno"`
	Timestamp Timestamp `json:"timestamp,omitzero"`
}

// UnmarshalJSON accepts both "lineno" and "lineNumber"; older snippets send the latter.
func (e *ErrorRecord) UnmarshalJSON(b []byte) error {
	type plain ErrorRecord
	var aux struct {
		plain
		LineNumber *int `json:"lineNumber"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*e = ErrorRecord(aux.plain)
	if e.Lineno == 0 && aux.LineNumber != nil {
		e.Lineno = *aux.LineNumber
	}
	return nil
}

type ConsoleEntry struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp Timestamp `json:"timestamp"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type ImageIssue struct {
	URL          string `json:"url"`
	OriginalSize Size   `json:"originalSize"`
	DisplaySize  Size   `json:"displaySize"`
}

// Resource is one resource-timing entry.
type Resource struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Duration float64 `json:"duration"`
	Size     int64   `json:"size"`
}

// Timestamp decodes from an RFC 3339 string or an epoch-millisecond number
// and always encodes as RFC 3339.
type Timestamp struct {
	time.Time
}

func At(t time.Time) Timestamp { return Timestamp{Time: t} }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}
	ms, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", b, err)
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

// Or returns t, or fallback when t is unset.
func (t Timestamp) Or(fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t.Time
}

// Time returns the batch capture instant.
func (b Batch) Time() time.Time {
	if b.Timestamp <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(b.Timestamp).UTC()
}
