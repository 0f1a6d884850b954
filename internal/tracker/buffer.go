package tracker

import (
	"sync"

	"github.com/user/webmonitor/pkg/beacon"
)

// Buffer is the agent's owned telemetry state. Detectors receive it at
// construction and only ever append to it.
type Buffer struct {
	mu sync.Mutex

	url          string
	loadTime     float64
	loadCaptured bool
	errors       []beacon.ErrorRecord
	console      []beacon.ConsoleEntry
	images       []beacon.ImageIssue
	resources    []beacon.Resource
}

func NewBuffer(pageURL string) *Buffer {
	return &Buffer{url: pageURL}
}

// RecordLoadTime stores the page load time. Only the first call has an
// effect; it reports whether the value was stored.
func (b *Buffer) RecordLoadTime(ms float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loadCaptured {
		return false
	}
	b.loadTime = ms
	b.loadCaptured = true
	return true
}

func (b *Buffer) AddError(e beacon.ErrorRecord) {
	b.mu.Lock()
	b.errors = append(b.errors, e)
	b.mu.Unlock()
}

func (b *Buffer) AddConsoleEntry(e beacon.ConsoleEntry) {
	b.mu.Lock()
	b.console = append(b.console, e)
	b.mu.Unlock()
}

func (b *Buffer) AddImageIssue(i beacon.ImageIssue) {
	b.mu.Lock()
	b.images = append(b.images, i)
	b.mu.Unlock()
}

func (b *Buffer) SetResources(rs []beacon.Resource) {
	b.mu.Lock()
	b.resources = append([]beacon.Resource(nil), rs...)
	b.mu.Unlock()
}

// Reset clears errors, console entries and image issues. Load time and
// resources are kept.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.errors = nil
	b.console = nil
	b.images = nil
	b.mu.Unlock()
}

// Data returns a copy of the whole buffer in wire form. Empty collections are
// encoded as [] rather than null.
func (b *Buffer) Data() beacon.Data {
	b.mu.Lock()
	defer b.mu.Unlock()
	return beacon.Data{
		URL:            b.url,
		LoadTime:       b.loadTime,
		Errors:         append(make([]beacon.ErrorRecord, 0, len(b.errors)), b.errors...),
		ConsoleEntries: append(make([]beacon.ConsoleEntry, 0, len(b.console)), b.console...),
		ImageIssues:    append(make([]beacon.ImageIssue, 0, len(b.images)), b.images...),
		Resources:      append(make([]beacon.Resource, 0, len(b.resources)), b.resources...),
	}
}
