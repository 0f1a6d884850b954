package repository

import (
	"context"

	"github.com/user/webmonitor/internal/tracker"
)

// Page is an opened page the tracker agent can be embedded in.
type Page interface {
	tracker.Host
	// Ready signals that the agent is installed. Console and error events
	// raised while the page loaded are delivered from then on.
	Ready()
	// Close releases the underlying browser tab.
	Close() error
}

// PageRepository defines the contract for the mechanism that loads pages
// for synthetic probing.
type PageRepository interface {
	// Open loads url and returns once the page has loaded or ctx is done.
	Open(ctx context.Context, url string) (Page, error)
}
