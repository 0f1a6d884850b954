package repository

import (
	"context"
	"time"
)

// MarkerRepository defines the interface for short-lived duplicate-suppression markers.
// Keys are passed raw; implementations encode them for their store.
type MarkerRepository interface {
	// Mark sets key with a specific expiry time.
	Mark(ctx context.Context, key string, expiry time.Duration) error
	// IsMarked checks if key was marked and has not expired.
	IsMarked(ctx context.Context, key string) (bool, error)
}
