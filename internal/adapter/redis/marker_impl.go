package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/webmonitor/internal/repository"
	"github.com/user/webmonitor/pkg/utils"
)

const markerPrefix = "collected:"

// MarkerRepoImpl provides a concrete implementation for the MarkerRepository interface using Redis.
type MarkerRepoImpl struct {
	client *redis.Client
}

// NewMarkerRepo creates a new instance of MarkerRepoImpl.
func NewMarkerRepo(client *redis.Client) *MarkerRepoImpl {
	return &MarkerRepoImpl{client: client}
}

// generateKey hashes the caller's key so arbitrary input is a safe Redis key.
func (r *MarkerRepoImpl) generateKey(key string) string {
	return fmt.Sprintf("%s%s", markerPrefix, utils.HashKey(key))
}

// Mark sets the marker with an expiry; SET with EX is atomic.
func (r *MarkerRepoImpl) Mark(ctx context.Context, key string, expiry time.Duration) error {
	return r.client.Set(ctx, r.generateKey(key), "1", expiry).Err()
}

// IsMarked checks for the existence of the marker key.
func (r *MarkerRepoImpl) IsMarked(ctx context.Context, key string) (bool, error) {
	// EXISTS returns 1 if the key exists, 0 otherwise.
	val, err := r.client.Exists(ctx, r.generateKey(key)).Result()
	if err != nil {
		return false, err
	}
	return val == 1, nil
}

// Ping reports whether Redis is reachable.
func (r *MarkerRepoImpl) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

var _ repository.MarkerRepository = (*MarkerRepoImpl)(nil)
