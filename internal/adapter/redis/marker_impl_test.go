package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/user/webmonitor/pkg/utils"
)

func setupTestRedis(t *testing.T) (*MarkerRepoImpl, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewMarkerRepo(client), mr
}

func TestMarkerExpires(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	marked, err := repo.IsMarked(ctx, "client|site")
	if err != nil || marked {
		t.Fatalf("fresh key: marked=%v err=%v", marked, err)
	}
	if err := repo.Mark(ctx, "client|site", 10*time.Minute); err != nil {
		t.Fatal(err)
	}
	if marked, _ := repo.IsMarked(ctx, "client|site"); !marked {
		t.Fatal("marker not visible after Mark")
	}
	if marked, _ := repo.IsMarked(ctx, "client|other"); marked {
		t.Fatal("unrelated key reported as marked")
	}

	mr.FastForward(10*time.Minute + time.Second)
	if marked, _ := repo.IsMarked(ctx, "client|site"); marked {
		t.Fatal("marker survived its TTL")
	}
}

func TestMarkerKeysAreHashed(t *testing.T) {
	repo, mr := setupTestRedis(t)
	if err := repo.Mark(context.Background(), "10.0.0.1|Mozilla/5.0 (X11)|abc", time.Minute); err != nil {
		t.Fatal(err)
	}
	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("keys = %v", keys)
	}
	if got, want := len(keys[0]), len(markerPrefix)+64; got != want {
		t.Errorf("key %q has length %d, want %d", keys[0], got, want)
	}
	if want := markerPrefix + utils.HashKey("10.0.0.1|Mozilla/5.0 (X11)|abc"); keys[0] != want {
		t.Errorf("key = %q, want a single hash of the raw key %q", keys[0], want)
	}
}

func TestPing(t *testing.T) {
	repo, mr := setupTestRedis(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	mr.Close()
	if err := repo.Ping(context.Background()); err == nil {
		t.Fatal("expected ping to fail after shutdown")
	}
}
