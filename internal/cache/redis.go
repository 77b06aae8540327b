// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tommasop/stima/internal/config"
	"github.com/tommasop/stima/internal/game"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// snapshotTTL bounds how long an abandoned room's snapshot lingers.
const snapshotTTL = 24 * time.Hour

// ConnectRedis initializes the global Redis client with environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis() error {
	addr := config.Getenv("REDIS_ADDR", "localhost:6379")
	dbIdx := config.GetenvInt("REDIS_DB", 0)

	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

func snapshotKey(roomCode string) string {
	return "stima:snapshot:" + roomCode
}

// SaveSnapshot persists a room's round state, keyed by room code. Callers
// treat failures as best-effort: log and move on, the in-memory state remains
// the source of truth.
func SaveSnapshot(ctx context.Context, snap game.Snapshot) error {
	if Rdb == nil {
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for room %s: %w", snap.RoomCode, err)
	}
	if err := Rdb.Set(ctx, snapshotKey(snap.RoomCode), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot for room %s: %w", snap.RoomCode, err)
	}
	return nil
}

// LoadSnapshot fetches the last persisted round state for a room. A missing
// snapshot returns (nil, nil).
func LoadSnapshot(ctx context.Context, roomCode string) (*game.Snapshot, error) {
	if Rdb == nil {
		return nil, nil
	}
	data, err := Rdb.Get(ctx, snapshotKey(roomCode)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot for room %s: %w", roomCode, err)
	}
	var snap game.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for room %s: %w", roomCode, err)
	}
	return &snap, nil
}

// DeleteSnapshot drops the persisted state once a room is destroyed.
func DeleteSnapshot(ctx context.Context, roomCode string) error {
	if Rdb == nil {
		return nil
	}
	return Rdb.Del(ctx, snapshotKey(roomCode)).Err()
}
