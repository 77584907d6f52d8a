package relay

import (
	"context"
	"fmt"
	"time"

	"reservo/utils"

	"github.com/go-redis/redis/v8"
)

// RedisMarkers keeps manual markers and forward dedupe keys in Redis.
// It also serves the store client as its marker setter.
type RedisMarkers struct {
	Client *redis.Client
}

func NewRedisMarkers(client *redis.Client) *RedisMarkers {
	return &RedisMarkers{Client: client}
}

func manualKey(id string) string {
	return utils.ManualMarkerPrefix + id
}

func forwardedKey(id string, version int64) string {
	return fmt.Sprintf("%s%s:%d", utils.ForwardedPrefix, id, version)
}

func (m *RedisMarkers) SetManual(ctx context.Context, id string, ttl time.Duration) error {
	if err := m.Client.Set(ctx, manualKey(id), "1", ttl).Err(); err != nil {
		return fmt.Errorf("set manual marker %s: %w", id, err)
	}
	return nil
}

func (m *RedisMarkers) ClearManual(ctx context.Context, id string) error {
	if err := m.Client.Del(ctx, manualKey(id)).Err(); err != nil {
		return fmt.Errorf("clear manual marker %s: %w", id, err)
	}
	return nil
}

func (m *RedisMarkers) RestoreManual(ctx context.Context, id string, ttl time.Duration) error {
	return m.SetManual(ctx, id, ttl)
}

func (m *RedisMarkers) ConsumeManual(ctx context.Context, id string) (bool, error) {
	_, err := m.Client.GetDel(ctx, manualKey(id)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consume manual marker %s: %w", id, err)
	}
	return true, nil
}

func (m *RedisMarkers) MarkForwarded(ctx context.Context, id string, version int64, ttl time.Duration) (bool, error) {
	ok, err := m.Client.SetNX(ctx, forwardedKey(id, version), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark forwarded %s@%d: %w", id, version, err)
	}
	return ok, nil
}

func (m *RedisMarkers) UnmarkForwarded(ctx context.Context, id string, version int64) error {
	return m.Client.Del(ctx, forwardedKey(id, version)).Err()
}
