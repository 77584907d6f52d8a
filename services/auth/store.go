package auth

import (
	"context"
	"time"

	"reservo/models"
	"reservo/utils"

	"github.com/go-redis/redis/v8"
)

// RedisSessionStore keeps sessions in the auth Redis database.
type RedisSessionStore struct {
	Client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{Client: client}
}

func (s *RedisSessionStore) Save(ctx context.Context, tokenHash string, session models.Session, ttl time.Duration) error {
	return utils.SaveAdminSession(ctx, s.Client, tokenHash, session, ttl)
}

func (s *RedisSessionStore) Get(ctx context.Context, tokenHash string) (*models.Session, error) {
	return utils.GetAdminSession(ctx, s.Client, tokenHash)
}

func (s *RedisSessionStore) Delete(ctx context.Context, tokenHash string) error {
	return utils.DeleteAdminSession(ctx, s.Client, tokenHash)
}
