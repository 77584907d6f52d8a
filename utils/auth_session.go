// File: utils/auth_session.go
package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reservo/models"

	"github.com/go-redis/redis/v8"
)

// ErrSessionNotFound is returned when no session is stored under the token hash.
var ErrSessionNotFound = errors.New("admin session not found")

// SaveAdminSession stores the session under adminSession:<tokenHash> with the given TTL.
func SaveAdminSession(ctx context.Context, client *redis.Client, tokenHash string, session models.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal admin session: %w", err)
	}
	if err := client.Set(ctx, SessionPrefix+tokenHash, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save admin session: %w", err)
	}
	return nil
}

// GetAdminSession retrieves the session stored for the token hash.
func GetAdminSession(ctx context.Context, client *redis.Client, tokenHash string) (*models.Session, error) {
	data, err := client.Get(ctx, SessionPrefix+tokenHash).Result()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read admin session: %w", err)
	}
	var session models.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal admin session: %w", err)
	}
	return &session, nil
}

// DeleteAdminSession removes the session for the token hash.
func DeleteAdminSession(ctx context.Context, client *redis.Client, tokenHash string) error {
	return client.Del(ctx, SessionPrefix+tokenHash).Err()
}
