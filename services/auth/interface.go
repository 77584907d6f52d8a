package auth

import (
	"context"
	"errors"
	"time"

	"reservo/models"
)

var (
	// ErrUnauthorized is returned for rejected credentials.
	ErrUnauthorized = errors.New("invalid email or password")
	// ErrSessionExpired is returned when the token is invalid or its backend session is gone.
	ErrSessionExpired = errors.New("session expired or invalid")
)

// SessionRecheckInterval is how often a long-lived viewer revalidates its session.
const SessionRecheckInterval = 5 * time.Minute

// Credentials is the login form payload.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult carries the issued token.
type LoginResult struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Session   models.Session `json:"session"`
}

// SessionStore persists backend sessions keyed by token hash.
type SessionStore interface {
	Save(ctx context.Context, tokenHash string, session models.Session, ttl time.Duration) error
	Get(ctx context.Context, tokenHash string) (*models.Session, error)
	Delete(ctx context.Context, tokenHash string) error
}

// SessionChecker is the authoritative session check used by admin surfaces.
type SessionChecker interface {
	GetSession(ctx context.Context, token string) (*models.Session, error)
}
