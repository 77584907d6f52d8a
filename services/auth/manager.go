package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"reservo/models"
	"reservo/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Manager issues and verifies admin sessions. A session is valid only when
// the token verifies and its Redis record still exists.
type Manager struct {
	Store        SessionStore
	Secret       []byte
	AdminEmail   string
	PasswordHash string
	TTL          time.Duration
	Now          func() time.Time
}

func NewManager(store SessionStore, secret, adminEmail, passwordHash string, ttl time.Duration) *Manager {
	return &Manager{
		Store:        store,
		Secret:       []byte(secret),
		AdminEmail:   adminEmail,
		PasswordHash: passwordHash,
		TTL:          ttl,
		Now:          time.Now,
	}
}

var _ SessionChecker = (*Manager)(nil)

func (m *Manager) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func (m *Manager) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	logger := utils.GetLogger()

	if m.PasswordHash == "" || !strings.EqualFold(strings.TrimSpace(creds.Email), m.AdminEmail) {
		logger.Warn("Login rejected", zap.String("email", creds.Email))
		return nil, ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(creds.Password)); err != nil {
		logger.Warn("Login rejected: password mismatch", zap.String("email", creds.Email))
		return nil, ErrUnauthorized
	}

	now := m.now()
	session := models.Session{
		ID:        uuid.New().String(),
		Email:     m.AdminEmail,
		CreatedAt: now,
		ExpiresAt: now.Add(m.TTL),
	}
	token, err := utils.GenerateToken(m.Secret, session.Email, session.ID, m.TTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	if err := m.Store.Save(ctx, utils.HashToken(token), session, m.TTL); err != nil {
		return nil, err
	}

	logger.Info("Admin logged in", zap.String("sessionID", session.ID))
	return &LoginResult{Token: token, ExpiresAt: session.ExpiresAt, Session: session}, nil
}

// Logout deletes the backend session and then clears fp whatever the backend said.
func (m *Manager) Logout(ctx context.Context, token string, fp *FastPath) error {
	var err error
	if token != "" {
		err = m.Store.Delete(ctx, utils.HashToken(token))
		if err != nil {
			utils.GetLogger().Error("Logout: failed to delete session", zap.Error(err))
		}
	}
	if fp != nil {
		fp.Clear()
	}
	return err
}

func (m *Manager) GetSession(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrSessionExpired
	}
	claims, err := utils.ValidateToken(m.Secret, token)
	if err != nil {
		return nil, ErrSessionExpired
	}

	session, err := m.Store.Get(ctx, utils.HashToken(token))
	if errors.Is(err, utils.ErrSessionNotFound) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}
	if session.ID != claims.SessionID || !session.Valid(m.now()) {
		return nil, ErrSessionExpired
	}
	return session, nil
}
