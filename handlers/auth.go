package handlers

import (
	"errors"
	"net/http"

	"reservo/middleware"
	"reservo/services/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler serves admin login, logout and session checks.
type AuthHandler struct {
	Manager   *auth.Manager
	FastPaths *auth.FastPaths
}

func NewAuthHandler(m *auth.Manager, fp *auth.FastPaths) *AuthHandler {
	return &AuthHandler{Manager: m, FastPaths: fp}
}

// Login checks the admin credentials and issues a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	logger := getLogger(c)

	var creds auth.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		logger.Warn("Invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request: " + err.Error()})
		return
	}

	res, err := h.Manager.Login(c.Request.Context(), creds)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": err.Error()})
			return
		}
		logger.Error("Login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Login failed"})
		return
	}

	fp := h.FastPaths.For(res.Token)
	now := h.Manager.Now()
	fp.MarkPersistent(now)
	fp.MarkTab(now)

	c.JSON(http.StatusOK, gin.H{"success": true, "token": res.Token, "expiresAt": res.ExpiresAt})
}

// Logout ends the session. Local fast-path state is cleared whatever the backend says.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.BearerToken(c)
	defer h.FastPaths.Drop(token)

	if err := h.Manager.Logout(c.Request.Context(), token, h.FastPaths.Lookup(token)); err != nil {
		getLogger(c).Warn("Logout: backend session not removed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Session reports the current backend session and refreshes the fast-path hint.
func (h *AuthHandler) Session(c *gin.Context) {
	token := middleware.BearerToken(c)
	session, err := h.Manager.GetSession(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, auth.ErrSessionExpired) {
			getLogger(c).Error("Session check failed", zap.Error(err))
		}
		if fp := h.FastPaths.Lookup(token); fp != nil {
			fp.Clear()
			h.FastPaths.Drop(token)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "No active session"})
		return
	}

	h.FastPaths.Touch(token, h.Manager.Now())
	c.JSON(http.StatusOK, gin.H{"success": true, "session": session})
}
