package middleware

import (
	"net/http"
	"strings"
	"time"

	"reservo/services/auth"
	"reservo/utils"

	"github.com/gin-gonic/gin"
)

// Context keys set by AdminAuth.
const (
	AdminSessionKey = "adminSession"
	AdminTokenKey   = "adminToken"
)

// BearerToken extracts the session token from the Authorization header. The
// websocket route may also pass it as ?token= since browsers cannot set
// headers on upgrade requests.
func BearerToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return c.Query("token")
}

// AdminAuth rejects requests without a live admin session. A verified request
// refreshes the token's fast-path hint in hints when it is non-nil.
func AdminAuth(sessions auth.SessionChecker, hints *auth.FastPaths) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			utils.JSONError(c, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}

		session, err := sessions.GetSession(c.Request.Context(), token)
		if err != nil {
			utils.JSONError(c, http.StatusUnauthorized, "Unauthorized admin access")
			return
		}

		if hints != nil {
			hints.Touch(token, time.Now())
		}
		c.Set(AdminTokenKey, token)
		c.Set(AdminSessionKey, session)
		c.Next()
	}
}
