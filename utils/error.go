package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FailureResponse is the uniform client-facing failure body.
type FailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ErrorHandler turns panics and unanswered gin errors into a JSON 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				GetLogger().Error("Unhandled panic", zap.Any("error", err), zap.String("path", c.FullPath()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, FailureResponse{Error: "Internal Server Error"})
			}
		}()
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			GetLogger().Error("Request failed", zap.String("path", c.FullPath()), zap.String("errors", c.Errors.String()))
			c.JSON(http.StatusInternalServerError, FailureResponse{Error: c.Errors.Last().Error()})
		}
	}
}

// JSONError aborts the request with a failure body.
func JSONError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, FailureResponse{Error: message})
}
