package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"reservo/models"
	"reservo/services/relay"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookSecretHeader carries the shared secret when one is configured.
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookHandler accepts row events from the store trigger and relays them.
type WebhookHandler struct {
	Relay  *relay.Relay
	Secret string
}

func NewWebhookHandler(r *relay.Relay, secret string) *WebhookHandler {
	return &WebhookHandler{Relay: r, Secret: secret}
}

// HandleReservationEvent runs the relay for one event. Failures answer 500 and
// are not retried here.
func (h *WebhookHandler) HandleReservationEvent(c *gin.Context) {
	logger := getLogger(c)

	if h.Secret != "" && subtle.ConstantTimeCompare([]byte(c.GetHeader(WebhookSecretHeader)), []byte(h.Secret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid webhook secret"})
		return
	}

	var ev models.WebhookEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		logger.Warn("Invalid webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request: " + err.Error()})
		return
	}

	out, err := h.Relay.Handle(c.Request.Context(), ev)
	if err != nil {
		if errors.Is(err, relay.ErrInvalidEvent) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "duplicate": out.Duplicate})
}
