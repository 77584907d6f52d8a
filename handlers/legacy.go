package handlers

import (
	"net/http"

	"reservo/models"
	"reservo/services/reservation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// legacyUpdateRequest is the body older clients send: the id plus the fields to change.
type legacyUpdateRequest struct {
	ID string `json:"id"`
	models.ReservationUpdate
}

// LegacyUpdate keeps the old update endpoint alive on top of the same store
// client path as the admin API.
func (h *ReservationHandler) LegacyUpdate(c *gin.Context) {
	logger := getLogger(c)

	var req legacyUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid legacy update payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, reservation.Result{Success: false, Message: "Invalid request: " + err.Error()})
		return
	}

	res := h.Service.Update(c.Request.Context(), req.ID, req.ReservationUpdate)
	if !res.Success {
		code := statusFor(res.Err)
		if code == http.StatusInternalServerError {
			logger.Error("Legacy update failed", zap.String("id", req.ID), zap.String("message", res.Message))
		}
		c.JSON(code, res)
		return
	}
	c.JSON(http.StatusOK, res)
}
