package handlers

import (
	"errors"
	"net/http"

	"reservo/models"
	"reservo/services/reservation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReservationHandler serves the booking form and the admin reservation API.
type ReservationHandler struct {
	Service reservation.ReservationService
}

func NewReservationHandler(svc reservation.ReservationService) *ReservationHandler {
	return &ReservationHandler{Service: svc}
}

// CreateReservation handles the public booking form.
func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	logger := getLogger(c)

	var input models.ReservationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		logger.Warn("Invalid reservation payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, reservation.Result{Success: false, Message: "Invalid request: " + err.Error()})
		return
	}

	res := h.Service.Create(c.Request.Context(), input)
	if !res.Success {
		c.JSON(statusFor(res.Err), res)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ListReservations returns every reservation, newest first.
func (h *ReservationHandler) ListReservations(c *gin.Context) {
	res := h.Service.List(c.Request.Context())
	if !res.Success {
		c.JSON(http.StatusInternalServerError, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetReservation returns one reservation by id.
func (h *ReservationHandler) GetReservation(c *gin.Context) {
	r, res := h.Service.Get(c.Request.Context(), c.Param("id"))
	if !res.Success {
		c.JSON(statusFor(res.Err), res)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": r})
}

// UpdateReservation applies a partial edit from the admin UI.
func (h *ReservationHandler) UpdateReservation(c *gin.Context) {
	logger := getLogger(c)

	var fields models.ReservationUpdate
	if err := c.ShouldBindJSON(&fields); err != nil {
		logger.Warn("Invalid update payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, reservation.Result{Success: false, Message: "Invalid request: " + err.Error()})
		return
	}

	res := h.Service.Update(c.Request.Context(), c.Param("id"), fields)
	if !res.Success {
		c.JSON(statusFor(res.Err), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DeleteReservation removes a reservation.
func (h *ReservationHandler) DeleteReservation(c *gin.Context) {
	if !h.Service.Delete(c.Request.Context(), c.Param("id")) {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to delete reservation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// statusFor maps a store client failure to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, reservation.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, reservation.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
