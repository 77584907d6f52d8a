// File: reservo/handlers/bundle.go
package handlers

import (
	"reservo/services/auth"

	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	Sessions  auth.SessionChecker
	FastPaths *auth.FastPaths

	// Public endpoints
	CreateReservationHandler gin.HandlerFunc
	WebhookHandler           gin.HandlerFunc

	// Admin auth endpoints
	LoginHandler   gin.HandlerFunc
	LogoutHandler  gin.HandlerFunc
	SessionHandler gin.HandlerFunc

	// Admin reservation endpoints
	ListReservationsHandler  gin.HandlerFunc
	GetReservationHandler    gin.HandlerFunc
	UpdateReservationHandler gin.HandlerFunc
	DeleteReservationHandler gin.HandlerFunc
	LegacyUpdateHandler      gin.HandlerFunc

	// Dashboard endpoints
	DashboardStreamHandler   gin.HandlerFunc
	DashboardSnapshotHandler gin.HandlerFunc
}
