package routes

import (
	"net/http"
	"time"

	"reservo/config"
	"reservo/handlers"
	"reservo/middleware"
	"reservo/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterReservationRoutes registers the public booking form endpoint.
func RegisterReservationRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/reservations")
	{
		api.Use(middleware.RateLimitMiddleware(config.AppConfig.MaxRequestsPerMin))
		api.POST("", hb.CreateReservationHandler)
	}
}

// RegisterAdminRoutes sets up the admin auth, reservation and dashboard endpoints.
func RegisterAdminRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	adminGroup := r.Group("/api/admin")
	{
		adminGroup.POST("/login", middleware.RateLimitMiddleware(config.AppConfig.MaxRequestsPerMin), hb.LoginHandler)
		adminGroup.POST("/logout", hb.LogoutHandler)
		adminGroup.GET("/session", hb.SessionHandler)

		// The socket runs its own session checks so an expired viewer gets an
		// unauthenticated view instead of a failed upgrade.
		adminGroup.GET("/dashboard/ws", hb.DashboardStreamHandler)

		protected := adminGroup.Group("")
		protected.Use(middleware.AdminAuth(hb.Sessions, hb.FastPaths))
		protected.GET("/dashboard", hb.DashboardSnapshotHandler)
		protected.GET("/reservations", hb.ListReservationsHandler)
		protected.GET("/reservations/:id", hb.GetReservationHandler)
		protected.PATCH("/reservations/:id", hb.UpdateReservationHandler)
		protected.DELETE("/reservations/:id", hb.DeleteReservationHandler)
	}
}

// RegisterLegacyRoutes keeps the old update endpoint for existing clients.
func RegisterLegacyRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	legacy := r.Group("/api/legacy")
	{
		legacy.Use(middleware.AdminAuth(hb.Sessions, hb.FastPaths))
		legacy.POST("/reservations/update", hb.LegacyUpdateHandler)
		legacy.PUT("/reservations/update", hb.LegacyUpdateHandler)
	}
}

// RegisterWebhookRoutes registers the store trigger endpoint.
func RegisterWebhookRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.POST("/webhooks/reservations", hb.WebhookHandler)
}

// RegisterHealthRoute registers the health and metrics endpoints.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		status := utils.GetHealthStatus()
		code := http.StatusOK
		if !status.Healthy() {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "message": "Hi, I'm reservo"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	origins := config.AppConfig.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", handlers.WebhookSecretHeader},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.Metrics())

	RegisterReservationRoutes(r, hb)
	RegisterAdminRoutes(r, hb)
	RegisterLegacyRoutes(r, hb)
	RegisterWebhookRoutes(r, hb)
	RegisterHealthRoute(r)
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
