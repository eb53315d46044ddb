package routes

import (
	"time"

	"github.com/atefhejazi1/job-kit-sub001/internal/api/handlers"
	"github.com/atefhejazi1/job-kit-sub001/internal/api/middleware"
	"github.com/atefhejazi1/job-kit-sub001/pkg/security/auth"
	"github.com/gin-gonic/gin"
)

// NotificationRoutes manages notification endpoint routes
type NotificationRoutes struct {
	handler     *handlers.NotificationHandler
	authOpts    middleware.AuthOptions
	rateLimiter auth.RateLimiter
	ratePerMin  int64
}

// NewNotificationRoutes creates a new notification routes handler
func NewNotificationRoutes(handler *handlers.NotificationHandler, authOpts middleware.AuthOptions, rateLimiter auth.RateLimiter, ratePerMin int64) *NotificationRoutes {
	if ratePerMin <= 0 {
		ratePerMin = 120
	}
	return &NotificationRoutes{
		handler:     handler,
		authOpts:    authOpts,
		rateLimiter: rateLimiter,
		ratePerMin:  ratePerMin,
	}
}

// RegisterRoutes registers notification routes with the provided router
func (r *NotificationRoutes) RegisterRoutes(router *gin.Engine) {
	authMiddleware := middleware.NewAuthMiddleware(r.authOpts)
	rateLimit := middleware.RateLimitMiddleware(r.rateLimiter.WithLimit(r.ratePerMin, time.Minute))

	notificationRoutes := router.Group("/api/notifications")
	notificationRoutes.Use(authMiddleware)
	notificationRoutes.Use(rateLimit)
	{
		notificationRoutes.GET("", r.handler.GetAll)
		notificationRoutes.GET("/count", r.handler.CountUnread)

		notificationRoutes.PUT("/:id/read", r.handler.MarkAsRead)
		notificationRoutes.PUT("/read-all", r.handler.MarkAllAsRead)

		notificationRoutes.DELETE("/:id", r.handler.Delete)
		notificationRoutes.DELETE("", r.handler.ClearAll)

		// Service-side creation endpoints; guarded by role.
		notificationRoutes.POST("", middleware.RequireRoles("admin"), r.handler.Create)
		notificationRoutes.POST("/announcements", middleware.RequireRoles("admin"), r.handler.Announce)
	}

	// The WebSocket endpoint authenticates via query parameter inside the
	// handler, so it bypasses the header-based auth middleware.
	wsRoute := router.Group("/api/notifications")
	wsRoute.GET("/ws", r.handler.WebSocketHandler)
}
