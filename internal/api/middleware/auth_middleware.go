package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atefhejazi1/job-kit-sub001/pkg/logger"
	"github.com/atefhejazi1/job-kit-sub001/pkg/security/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.NewLogger("info")

const (
	bearerSchema = "Bearer "
	// legacyUserHeader carries a raw user id for pre-token clients. Only
	// honored when AuthOptions.AllowLegacyHeader is set.
	legacyUserHeader = "X-User-ID"
)

// AuthOptions configures the auth middleware
type AuthOptions struct {
	JWTSecret string
	// AllowLegacyHeader accepts X-User-ID when no bearer token is present.
	// Intended for internal deployments behind a trusted gateway only.
	AllowLegacyHeader bool
}

// NewAuthMiddleware creates a new auth middleware. It resolves the caller's
// identity from the bearer token, or, when enabled, from the legacy header.
func NewAuthMiddleware(opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if opts.AllowLegacyHeader {
				if userID, err := uuid.Parse(c.GetHeader(legacyUserHeader)); err == nil && userID != uuid.Nil {
					c.Set("user_id", userID)
					c.Next()
					return
				}
			}
			log.Error("Missing authorization header")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, bearerSchema) {
			log.Error("Invalid authorization header format")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		tokenString := authHeader[len(bearerSchema):]

		claims, err := auth.ValidateToken(tokenString, opts.JWTSecret)
		if err != nil {
			log.Error("Token validation failed", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("roles", claims.Roles)
		c.Set("token", tokenString)

		c.Next()
	}
}

// RateLimitMiddleware creates a middleware for rate limiting using Redis.
// The window key is per user when authenticated, per client IP otherwise.
func RateLimitMiddleware(limiter auth.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if userID, ok := GetUserID(c); ok {
			key = userID.String()
		}

		allowed, remaining, resetTime, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// Redis being down should not take the API with it.
			log.Error("Rate limiter error", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", resetTime.String())

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":    "rate limit exceeded",
				"reset_in": time.Until(resetTime).String(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUserID retrieves the authenticated user's ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, false
	}
	id, ok := userID.(uuid.UUID)
	return id, ok
}

// RequireRoles middleware checks if user has all required roles
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRolesVal, exists := c.Get("roles")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
			c.Abort()
			return
		}

		userRoles, ok := userRolesVal.([]string)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid roles format in token"})
			c.Abort()
			return
		}

		userRolesMap := make(map[string]struct{})
		for _, role := range userRoles {
			userRolesMap[role] = struct{}{}
		}

		for _, requiredRole := range roles {
			if _, found := userRolesMap[requiredRole]; !found {
				c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
				c.Abort()
				return
			}
		}

		c.Next()
	}
}
