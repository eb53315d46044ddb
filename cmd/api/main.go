package main

import (
	"context"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atefhejazi1/job-kit-sub001/internal/api/handlers"
	"github.com/atefhejazi1/job-kit-sub001/internal/api/middleware"
	"github.com/atefhejazi1/job-kit-sub001/internal/api/routes"
	"github.com/atefhejazi1/job-kit-sub001/internal/infrastructure/cache"
	"github.com/atefhejazi1/job-kit-sub001/internal/infrastructure/persistence/postgres/connection"
	"github.com/atefhejazi1/job-kit-sub001/internal/infrastructure/persistence/postgres/migrations"
	"github.com/atefhejazi1/job-kit-sub001/pkg/config"
	"github.com/atefhejazi1/job-kit-sub001/pkg/logger"
	"github.com/atefhejazi1/job-kit-sub001/pkg/security/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RequestLoggerMiddleware logs all incoming HTTP requests
func RequestLoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.Info("Request completed",
			zap.String("path", path),
			zap.String("method", method),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.NewLogger(cfg.Logging.Level)
	defer log.Sync()

	log.Info("Configuration loaded successfully")
	log.Info("Server mode: " + cfg.Server.Mode)

	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	gin.DefaultWriter = os.Stdout

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLoggerMiddleware(log))
	router.Use(middleware.NewMetricsMiddleware().CollectMetrics())

	corsConfig := cors.Config{
		AllowMethods: cfg.CORS.AllowedMethods,
		AllowHeaders: append(cfg.CORS.AllowedHeaders,
			"Accept-Encoding",
			"Content-Type",
			"Authorization",
			"X-User-ID",
		),
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
		},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Connect to database
	db, err := connection.NewDatabase(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if err := migrations.AutoMigrate(db, log.Logger); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize Redis
	redisConfig := cache.NewConfigFromEnv(cfg)
	redisClient, err := cache.NewRedisClient(redisConfig)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Initialize rate limiter with Redis client
	rateLimiter := auth.NewRedisRateLimiter(redisClient.GetClient(), time.Minute, cfg.Notifications.RateLimitPerMinute)

	// Initialize notification system
	notificationSystem, err := SetupNotificationSystem(
		db,
		log,
		cfg.Notifications.SubscriberBuffer,
		cfg.Server.Mode != "production",
	)
	if err != nil {
		log.Fatal("Failed to initialize notification system", zap.Error(err))
	}
	defer notificationSystem.Shutdown()

	// Initialize notification handler and routes
	notificationHandler := handlers.NewNotificationHandler(
		notificationSystem.Service,
		notificationSystem.Announcer,
		log,
		handlers.HandlerConfig{
			JWTSecret:       cfg.Auth.JWTSecret,
			DefaultPageSize: cfg.Notifications.DefaultPageSize,
			MaxPageSize:     cfg.Notifications.MaxPageSize,
		},
	)

	authOpts := middleware.AuthOptions{
		JWTSecret:         cfg.Auth.JWTSecret,
		AllowLegacyHeader: cfg.Auth.LegacyUserHeader,
	}
	notificationRoutes := routes.NewNotificationRoutes(
		notificationHandler,
		authOpts,
		rateLimiter,
		cfg.Notifications.RateLimitPerMinute,
	)
	notificationRoutes.RegisterRoutes(router)
	log.Info("Registered notification routes at /api/notifications")

	// Health check routes
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
		})
	})
	router.GET("/health/ready", func(c *gin.Context) {
		sqlDB, err := db.DB.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"component": "database",
				"error":     err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
		})
	})
	router.GET("/health/cache", func(c *gin.Context) {
		if err := redisClient.HealthCheck(c); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"component": "cache",
				"error":     err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"component": "cache",
		})
	})
	log.Info("Registered health check routes at /health")

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info(fmt.Sprintf("Server starting on port %d", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Info("Shutting down server...")
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited properly")
}
