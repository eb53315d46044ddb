package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atefhejazi1/job-kit-sub001/pkg/config"
	"github.com/atefhejazi1/job-kit-sub001/pkg/logger"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var log = logger.NewLogger("info")

var (
	ErrCacheNotFound   = errors.New("cache: key not found")
	ErrCacheConnection = errors.New("cache: connection error")
	ErrInvalidConfig   = errors.New("cache: invalid configuration")
)

// Config holds the configuration for Redis client
type Config struct {
	Addr             string
	Password         string
	DB               int
	PoolSize         int
	MinIdleConns     int
	MaxRetries       int
	ConnTimeout      time.Duration
	OperationTimeout time.Duration
	KeyPrefix        string
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		PoolSize:         100,
		MinIdleConns:     10,
		MaxRetries:       3,
		ConnTimeout:      5 * time.Second,
		OperationTimeout: 2 * time.Second,
		KeyPrefix:        "jobkit:",
	}
}

// NewConfigFromEnv creates a Redis config from project configuration
func NewConfigFromEnv(cfg *config.Config) *Config {
	c := DefaultConfig()
	c.Addr = fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	c.Password = cfg.Redis.Password
	c.DB = cfg.Redis.DB
	if cfg.Server.Timeout > 0 {
		c.OperationTimeout = cfg.Server.Timeout
	}
	return c
}

// RedisClient wraps the Redis client with health tracking
type RedisClient struct {
	client    *redis.Client
	config    *Config
	closeOnce sync.Once
	health    int32 // 0 = healthy, 1 = unhealthy
}

// NewRedisClient creates a new Redis client with the provided configuration
func NewRedisClient(cfg *Config) (*RedisClient, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidConfig)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnTimeout)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r := &RedisClient{
		client: client,
		config: cfg,
	}

	go r.healthCheckLoop()

	return r, nil
}

// healthCheckLoop periodically checks Redis health
func (r *RedisClient) healthCheckLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), r.config.OperationTimeout)
		if err := r.HealthCheck(ctx); err != nil {
			atomic.StoreInt32(&r.health, 1)
			log.Error("Redis health check failed", zap.Error(err))
		} else {
			atomic.StoreInt32(&r.health, 0)
		}
		cancel()
	}
}

// IsHealthy returns whether Redis is currently healthy
func (r *RedisClient) IsHealthy() bool {
	return atomic.LoadInt32(&r.health) == 0
}

func (r *RedisClient) withContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok {
		return context.WithTimeout(ctx, r.config.OperationTimeout)
	}
	return ctx, func() {}
}

func (r *RedisClient) prefixKey(key string) string {
	return r.config.KeyPrefix + key
}

// Get retrieves a value from the cache
func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	if !r.IsHealthy() {
		return "", ErrCacheConnection
	}

	ctx, cancel := r.withContext(ctx)
	defer cancel()

	val, err := r.client.Get(ctx, r.prefixKey(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", fmt.Errorf("%w: %s", ErrCacheNotFound, key)
		}
		return "", fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return val, nil
}

// Set stores a value in the cache
func (r *RedisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if !r.IsHealthy() {
		return ErrCacheConnection
	}

	ctx, cancel := r.withContext(ctx)
	defer cancel()

	return r.client.Set(ctx, r.prefixKey(key), value, ttl).Err()
}

// Delete removes values from the cache
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if !r.IsHealthy() {
		return ErrCacheConnection
	}

	ctx, cancel := r.withContext(ctx)
	defer cancel()

	prefixedKeys := make([]string, len(keys))
	for i, key := range keys {
		prefixedKeys[i] = r.prefixKey(key)
	}
	return r.client.Del(ctx, prefixedKeys...).Err()
}

// HealthCheck checks if Redis is responding
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close properly closes the Redis client
func (r *RedisClient) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.client.Close()
	})
	return err
}

// GetClient returns the underlying Redis client
func (r *RedisClient) GetClient() *redis.Client {
	return r.client
}
