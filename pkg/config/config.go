package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Redis         RedisConfig        `mapstructure:"redis"`
	Auth          AuthConfig         `mapstructure:"auth"`
	CORS          CORSConfig         `mapstructure:"cors"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Notifications NotificationConfig `mapstructure:"notifications"`
}

type ServerConfig struct {
	Port    int           `mapstructure:"port"`
	Mode    string        `mapstructure:"mode"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret      string `mapstructure:"jwt_secret"`
	JWTExpiryHours int    `mapstructure:"jwt_expiry_hours"`
	JWTIssuer      string `mapstructure:"jwt_issuer"`
	// LegacyUserHeader enables the X-User-ID fallback for pre-JWT clients.
	LegacyUserHeader bool `mapstructure:"legacy_user_header"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type NotificationConfig struct {
	// SubscriberBuffer is the per-connection push channel capacity.
	SubscriberBuffer int `mapstructure:"subscriber_buffer"`
	// DefaultPageSize / MaxPageSize bound list pagination.
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
	// RateLimitPerMinute gates the notification endpoints.
	RateLimitPerMinute int64 `mapstructure:"rate_limit_per_minute"`
}

func LoadConfig(configPath string) (*Config, error) {
	var config Config

	// If CONFIG_FILE environment variable is set, use it
	if envConfigFile := os.Getenv("CONFIG_FILE"); envConfigFile != "" {
		configPath = envConfigFile
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		dir := filepath.Dir(configPath)
		file := filepath.Base(configPath)
		name := strings.TrimSuffix(file, filepath.Ext(file))

		v.AddConfigPath(dir)
		v.SetConfigName(name)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./pkg/config")
		v.SetConfigName("config")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; defaults plus env cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envVars := map[string]string{
		"server.port":                      "SERVER_PORT",
		"server.mode":                      "SERVER_MODE",
		"server.timeout":                   "SERVER_TIMEOUT",
		"database.host":                    "DB_HOST",
		"database.port":                    "DB_PORT",
		"database.user":                    "DB_USER",
		"database.password":                "DB_PASSWORD",
		"database.name":                    "DB_NAME",
		"database.sslmode":                 "DB_SSLMODE",
		"redis.host":                       "REDIS_HOST",
		"redis.port":                       "REDIS_PORT",
		"redis.password":                   "REDIS_PASSWORD",
		"redis.db":                         "REDIS_DB",
		"auth.jwt_secret":                  "JWT_SECRET",
		"auth.jwt_issuer":                  "JWT_ISSUER",
		"auth.jwt_expiry_hours":            "JWT_EXPIRY_HOURS",
		"logging.level":                    "LOG_LEVEL",
		"logging.format":                   "LOG_FORMAT",
		"notifications.subscriber_buffer":  "NOTIFICATIONS_SUBSCRIBER_BUFFER",
		"notifications.default_page_size":  "NOTIFICATIONS_DEFAULT_PAGE_SIZE",
	}

	for configKey, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			switch envVar {
			case "SERVER_PORT", "DB_PORT", "REDIS_PORT", "REDIS_DB",
				"JWT_EXPIRY_HOURS", "NOTIFICATIONS_SUBSCRIBER_BUFFER",
				"NOTIFICATIONS_DEFAULT_PAGE_SIZE":
				if intVal, err := strconv.Atoi(value); err == nil {
					v.Set(configKey, intVal)
				}
			case "SERVER_TIMEOUT":
				if d, err := time.ParseDuration(value); err == nil {
					v.Set(configKey, d)
				}
			default:
				v.Set(configKey, value)
			}
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required")
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("auth.jwt_expiry_hours", 24)
	v.SetDefault("auth.jwt_issuer", "job-kit")
	v.SetDefault("auth.legacy_user_header", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("notifications.subscriber_buffer", 16)
	v.SetDefault("notifications.default_page_size", 20)
	v.SetDefault("notifications.max_page_size", 100)
	v.SetDefault("notifications.rate_limit_per_minute", 120)
}
