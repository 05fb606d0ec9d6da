package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Environment constants
const (
	EnvProduction = "production"
)

// Retention policies accepted by WEBHOOK_RETENTION_POLICY.
const (
	RetentionPolicyAll     = "all"
	RetentionPolicySettled = "settled"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string
	Env   string
	Debug bool
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodySize     int64
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig holds Redis configuration. It backs both the queue broker and the queue registry.
type RedisConfig struct {
	Host          string
	Port          int
	Password      string
	DB            int
	PoolSize      int
	MinIdleConns  int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxRetries    int
	MinRetryDelay time.Duration
	MaxRetryDelay time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level          string
	Format         string
	SkipHealthLogs bool
}

// AuthConfig holds bearer token settings for the vendor API.
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled         bool
	RequestsPerSec  float64
	Burst           int
	CleanupInterval time.Duration
}

// WebhookConfig holds delivery, sweep and retention settings.
type WebhookConfig struct {
	// MaxSubscriptions is the per-vendor subscription cap.
	MaxSubscriptions int

	// RetryDelay is how long after its last trial an event becomes due for the sweep.
	RetryDelay time.Duration

	// Retention is how long event rows are kept after their last trial.
	Retention       time.Duration
	RetentionPolicy string
	RetentionDryRun bool

	// HTTPTimeout bounds each outbound callback.
	HTTPTimeout time.Duration

	// TaskTimeout bounds one consumer run for a single message.
	TaskTimeout time.Duration

	SweepSchedule     string
	RetentionSchedule string
	SweepConcurrency  int

	// AllowPrivateURLs permits callbacks to loopback and private networks (local development).
	AllowPrivateURLs bool

	UserAgent string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:  getEnv("APP_NAME", "refundly-webhooks"),
			Env:   getEnv("APP_ENV", "development"),
			Debug: getEnvBool("APP_DEBUG", false),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodySize:     getEnvInt64("SERVER_MAX_BODY_SIZE", 1<<20),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "refundly"),
			Password:        getEnv("DB_PASSWORD", "secret"),
			Name:            getEnv("DB_NAME", "refundly"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Host:          getEnv("REDIS_HOST", "localhost"),
			Port:          getEnvInt("REDIS_PORT", 6379),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvInt("REDIS_DB", 0),
			PoolSize:      getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns:  getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:   getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:   getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:  getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			MaxRetries:    getEnvInt("REDIS_MAX_RETRIES", 3),
			MinRetryDelay: getEnvDuration("REDIS_MIN_RETRY_DELAY", 100*time.Millisecond),
			MaxRetryDelay: getEnvDuration("REDIS_MAX_RETRY_DELAY", 3*time.Second),
		},
		Log: LogConfig{
			Level:          getEnv("LOG_LEVEL", "info"),
			Format:         getEnv("LOG_FORMAT", "json"),
			SkipHealthLogs: getEnvBool("LOG_SKIP_HEALTH", true),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			JWTIssuer: getEnv("AUTH_JWT_ISSUER", "refundly-webhooks"),
			TokenTTL:  getEnvDuration("AUTH_TOKEN_TTL", 24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerSec:  getEnvFloat("RATE_LIMIT_RPS", 20),
			Burst:           getEnvInt("RATE_LIMIT_BURST", 40),
			CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", time.Minute),
		},
		Webhook: WebhookConfig{
			MaxSubscriptions:  getEnvInt("WEBHOOK_MAX_SUBSCRIPTIONS", 2),
			RetryDelay:        getEnvDuration("WEBHOOK_RETRY_DELAY", 30*time.Minute),
			Retention:         getEnvDuration("WEBHOOK_RETENTION", 60*24*time.Hour),
			RetentionPolicy:   getEnv("WEBHOOK_RETENTION_POLICY", RetentionPolicyAll),
			RetentionDryRun:   getEnvBool("WEBHOOK_RETENTION_DRY_RUN", false),
			HTTPTimeout:       getEnvDuration("WEBHOOK_HTTP_TIMEOUT", 30*time.Second),
			TaskTimeout:       getEnvDuration("WEBHOOK_TASK_TIMEOUT", 2*time.Minute),
			SweepSchedule:     getEnv("WEBHOOK_SWEEP_SCHEDULE", "*/5 * * * *"),
			RetentionSchedule: getEnv("WEBHOOK_RETENTION_SCHEDULE", "0 3 * * *"),
			SweepConcurrency:  getEnvInt("WEBHOOK_SWEEP_CONCURRENCY", 8),
			AllowPrivateURLs:  getEnvBool("WEBHOOK_ALLOW_PRIVATE_URLS", false),
			UserAgent:         getEnv("WEBHOOK_USER_AGENT", "refundly-webhooks/1.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.validateBasic(); err != nil {
		return err
	}
	if c.App.Env == EnvProduction {
		return c.validateProduction()
	}
	return nil
}

func (c *Config) validateBasic() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if err := c.validateLog(); err != nil {
		return err
	}
	return c.validateWebhook()
}

func (c *Config) validateLog() error {
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %s (must be json or text)", c.Log.Format)
	}
	return nil
}

func (c *Config) validateWebhook() error {
	w := c.Webhook
	if w.MaxSubscriptions < 1 {
		return fmt.Errorf("WEBHOOK_MAX_SUBSCRIPTIONS must be positive, got %d", w.MaxSubscriptions)
	}
	if w.RetryDelay <= 0 {
		return fmt.Errorf("WEBHOOK_RETRY_DELAY must be positive")
	}
	if w.Retention <= w.RetryDelay {
		return fmt.Errorf("WEBHOOK_RETENTION (%s) must exceed WEBHOOK_RETRY_DELAY (%s)", w.Retention, w.RetryDelay)
	}
	if w.RetentionPolicy != RetentionPolicyAll && w.RetentionPolicy != RetentionPolicySettled {
		return fmt.Errorf("WEBHOOK_RETENTION_POLICY must be %q or %q, got %q",
			RetentionPolicyAll, RetentionPolicySettled, w.RetentionPolicy)
	}
	if w.HTTPTimeout <= 0 || w.HTTPTimeout > 5*time.Minute {
		return fmt.Errorf("WEBHOOK_HTTP_TIMEOUT must be between 0 and 5m, got %s", w.HTTPTimeout)
	}
	if w.TaskTimeout <= w.HTTPTimeout {
		return fmt.Errorf("WEBHOOK_TASK_TIMEOUT must exceed WEBHOOK_HTTP_TIMEOUT")
	}
	if w.SweepConcurrency < 1 {
		return fmt.Errorf("WEBHOOK_SWEEP_CONCURRENCY must be positive, got %d", w.SweepConcurrency)
	}
	if err := ValidateSchedule(w.SweepSchedule); err != nil {
		return fmt.Errorf("WEBHOOK_SWEEP_SCHEDULE: %w", err)
	}
	if err := ValidateSchedule(w.RetentionSchedule); err != nil {
		return fmt.Errorf("WEBHOOK_RETENTION_SCHEDULE: %w", err)
	}
	return nil
}

func (c *Config) validateProduction() error {
	if len(c.Auth.JWTSecret) < 64 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 64 characters in production")
	}
	if c.Database.SSLMode == "disable" {
		return fmt.Errorf("database SSL must be enabled in production (use 'require' or 'verify-full')")
	}
	if c.Redis.Password == "" {
		return fmt.Errorf("redis password must be set in production")
	}
	if !c.RateLimit.Enabled {
		return fmt.Errorf("rate limiting must be enabled in production")
	}
	if c.Webhook.AllowPrivateURLs {
		return fmt.Errorf("WEBHOOK_ALLOW_PRIVATE_URLS must be false in production")
	}
	if c.App.Debug {
		return fmt.Errorf("debug mode must be disabled in production")
	}
	return nil
}

// ScheduleParser parses the five-field cron expressions used for background jobs.
var ScheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule reports whether expr is a parseable cron expression.
func ValidateSchedule(expr string) error {
	if expr == "" {
		return fmt.Errorf("cron expression is required")
	}
	if _, err := ScheduleParser.Parse(expr); err != nil {
		return fmt.Errorf("cannot parse cron expression %q: %w", expr, err)
	}
	return nil
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Addr returns the Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the HTTP server address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction returns true if the application is in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
