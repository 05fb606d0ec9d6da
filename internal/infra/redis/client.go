package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/refundly/webhooks/internal/config"
	"github.com/refundly/webhooks/pkg/logger"
)

// Client wraps redis.Client with connection verification and logging.
type Client struct {
	client *redis.Client
	logger *logger.Logger
}

// Options converts the configuration into go-redis options.
func Options(cfg *config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:            cfg.Addr(),
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryDelay,
		MaxRetryBackoff: cfg.MaxRetryDelay,
	}
}

// New creates a Redis client and waits for it to answer a ping, backing off between attempts.
func New(cfg *config.RedisConfig, log *logger.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("redis config is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	client := redis.NewClient(Options(cfg))

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
		err := client.Ping(ctx).Err()
		cancel()

		if err == nil {
			log.Info("redis connected",
				"addr", cfg.Addr(),
				"pool_size", cfg.PoolSize,
			)
			return &Client{client: client, logger: log}, nil
		}

		lastErr = err
		if attempt < cfg.MaxRetries {
			backoff := retryBackoff(cfg, attempt)
			log.Warn("redis connection failed, retrying",
				"attempt", attempt+1,
				"max_retries", cfg.MaxRetries,
				"backoff", backoff,
				"error", err,
			)
			time.Sleep(backoff)
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

// retryBackoff doubles from MinRetryDelay and caps at MaxRetryDelay.
func retryBackoff(cfg *config.RedisConfig, attempt int) time.Duration {
	backoff := cfg.MinRetryDelay * time.Duration(1<<attempt)
	if backoff > cfg.MaxRetryDelay {
		backoff = cfg.MaxRetryDelay
	}
	return backoff
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	c.logger.Info("closing redis connection")
	return c.client.Close()
}

// Ping checks if Redis is available.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client returns the underlying redis.Client.
func (c *Client) Client() *redis.Client {
	return c.client
}
