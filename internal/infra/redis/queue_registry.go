package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/refundly/webhooks/pkg/logger"
)

// queuesKey is the set holding every declared webhook queue name.
const queuesKey = "webhooks:queues"

// setCommands is the subset of go-redis used by the registry.
type setCommands interface {
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	SRem(ctx context.Context, key string, members ...any) *redis.IntCmd
}

// QueueRegistry persists the names of declared queues.
type QueueRegistry struct {
	rdb    setCommands
	logger *logger.Logger
}

// NewQueueRegistry creates a registry backed by a Redis set.
func NewQueueRegistry(rdb setCommands, log *logger.Logger) *QueueRegistry {
	return &QueueRegistry{
		rdb:    rdb,
		logger: log.With("component", "queue_registry"),
	}
}

// Add records a queue name. It reports whether the name was new.
func (r *QueueRegistry) Add(ctx context.Context, queue string) (bool, error) {
	if queue == "" {
		return false, errors.New("queue name is required")
	}
	added, err := r.rdb.SAdd(ctx, queuesKey, queue).Result()
	if err != nil {
		return false, fmt.Errorf("redis sadd: %w", err)
	}
	if added > 0 {
		r.logger.Debug("queue recorded", "queue", queue)
	}
	return added > 0, nil
}

// List returns every recorded queue name, sorted.
func (r *QueueRegistry) List(ctx context.Context) ([]string, error) {
	names, err := r.rdb.SMembers(ctx, queuesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Remove forgets a queue name.
func (r *QueueRegistry) Remove(ctx context.Context, queue string) error {
	if err := r.rdb.SRem(ctx, queuesKey, queue).Err(); err != nil {
		return fmt.Errorf("redis srem: %w", err)
	}
	return nil
}
