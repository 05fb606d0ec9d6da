package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refundly/webhooks/internal/config"
	"github.com/refundly/webhooks/pkg/logger"
)

// memorySet fakes the Redis set commands used by QueueRegistry.
type memorySet struct {
	members map[string]map[string]bool
	err     error
}

func newMemorySet() *memorySet {
	return &memorySet{members: make(map[string]map[string]bool)}
}

func (m *memorySet) SAdd(_ context.Context, key string, members ...any) *redis.IntCmd {
	if m.err != nil {
		return redis.NewIntResult(0, m.err)
	}
	if m.members[key] == nil {
		m.members[key] = make(map[string]bool)
	}
	var added int64
	for _, v := range members {
		s := v.(string)
		if !m.members[key][s] {
			m.members[key][s] = true
			added++
		}
	}
	return redis.NewIntResult(added, nil)
}

func (m *memorySet) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	if m.err != nil {
		return redis.NewStringSliceResult(nil, m.err)
	}
	out := make([]string, 0, len(m.members[key]))
	for s := range m.members[key] {
		out = append(out, s)
	}
	return redis.NewStringSliceResult(out, nil)
}

func (m *memorySet) SRem(_ context.Context, key string, members ...any) *redis.IntCmd {
	var removed int64
	for _, v := range members {
		s := v.(string)
		if m.members[key][s] {
			delete(m.members[key], s)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func TestQueueRegistry(t *testing.T) {
	ctx := context.Background()
	reg := NewQueueRegistry(newMemorySet(), logger.NewNop())

	added, err := reg.Add(ctx, "webhook-vendor-2")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = reg.Add(ctx, "webhook-vendor-2")
	require.NoError(t, err)
	assert.False(t, added, "second add is a no-op")

	_, err = reg.Add(ctx, "refund-webhook-vendor")
	require.NoError(t, err)

	names, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"refund-webhook-vendor", "webhook-vendor-2"}, names)

	require.NoError(t, reg.Remove(ctx, "webhook-vendor-2"))
	names, err = reg.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"refund-webhook-vendor"}, names)

	_, err = reg.Add(ctx, "")
	assert.Error(t, err)
}

func TestQueueRegistry_PropagatesErrors(t *testing.T) {
	set := newMemorySet()
	set.err = errors.New("connection refused")
	reg := NewQueueRegistry(set, logger.NewNop())

	_, err := reg.Add(context.Background(), "q")
	assert.ErrorContains(t, err, "connection refused")

	_, err = reg.List(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestRetryBackoff(t *testing.T) {
	cfg := &config.RedisConfig{MinRetryDelay: 100 * time.Millisecond, MaxRetryDelay: time.Second}
	assert.Equal(t, 100*time.Millisecond, retryBackoff(cfg, 0))
	assert.Equal(t, 400*time.Millisecond, retryBackoff(cfg, 2))
	assert.Equal(t, time.Second, retryBackoff(cfg, 5))
}
