package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/refundly/webhooks/internal/metrics"
	"github.com/refundly/webhooks/pkg/logger"
)

// server is the subset of asynq.Server used by the pool.
type server interface {
	Start(handler asynq.Handler) error
	Shutdown()
}

// ConsumerConfig holds the configuration for queue consumers.
type ConsumerConfig struct {
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ShutdownTimeout time.Duration
}

// ErrPoolStopped is returned when registering on a pool that was stopped.
var ErrPoolStopped = errors.New("consumer pool stopped")

// ConsumerPool runs one single-worker asynq server per queue. Messages on a queue are
// handled one at a time, while different queues run concurrently.
type ConsumerPool struct {
	mu        sync.Mutex
	servers   map[string]server
	stopped   bool
	newServer func(queue string) server
	logger    *logger.Logger
}

// NewConsumerPool creates an empty pool. Consumers are added with Register.
func NewConsumerPool(cfg ConsumerConfig, log *logger.Logger) *ConsumerPool {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	p := newConsumerPool(nil, log)
	p.newServer = func(queue string) server {
		return asynq.NewServer(redisOpt, asynq.Config{
			Concurrency:     1,
			Queues:          map[string]int{queue: 1},
			Logger:          asynqLogger{log: p.logger.With("queue", queue)},
			LogLevel:        asynq.WarnLevel,
			ShutdownTimeout: shutdownTimeout,
		})
	}
	return p
}

func newConsumerPool(newServer func(queue string) server, log *logger.Logger) *ConsumerPool {
	return &ConsumerPool{
		servers:   make(map[string]server),
		newServer: newServer,
		logger:    log.With("component", "consumer_pool"),
	}
}

// Register starts a consumer for queue unless one is already running. It is safe to call
// repeatedly and from concurrent goroutines.
func (p *ConsumerPool) Register(queue string, handle func(ctx context.Context, body []byte)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}
	if _, ok := p.servers[queue]; ok {
		return nil
	}

	srv := p.newServer(queue)
	if err := srv.Start(p.wrap(queue, handle)); err != nil {
		return fmt.Errorf("start consumer for %s: %w", queue, err)
	}
	p.servers[queue] = srv
	metrics.ConsumersActive.Inc()

	p.logger.Info("consumer started", "queue", queue)
	return nil
}

// wrap turns a body handler into an asynq handler that always acknowledges.
// Returning nil removes the task; with MaxRetry(0) a non-nil result would only archive it.
func (p *ConsumerPool) wrap(queue string, handle func(ctx context.Context, body []byte)) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("consumer recovered from panic",
					"queue", queue,
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()),
				)
			}
		}()

		if t.Type() != TypeWebhookDeliver {
			p.logger.Warn("dropping task of unknown type", "queue", queue, "type", t.Type())
			return nil
		}

		handle(ctx, t.Payload())
		return nil
	}
}

// Queues returns the queues with a running consumer, sorted.
func (p *ConsumerPool) Queues() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.servers))
	for q := range p.servers {
		names = append(names, q)
	}
	sort.Strings(names)
	return names
}

// Stop shuts every consumer down, waiting for in-flight messages.
func (p *ConsumerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	servers := p.servers
	p.servers = make(map[string]server)
	p.mu.Unlock()

	p.logger.Info("stopping consumers", "count", len(servers))

	var wg sync.WaitGroup
	for queue, srv := range servers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			srv.Shutdown()
			metrics.ConsumersActive.Dec()
			p.logger.Debug("consumer stopped", "queue", queue)
		}()
	}
	wg.Wait()
}
