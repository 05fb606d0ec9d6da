package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/refundly/webhooks/pkg/logger"
)

// enqueuer is the subset of asynq.Client used by Broker.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// queueRecorder persists declared queue names so consumers can be restored after a restart.
type queueRecorder interface {
	Add(ctx context.Context, queue string) (bool, error)
}

// BrokerConfig contains configuration for the broker.
type BrokerConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TaskTimeout bounds a single consumer run.
	TaskTimeout time.Duration
}

// Broker publishes webhook messages onto durable asynq queues.
type Broker struct {
	client      enqueuer
	queues      queueRecorder
	taskTimeout time.Duration
	logger      *logger.Logger
}

// NewBroker creates a broker connected to Redis.
func NewBroker(cfg BrokerConfig, queues queueRecorder, log *logger.Logger) *Broker {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return newBroker(client, queues, cfg.TaskTimeout, log)
}

func newBroker(client enqueuer, queues queueRecorder, taskTimeout time.Duration, log *logger.Logger) *Broker {
	return &Broker{
		client:      client,
		queues:      queues,
		taskTimeout: taskTimeout,
		logger:      log.With("component", "broker"),
	}
}

// Close closes the client connection.
func (b *Broker) Close() error {
	return b.client.Close()
}

// DeclareQueue records a queue. asynq creates queues on first use, so declaring only
// makes the name durable for consumer restoration.
func (b *Broker) DeclareQueue(ctx context.Context, queue string) error {
	added, err := b.queues.Add(ctx, queue)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if added {
		b.logger.Info("queue declared", "queue", queue)
	}
	return nil
}

// Publish enqueues one task per body onto queue. Every body is attempted; the returned
// error joins the failures.
func (b *Broker) Publish(ctx context.Context, queue string, bodies ...[]byte) error {
	opts := deliveryOptions(queue, b.taskTimeout)

	var errs []error
	for _, body := range bodies {
		info, err := b.client.EnqueueContext(ctx, NewDeliveryTask(body), opts...)
		if err != nil {
			b.logger.Error("failed to enqueue webhook message",
				"queue", queue,
				"body", string(body),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("enqueue %s: %w", body, err))
			continue
		}
		b.logger.Debug("webhook message queued",
			"task_id", info.ID,
			"queue", queue,
			"body", string(body),
		)
	}
	return errors.Join(errs...)
}
