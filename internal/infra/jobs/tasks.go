package jobs

import (
	"time"

	"github.com/hibiken/asynq"
)

// TypeWebhookDeliver is the task type of every webhook queue message.
// The queue a task sits on decides which event variant its payload refers to.
const TypeWebhookDeliver = "webhook:deliver"

// DefaultTaskTimeout bounds one consumer run when none is configured.
const DefaultTaskTimeout = 2 * time.Minute

// NewDeliveryTask wraps a JSON message body in a task.
func NewDeliveryTask(body []byte) *asynq.Task {
	return asynq.NewTask(TypeWebhookDeliver, body)
}

// deliveryOptions routes a task to its queue. Retries are disabled because the retry
// sweep, not the broker, decides when an event is attempted again.
func deliveryOptions(queue string, timeout time.Duration) []asynq.Option {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	return []asynq.Option{
		asynq.Queue(queue),
		asynq.MaxRetry(0),
		asynq.Timeout(timeout),
	}
}
