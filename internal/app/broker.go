package app

import (
	"context"
)

// Broker publishes queue messages. Publish hands every body to the named queue;
// a queue must be declared before its first publish.
type Broker interface {
	DeclareQueue(ctx context.Context, queue string) error
	Publish(ctx context.Context, queue string, bodies ...[]byte) error
}

// ConsumerRegistry starts a consumer for a queue. Registering an already consumed queue is a no-op.
type ConsumerRegistry interface {
	Register(queue string, handle func(ctx context.Context, body []byte)) error
}

// QueueLister returns the queue names declared by earlier runs.
type QueueLister interface {
	List(ctx context.Context) ([]string, error)
}
