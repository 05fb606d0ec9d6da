package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/domain/vendor"
	"github.com/refundly/webhooks/pkg/domain/webhook"
	"github.com/refundly/webhooks/pkg/logger"
)

// QueueRegistrar declares delivery queues and attaches their consumers.
// Every queue gets exactly one consumer for the life of the process.
type QueueRegistrar struct {
	broker    Broker
	consumers ConsumerRegistry
	delivery  *DeliveryService
	logger    *logger.Logger

	mu         sync.Mutex
	registered map[string]struct{}
}

// NewQueueRegistrar creates a new QueueRegistrar.
func NewQueueRegistrar(broker Broker, consumers ConsumerRegistry, delivery *DeliveryService, log *logger.Logger) *QueueRegistrar {
	return &QueueRegistrar{
		broker:     broker,
		consumers:  consumers,
		delivery:   delivery,
		logger:     log.With("service", "queue_registrar"),
		registered: make(map[string]struct{}),
	}
}

// RegisterVendor declares the vendor's queue and starts its consumer.
func (r *QueueRegistrar) RegisterVendor(ctx context.Context, vendorID shared.ID) error {
	if vendorID.IsZero() {
		return fmt.Errorf("%w: vendor id is required", shared.ErrValidation)
	}
	return r.register(ctx, webhook.VendorQueue(vendorID), r.delivery.HandleVendorMessage)
}

// RegisterPartner declares the shared partner queue and starts its consumer.
func (r *QueueRegistrar) RegisterPartner(ctx context.Context) error {
	return r.register(ctx, webhook.PartnerQueue, r.delivery.HandlePartnerMessage)
}

func (r *QueueRegistrar) register(ctx context.Context, queue string, handle func(context.Context, []byte)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.registered[queue]; ok {
		return nil
	}

	if err := r.broker.DeclareQueue(ctx, queue); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := r.consumers.Register(queue, handle); err != nil {
		return fmt.Errorf("start consumer for %s: %w", queue, err)
	}

	r.registered[queue] = struct{}{}
	r.logger.Info("queue registered", "queue", queue)
	return nil
}

// Restore registers the partner queue and every vendor queue known to the database
// or declared by an earlier run. Individual vendor failures are logged and skipped.
func (r *QueueRegistrar) Restore(ctx context.Context, vendors vendor.Repository, declared QueueLister) (int, error) {
	if err := r.RegisterPartner(ctx); err != nil {
		return 0, err
	}

	ids, err := vendors.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list vendors: %w", err)
	}

	seen := make(map[shared.ID]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}

	if declared != nil {
		names, err := declared.List(ctx)
		if err != nil {
			r.logger.Warn("failed to list declared queues", "error", err)
		}
		for _, name := range names {
			if id, ok := webhook.ParseVendorQueue(name); ok {
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					ids = append(ids, id)
				}
			}
		}
	}

	restored := 0
	for _, id := range ids {
		if err := r.RegisterVendor(ctx, id); err != nil {
			r.logger.Error("failed to restore vendor queue", "vendor_id", id.Int64(), "error", err)
			continue
		}
		restored++
	}

	r.logger.Info("vendor queues restored", "count", restored)
	return restored, nil
}
