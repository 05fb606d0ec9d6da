package app

import (
	"context"
	"fmt"

	"github.com/refundly/webhooks/internal/metrics"
	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/domain/webhook"
	"github.com/refundly/webhooks/pkg/logger"
)

// vendorQueueRegistrar makes sure a vendor queue exists and is consumed before publishing to it.
type vendorQueueRegistrar interface {
	RegisterVendor(ctx context.Context, vendorID shared.ID) error
}

// EventProducer records delivery obligations for a refund and publishes them.
// It returns once the rows exist and the broker accepted the messages.
type EventProducer struct {
	subscriptions webhook.SubscriptionRepository
	events        webhook.EventRepository
	refundEvents  webhook.RefundEventRepository
	broker        Broker
	queues        vendorQueueRegistrar
	logger        *logger.Logger
}

// NewEventProducer creates a new EventProducer.
func NewEventProducer(
	subscriptions webhook.SubscriptionRepository,
	events webhook.EventRepository,
	refundEvents webhook.RefundEventRepository,
	broker Broker,
	queues vendorQueueRegistrar,
	log *logger.Logger,
) *EventProducer {
	return &EventProducer{
		subscriptions: subscriptions,
		events:        events,
		refundEvents:  refundEvents,
		broker:        broker,
		queues:        queues,
		logger:        log.With("service", "event_producer"),
	}
}

// NotifyVendorSubscribers creates one event per enabled subscription of the vendor and
// publishes their ids in a single call. A failed insert is logged and skipped.
// Returns the number of events published.
func (p *EventProducer) NotifyVendorSubscribers(ctx context.Context, refundID, vendorID shared.ID) (int, error) {
	subs, err := p.subscriptions.ListByVendor(ctx, vendorID)
	if err != nil {
		return 0, fmt.Errorf("list subscriptions: %w", err)
	}

	ids := make([]shared.ID, 0, len(subs))
	for _, sub := range subs {
		if !sub.Enabled() {
			continue
		}
		event := webhook.NewEvent(refundID, sub.ID())
		if err := p.events.Create(ctx, event); err != nil {
			p.logger.Error("failed to create webhook event",
				"refund_id", refundID.Int64(),
				"subscription_id", sub.ID().Int64(),
				"error", err,
			)
			continue
		}
		ids = append(ids, event.ID)
	}

	if len(ids) == 0 {
		p.logger.Debug("no webhook events to publish", "refund_id", refundID.Int64(), "vendor_id", vendorID.Int64())
		return 0, nil
	}

	if err := p.queues.RegisterVendor(ctx, vendorID); err != nil {
		return 0, err
	}

	bodies, err := webhook.EncodeMessages(webhook.VariantVendor, ids)
	if err != nil {
		return 0, err
	}
	if err := p.broker.Publish(ctx, webhook.VendorQueue(vendorID), bodies...); err != nil {
		return 0, fmt.Errorf("publish vendor events: %w", err)
	}

	metrics.MessagesPublishedTotal.WithLabelValues(string(webhook.VariantVendor), "producer").Add(float64(len(ids)))
	p.logger.Info("vendor webhook events published",
		"refund_id", refundID.Int64(),
		"vendor_id", vendorID.Int64(),
		"count", len(ids),
	)
	return len(ids), nil
}

// NotifyExternalPartner creates the partner event for the refund and publishes it.
func (p *EventProducer) NotifyExternalPartner(ctx context.Context, refundID shared.ID) (shared.ID, error) {
	event := webhook.NewRefundEvent(refundID)
	if err := p.refundEvents.Create(ctx, event); err != nil {
		return 0, fmt.Errorf("create refund webhook event: %w", err)
	}

	bodies, err := webhook.EncodeMessages(webhook.VariantPartner, []shared.ID{event.ID})
	if err != nil {
		return 0, err
	}
	if err := p.broker.Publish(ctx, webhook.PartnerQueue, bodies...); err != nil {
		return 0, fmt.Errorf("publish partner event: %w", err)
	}

	metrics.MessagesPublishedTotal.WithLabelValues(string(webhook.VariantPartner), "producer").Inc()
	p.logger.Info("partner webhook event published", "refund_id", refundID.Int64(), "event_id", event.ID.Int64())
	return event.ID, nil
}
