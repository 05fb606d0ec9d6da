package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/refundly/webhooks/internal/infra/notification"
	"github.com/refundly/webhooks/internal/metrics"
	"github.com/refundly/webhooks/pkg/domain/refund"
	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/domain/webhook"
	"github.com/refundly/webhooks/pkg/logger"
)

// CallbackSender performs one outbound callback.
type CallbackSender interface {
	Send(ctx context.Context, r notification.Request) (*notification.SendResult, error)
}

type attemptRecorder interface {
	RecordAttempt(ctx context.Context, id shared.ID, success bool, at time.Time) error
}

// errTargetGone marks events whose subscription, refund or notification record disappeared.
// Such events still consume a trial so they end up exhausted instead of being swept forever.
var errTargetGone = errors.New("delivery target gone")

var errSubscriptionDisabled = errors.New("subscription disabled")

// DeliveryService consumes queue messages and performs signed delivery attempts.
// Handlers never return an error: every message is acknowledged once processed.
type DeliveryService struct {
	events        webhook.EventRepository
	refundEvents  webhook.RefundEventRepository
	subscriptions webhook.SubscriptionRepository
	refunds       refund.Repository
	sender        CallbackSender
	now           func() time.Time
	logger        *logger.Logger
}

// NewDeliveryService creates a new DeliveryService.
func NewDeliveryService(
	events webhook.EventRepository,
	refundEvents webhook.RefundEventRepository,
	subscriptions webhook.SubscriptionRepository,
	refunds refund.Repository,
	sender CallbackSender,
	log *logger.Logger,
) *DeliveryService {
	return &DeliveryService{
		events:        events,
		refundEvents:  refundEvents,
		subscriptions: subscriptions,
		refunds:       refunds,
		sender:        sender,
		now:           time.Now,
		logger:        log.With("service", "delivery"),
	}
}

// HandleVendorMessage processes one message from a vendor queue.
func (s *DeliveryService) HandleVendorMessage(ctx context.Context, body []byte) {
	variant := webhook.VariantVendor
	eventID, err := webhook.DecodeMessage(variant, body)
	if err != nil {
		s.malformed(variant, body, err)
		return
	}
	log := s.logger.With("variant", variant, "event_id", eventID.Int64())

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		s.loadFailed(log, variant, err)
		return
	}
	if !event.Eligible() {
		s.ineligible(log, variant, event.Attempt)
		return
	}

	target, details, err := s.resolveVendorTarget(ctx, event)
	switch {
	case errors.Is(err, errTargetGone):
		s.recordGone(ctx, log, variant, s.events, eventID, err)
		return
	case errors.Is(err, errSubscriptionDisabled):
		log.Info("subscription disabled, skipping", "subscription_id", event.SubscriptionID.Int64())
		metrics.DeliveriesTotal.WithLabelValues(string(variant), metrics.OutcomeIneligible).Inc()
		return
	case err != nil:
		s.loadFailed(log, variant, err)
		return
	}

	s.deliver(ctx, log, variant, s.events, eventID, target, details)
}

// HandlePartnerMessage processes one message from the partner queue.
func (s *DeliveryService) HandlePartnerMessage(ctx context.Context, body []byte) {
	variant := webhook.VariantPartner
	eventID, err := webhook.DecodeMessage(variant, body)
	if err != nil {
		s.malformed(variant, body, err)
		return
	}
	log := s.logger.With("variant", variant, "event_id", eventID.Int64())

	event, err := s.refundEvents.GetByID(ctx, eventID)
	if err != nil {
		s.loadFailed(log, variant, err)
		return
	}
	if !event.Eligible() {
		s.ineligible(log, variant, event.Attempt)
		return
	}

	details, err := s.loadRefund(ctx, event.RefundID)
	if err != nil {
		if errors.Is(err, errTargetGone) {
			s.recordGone(ctx, log, variant, s.refundEvents, eventID, err)
			return
		}
		s.loadFailed(log, variant, err)
		return
	}
	if !details.HasPartnerCallback() {
		s.recordGone(ctx, log, variant, s.refundEvents, eventID,
			fmt.Errorf("%w: refund %d has no notification url", errTargetGone, details.ID.Int64()))
		return
	}

	target := DeliveryTarget{
		URL:    details.Notification.WebhookURL,
		Secret: details.Notification.SecretKey,
		Build:  BuildPartnerPayload,
	}
	s.deliver(ctx, log, variant, s.refundEvents, eventID, target, details)
}

func (s *DeliveryService) resolveVendorTarget(ctx context.Context, event *webhook.Event) (DeliveryTarget, *refund.Details, error) {
	sub, err := s.subscriptions.GetByID(ctx, event.SubscriptionID)
	if err != nil {
		if shared.IsNotFound(err) {
			return DeliveryTarget{}, nil, fmt.Errorf("%w: subscription %d", errTargetGone, event.SubscriptionID.Int64())
		}
		return DeliveryTarget{}, nil, fmt.Errorf("load subscription: %w", err)
	}
	if !sub.Enabled() {
		return DeliveryTarget{}, nil, errSubscriptionDisabled
	}

	details, err := s.loadRefund(ctx, event.RefundID)
	if err != nil {
		return DeliveryTarget{}, nil, err
	}

	return DeliveryTarget{URL: sub.URL(), Secret: sub.Key(), Build: BuildVendorPayload}, details, nil
}

func (s *DeliveryService) loadRefund(ctx context.Context, refundID shared.ID) (*refund.Details, error) {
	details, err := s.refunds.GetDetails(ctx, refundID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, fmt.Errorf("%w: refund %d", errTargetGone, refundID.Int64())
		}
		return nil, fmt.Errorf("load refund: %w", err)
	}
	return details, nil
}

func (s *DeliveryService) deliver(
	ctx context.Context,
	log *logger.Logger,
	variant webhook.Variant,
	recorder attemptRecorder,
	eventID shared.ID,
	target DeliveryTarget,
	details *refund.Details,
) {
	body, err := json.Marshal(target.Build(eventID, details))
	if err != nil {
		log.Error("failed to marshal payload", "error", err)
		metrics.DeliveriesTotal.WithLabelValues(string(variant), metrics.OutcomeError).Inc()
		return
	}

	res, err := s.sender.Send(ctx, notification.Request{URL: target.URL, Secret: target.Secret, Body: body})
	if err != nil {
		res = &notification.SendResult{Error: err.Error()}
	}

	metrics.DeliveryDuration.WithLabelValues(string(variant)).Observe(res.Duration.Seconds())
	metrics.ResponseStatusTotal.WithLabelValues(string(variant), metrics.StatusClass(res.StatusCode)).Inc()

	if err := recorder.RecordAttempt(context.WithoutCancel(ctx), eventID, res.Success, s.now().UTC()); err != nil {
		log.Error("failed to record delivery attempt", "success", res.Success, "error", err)
		metrics.DeliveriesTotal.WithLabelValues(string(variant), metrics.OutcomeError).Inc()
		return
	}

	if res.Success {
		log.Info("webhook delivered", "status", res.StatusCode, "duration_ms", res.Duration.Milliseconds())
		metrics.DeliveriesTotal.WithLabelValues(string(variant), metrics.OutcomeDelivered).Inc()
		return
	}

	log.Warn("webhook delivery failed",
		"url", target.URL,
		"status", res.StatusCode,
		"response", res.Excerpt,
		"error", res.Error,
	)
	metrics.DeliveriesTotal.WithLabelValues(string(variant), metrics.OutcomeFailed).Inc()
}

func (s *DeliveryService) recordGone(
	ctx context.Context,
	log *logger.Logger,
	variant webhook.Variant,
	recorder attemptRecorder,
	eventID shared.ID,
	cause error,
) {
	if err := recorder.RecordAttempt(context.WithoutCancel(ctx), eventID, false, s.now().UTC()); err != nil {
		log.Error("failed to record delivery attempt", "success", false, "error", err)
		metrics.DeliveriesTotal.WithLabelValues(string(variant), metrics.OutcomeError).Inc()
		return
	}
	log.Warn("webhook target missing, trial consumed", "error", cause)
	metrics.DeliveriesTotal.WithLabelValues(string(variant), metrics.OutcomeFailed).Inc()
}

func (s *DeliveryService) malformed(variant webhook.Variant, body []byte, err error) {
	excerpt := body
	if len(excerpt) > 256 {
		excerpt = excerpt[:256]
	}
	s.logger.Warn("dropping malformed message", "variant", variant, "body", string(excerpt), "error", err)
	metrics.DeliveriesTotal.WithLabelValues(string(variant), metrics.OutcomeMalformed).Inc()
}

func (s *DeliveryService) ineligible(log *logger.Logger, variant webhook.Variant, a webhook.Attempt) {
	log.Info("event not eligible, skipping", "sent", a.Sent, "trials", a.Trials)
	metrics.DeliveriesTotal.WithLabelValues(string(variant), metrics.OutcomeIneligible).Inc()
}

func (s *DeliveryService) loadFailed(log *logger.Logger, variant webhook.Variant, err error) {
	if shared.IsNotFound(err) {
		log.Info("event no longer exists, skipping")
		metrics.DeliveriesTotal.WithLabelValues(string(variant), metrics.OutcomeIneligible).Inc()
		return
	}
	log.Error("failed to load delivery context", "error", err)
	metrics.DeliveriesTotal.WithLabelValues(string(variant), metrics.OutcomeError).Inc()
}
