package app

import (
	"context"

	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/domain/webhook"
)

const (
	defaultEventListLimit = 50
	maxEventListLimit     = 500
)

// EventService exposes delivery status of vendor events.
type EventService struct {
	events webhook.EventRepository
}

// NewEventService creates a new EventService.
func NewEventService(events webhook.EventRepository) *EventService {
	return &EventService{events: events}
}

// ListEventsInput narrows an event listing. A nil VendorID lists every vendor.
type ListEventsInput struct {
	VendorID *shared.ID
	Sent     *bool
	Limit    int
}

// List returns events newest first.
func (s *EventService) List(ctx context.Context, input ListEventsInput) ([]*webhook.Event, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultEventListLimit
	}
	if limit > maxEventListLimit {
		limit = maxEventListLimit
	}
	return s.events.List(ctx, webhook.EventFilter{
		VendorID: input.VendorID,
		Sent:     input.Sent,
		Limit:    limit,
	})
}
