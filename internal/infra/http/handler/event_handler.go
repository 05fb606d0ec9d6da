package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/refundly/webhooks/internal/app"
	"github.com/refundly/webhooks/internal/infra/http/middleware"
	"github.com/refundly/webhooks/pkg/domain/webhook"
	"github.com/refundly/webhooks/pkg/logger"
)

// EventLister lists vendor events.
type EventLister interface {
	List(ctx context.Context, input app.ListEventsInput) ([]*webhook.Event, error)
}

// EventHandler exposes the delivery status of a vendor's events.
type EventHandler struct {
	events EventLister
	logger *logger.Logger
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(events EventLister, log *logger.Logger) *EventHandler {
	return &EventHandler{events: events, logger: log}
}

// EventResponse represents one vendor event and its delivery state.
type EventResponse struct {
	ID             int64      `json:"id"`
	RefundID       int64      `json:"refund_id"`
	SubscriptionID int64      `json:"subscription_id"`
	Sent           bool       `json:"sent"`
	Trials         int        `json:"trials"`
	Exhausted      bool       `json:"exhausted"`
	LastTrialAt    *time.Time `json:"last_trial_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toEventResponse(e *webhook.Event) EventResponse {
	return EventResponse{
		ID:             e.ID.Int64(),
		RefundID:       e.RefundID.Int64(),
		SubscriptionID: e.SubscriptionID.Int64(),
		Sent:           e.Sent,
		Trials:         e.Trials,
		Exhausted:      e.Exhausted(),
		LastTrialAt:    e.LastTrialAt,
		CreatedAt:      e.CreatedAt,
	}
}

// List handles GET /api/v1/events?sent=&limit=
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	vendorID := middleware.MustGetVendorID(r.Context())
	query := r.URL.Query()

	events, err := h.events.List(r.Context(), app.ListEventsInput{
		VendorID: &vendorID,
		Sent:     parseQueryBool(query.Get("sent")),
		Limit:    parseQueryInt(query.Get("limit"), 0),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	data := make([]EventResponse, len(events))
	for i, e := range events {
		data[i] = toEventResponse(e)
	}
	writeJSON(w, http.StatusOK, newListResponse(data))
}
