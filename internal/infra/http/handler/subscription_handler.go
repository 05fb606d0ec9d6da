package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/refundly/webhooks/internal/app"
	"github.com/refundly/webhooks/internal/infra/http/middleware"
	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/domain/webhook"
	"github.com/refundly/webhooks/pkg/logger"
)

// SubscriptionService is the subscription registry as seen by the API.
type SubscriptionService interface {
	Add(ctx context.Context, input app.AddSubscriptionInput) (*webhook.Subscription, error)
	List(ctx context.Context, vendorID shared.ID) ([]*webhook.Subscription, error)
	SetEnabled(ctx context.Context, vendorID, id shared.ID, enabled bool) (*webhook.Subscription, error)
	Delete(ctx context.Context, vendorID, id shared.ID) error
}

// SubscriptionHandler handles the vendor's callback registrations.
type SubscriptionHandler struct {
	service SubscriptionService
	logger  *logger.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(svc SubscriptionService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{service: svc, logger: log}
}

// CreateSubscriptionRequest is the body of POST /api/v1/subscriptions.
type CreateSubscriptionRequest struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// SubscriptionResponse represents a subscription. The signing key is never returned.
type SubscriptionResponse struct {
	ID        int64     `json:"id"`
	VendorID  int64     `json:"vendor_id"`
	URL       string    `json:"url"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

func toSubscriptionResponse(s *webhook.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:        s.ID().Int64(),
		VendorID:  s.VendorID().Int64(),
		URL:       s.URL(),
		Enabled:   s.Enabled(),
		CreatedAt: s.CreatedAt(),
	}
}

// Create handles POST /api/v1/subscriptions
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	vendorID := middleware.MustGetVendorID(r.Context())

	var req CreateSubscriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.service.Add(r.Context(), app.AddSubscriptionInput{
		VendorID: vendorID.Int64(),
		URL:      req.URL,
		Key:      req.Key,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSubscriptionResponse(sub))
}

// List handles GET /api/v1/subscriptions
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	vendorID := middleware.MustGetVendorID(r.Context())

	subs, err := h.service.List(r.Context(), vendorID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	data := make([]SubscriptionResponse, len(subs))
	for i, s := range subs {
		data[i] = toSubscriptionResponse(s)
	}
	writeJSON(w, http.StatusOK, newListResponse(data))
}

// Enable handles POST /api/v1/subscriptions/{id}/enable
func (h *SubscriptionHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// Disable handles POST /api/v1/subscriptions/{id}/disable
func (h *SubscriptionHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *SubscriptionHandler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	vendorID := middleware.MustGetVendorID(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	sub, err := h.service.SetEnabled(r.Context(), vendorID, id, enabled)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// Delete handles DELETE /api/v1/subscriptions/{id}
func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	vendorID := middleware.MustGetVendorID(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.service.Delete(r.Context(), vendorID, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
