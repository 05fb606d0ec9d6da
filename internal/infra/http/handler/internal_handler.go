package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/refundly/webhooks/internal/app"
	"github.com/refundly/webhooks/pkg/domain/refund"
	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/domain/vendor"
	"github.com/refundly/webhooks/pkg/logger"
)

// VendorCreator onboards vendors.
type VendorCreator interface {
	Create(ctx context.Context, input app.CreateVendorInput) (*vendor.Vendor, error)
}

// Notifier triggers webhook notifications for a refund.
type Notifier interface {
	NotifyVendorSubscribers(ctx context.Context, refundID, vendorID shared.ID) (int, error)
	NotifyExternalPartner(ctx context.Context, refundID shared.ID) (shared.ID, error)
}

// InternalHandler serves the endpoints platform services call.
type InternalHandler struct {
	vendors  VendorCreator
	notifier Notifier
	refunds  refund.Repository
	logger   *logger.Logger
}

// NewInternalHandler creates a new InternalHandler.
func NewInternalHandler(vendors VendorCreator, notifier Notifier, refunds refund.Repository, log *logger.Logger) *InternalHandler {
	return &InternalHandler{vendors: vendors, notifier: notifier, refunds: refunds, logger: log}
}

// CreateVendorRequest is the body of POST /internal/vendors.
type CreateVendorRequest struct {
	Name string `json:"name"`
}

// VendorResponse represents a vendor.
type VendorResponse struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	CreatedAt       time.Time `json:"created_at"`
	QueueRegistered bool      `json:"queue_registered"`
}

// NotifyResponse reports what a notify call published.
type NotifyResponse struct {
	RefundID  int64 `json:"refund_id"`
	VendorID  int64 `json:"vendor_id,omitempty"`
	Published int   `json:"published"`
	EventID   int64 `json:"event_id,omitempty"`
}

// CreateVendor handles POST /internal/vendors
// A vendor whose queue could not be registered is still created; registration is retried on
// the next publish or restart.
func (h *InternalHandler) CreateVendor(w http.ResponseWriter, r *http.Request) {
	var req CreateVendorRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	v, err := h.vendors.Create(r.Context(), app.CreateVendorInput{Name: req.Name})
	if v == nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err != nil {
		h.logger.WithContext(r.Context()).Warn("vendor created without queue",
			"vendor_id", v.ID().Int64(),
			"error", err,
		)
	}

	writeJSON(w, http.StatusCreated, VendorResponse{
		ID:              v.ID().Int64(),
		Name:            v.Name(),
		CreatedAt:       v.CreatedAt(),
		QueueRegistered: err == nil,
	})
}

// NotifyVendor handles POST /internal/refunds/{id}/notify
func (h *InternalHandler) NotifyVendor(w http.ResponseWriter, r *http.Request) {
	details, err := h.notifiableRefund(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	published, err := h.notifier.NotifyVendorSubscribers(r.Context(), details.ID, details.VendorID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, NotifyResponse{
		RefundID:  details.ID.Int64(),
		VendorID:  details.VendorID.Int64(),
		Published: published,
	})
}

// NotifyPartner handles POST /internal/refunds/{id}/notify-partner
func (h *InternalHandler) NotifyPartner(w http.ResponseWriter, r *http.Request) {
	details, err := h.notifiableRefund(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !details.HasPartnerCallback() {
		writeError(w, r, h.logger, refund.ErrNoPartnerCallback)
		return
	}

	eventID, err := h.notifier.NotifyExternalPartner(r.Context(), details.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, NotifyResponse{
		RefundID:  details.ID.Int64(),
		Published: 1,
		EventID:   eventID.Int64(),
	})
}

// notifiableRefund loads the refund named by the path and requires it to be terminal.
func (h *InternalHandler) notifiableRefund(r *http.Request) (*refund.Details, error) {
	refundID, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	details, err := h.refunds.GetDetails(r.Context(), refundID)
	if err != nil {
		return nil, err
	}
	if !details.Status.IsTerminal() {
		return nil, refund.ErrRefundNotTerminal
	}
	return details, nil
}
