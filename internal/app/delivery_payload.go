package app

import (
	"time"

	"github.com/refundly/webhooks/pkg/domain/refund"
	"github.com/refundly/webhooks/pkg/domain/shared"
)

// PayloadBuilder renders the receiver-facing body of one event.
type PayloadBuilder func(eventID shared.ID, d *refund.Details) any

// DeliveryTarget is where and how one event is delivered.
type DeliveryTarget struct {
	URL string
	// Secret signs the body when non-empty.
	Secret string
	Build  PayloadBuilder
}

// VendorPayload is sent to vendor subscriptions.
type VendorPayload struct {
	EventID              int64      `json:"eventId"`
	RefundID             int64      `json:"refundId"`
	Success              bool       `json:"success"`
	Status               string     `json:"status"`
	RefundDate           time.Time  `json:"refundDate"`
	AgreementDate        *time.Time `json:"agreementDate,omitempty"`
	TermsDate            *time.Time `json:"termsDate,omitempty"`
	OrderID              string     `json:"orderId"`
	ItemIDs              []string   `json:"itemIds"`
	Card                 string     `json:"card,omitempty"`
	Network              string     `json:"network,omitempty"`
	CustomerName         string     `json:"customerName,omitempty"`
	CustomerEmail        string     `json:"customerEmail,omitempty"`
	Amount               int64      `json:"amount,omitempty"`
	Currency             string     `json:"currency,omitempty"`
	TransactionReference string     `json:"transactionReference,omitempty"`
}

// PartnerPayload is sent to the notification target embedded on a refund.
type PartnerPayload struct {
	EventID     int64     `json:"eventId"`
	RefundID    int64     `json:"refundId"`
	Success     bool      `json:"success"`
	Status      string    `json:"status"`
	RefundDate  time.Time `json:"refundDate"`
	OrderID     string    `json:"orderId"`
	ItemIDs     []string  `json:"itemIds"`
	Card        string    `json:"card,omitempty"`
	Network     string    `json:"network,omitempty"`
	RedirectURL string    `json:"redirectUrl,omitempty"`
	TrackingURL string    `json:"trackingUrl,omitempty"`
}

// BuildVendorPayload renders a vendor subscription payload.
func BuildVendorPayload(eventID shared.ID, d *refund.Details) any {
	p := VendorPayload{
		EventID:       eventID.Int64(),
		RefundID:      d.ID.Int64(),
		Success:       d.Status.Succeeded(),
		Status:        string(d.Status),
		RefundDate:    d.RefundDate.UTC(),
		AgreementDate: utcPtr(d.AgreementDate),
		TermsDate:     utcPtr(d.TermsDate),
		OrderID:       d.OrderID,
		ItemIDs:       itemIDs(d.ProductIDs),
	}
	if d.Card != nil {
		p.Card = d.Card.Masked()
		p.Network = d.Card.Network
	}
	if d.Customer != nil {
		p.CustomerName = d.Customer.Name
		p.CustomerEmail = d.Customer.Email
	}
	if d.Transaction != nil {
		p.Amount = d.Transaction.Amount
		p.Currency = d.Transaction.Currency
		p.TransactionReference = d.Transaction.Reference
	}
	return p
}

// BuildPartnerPayload renders an external-partner payload.
func BuildPartnerPayload(eventID shared.ID, d *refund.Details) any {
	p := PartnerPayload{
		EventID:    eventID.Int64(),
		RefundID:   d.ID.Int64(),
		Success:    d.Status.Succeeded(),
		Status:     string(d.Status),
		RefundDate: d.RefundDate.UTC(),
		OrderID:    d.OrderID,
		ItemIDs:    itemIDs(d.ProductIDs),
	}
	if d.Card != nil {
		p.Card = d.Card.Masked()
		p.Network = d.Card.Network
	}
	if d.Notification != nil {
		p.RedirectURL = d.Notification.RedirectURL
		p.TrackingURL = d.Notification.TrackingURL
	}
	return p
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// itemIDs keeps the field an array in JSON even when the refund lists no products.
func itemIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
