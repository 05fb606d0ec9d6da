// Package refund holds the read model the webhook pipeline loads for a refund.
// Refund lifecycle (status transitions, fees, invoicing) is owned elsewhere.
package refund

import (
	"context"
	"fmt"
	"time"

	"github.com/refundly/webhooks/pkg/domain/shared"
)

// ID is a type alias for shared.ID.
type ID = shared.ID

// Status is the lifecycle state of a refund.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
)

// Succeeded reports whether receivers should be told the refund went through.
func (s Status) Succeeded() bool {
	return s == StatusProcessed
}

// IsTerminal reports whether the refund reached a state worth notifying.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusProcessed, StatusFailed, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Customer is the refund's customer.
type Customer struct {
	ID    ID
	Name  string
	Email string
}

// Card is the customer card the refund was paid back to.
type Card struct {
	LastFour string
	Network  string
}

// Masked returns the receiver-facing card descriptor.
func (c Card) Masked() string {
	if c.LastFour == "" {
		return ""
	}
	return "**** **** ***** " + c.LastFour
}

// Transaction is the original payment the refund reverses.
type Transaction struct {
	ID        ID
	Reference string
	Amount    int64
	Currency  string
}

// Notification is the partner-supplied callback target stored on the refund.
type Notification struct {
	WebhookURL  string
	SecretKey   string
	RedirectURL string
	TrackingURL string
}

// Details is the subset of a refund needed to build a webhook payload.
type Details struct {
	ID            ID
	VendorID      ID
	Status        Status
	RefundDate    time.Time
	AgreementDate *time.Time
	TermsDate     *time.Time
	OrderID       string
	ProductIDs    []string
	Customer      *Customer
	Card          *Card
	Transaction   *Transaction
	Notification  *Notification
}

// HasPartnerCallback reports whether the refund carries a partner webhook url.
func (d *Details) HasPartnerCallback() bool {
	return d.Notification != nil && d.Notification.WebhookURL != ""
}

// Repository loads refund read models.
type Repository interface {
	GetDetails(ctx context.Context, id ID) (*Details, error)
}

var (
	// ErrRefundNotFound is returned when the refund does not exist.
	ErrRefundNotFound = fmt.Errorf("%w: refund not found", shared.ErrNotFound)

	// ErrRefundNotTerminal is returned when a notification is requested for a refund still in flight.
	ErrRefundNotTerminal = fmt.Errorf("%w: refund has not reached a terminal state", shared.ErrConflict)

	// ErrNoPartnerCallback is returned when the refund has no partner webhook url.
	ErrNoPartnerCallback = fmt.Errorf("%w: refund has no partner webhook url", shared.ErrNotFound)
)
