package webhook

import (
	"fmt"
	"time"

	"github.com/refundly/webhooks/pkg/domain/shared"
)

// MaxTrials is the number of delivery attempts after which an unsent event is dead.
const MaxTrials = 4

// Variant distinguishes the two notification pipelines.
type Variant string

const (
	// VariantVendor events target a vendor subscription.
	VariantVendor Variant = "vendor"
	// VariantPartner events target the notification record embedded on a refund.
	VariantPartner Variant = "partner"
)

// Attempt is the delivery bookkeeping shared by both event variants.
// Sent is terminal and Trials only grows.
type Attempt struct {
	Sent        bool
	Trials      int
	LastTrialAt *time.Time
}

// Eligible reports whether another delivery attempt may be made.
func (a Attempt) Eligible() bool {
	return !a.Sent && a.Trials < MaxTrials
}

// Exhausted reports whether the event ran out of trials without being delivered.
func (a Attempt) Exhausted() bool {
	return !a.Sent && a.Trials >= MaxTrials
}

// Settled reports whether the event will never be attempted again.
func (a Attempt) Settled() bool {
	return a.Sent || a.Exhausted()
}

// Record applies the outcome of one attempt.
func (a *Attempt) Record(success bool, at time.Time) {
	a.Trials++
	a.LastTrialAt = &at
	if success {
		a.Sent = true
	}
}

// Event is one outstanding delivery obligation for a (refund, subscription) pair.
type Event struct {
	ID             ID
	RefundID       ID
	SubscriptionID ID
	Attempt
	CreatedAt time.Time
}

// NewEvent creates an unsent event with no trials.
func NewEvent(refundID, subscriptionID ID) *Event {
	return &Event{
		RefundID:       refundID,
		SubscriptionID: subscriptionID,
		CreatedAt:      time.Now().UTC(),
	}
}

// RefundEvent is the external-partner delivery obligation for a single refund.
type RefundEvent struct {
	ID       ID
	RefundID ID
	Attempt
	CreatedAt time.Time
}

// NewRefundEvent creates an unsent partner event with no trials.
func NewRefundEvent(refundID ID) *RefundEvent {
	return &RefundEvent{
		RefundID:  refundID,
		CreatedAt: time.Now().UTC(),
	}
}

// PendingEvent is a vendor event selected for republishing, with the vendor that owns its queue.
type PendingEvent struct {
	EventID  ID
	VendorID ID
}

var (
	ErrEventNotFound       = fmt.Errorf("%w: webhook event not found", shared.ErrNotFound)
	ErrRefundEventNotFound = fmt.Errorf("%w: refund webhook event not found", shared.ErrNotFound)
)
