package webhook

import (
	"context"
	"time"
)

// SubscriptionRepository defines persistence for subscriptions.
type SubscriptionRepository interface {
	// Create inserts the subscription and assigns its id.
	// Returns ErrSubscriptionExists when the vendor already registered the url. When limit is
	// positive and the insert leaves the vendor with more than limit subscriptions, the insert
	// is undone and ErrSubscriptionLimitReached is returned.
	Create(ctx context.Context, s *Subscription, limit int) error
	GetByID(ctx context.Context, id ID) (*Subscription, error)
	// ListByVendor returns the vendor's subscriptions oldest first.
	ListByVendor(ctx context.Context, vendorID ID) ([]*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	Delete(ctx context.Context, id ID) error
}

// RetentionFilter selects events for garbage collection.
// An event matches when its last trial (or, if never attempted, its creation) is at or before Cutoff.
type RetentionFilter struct {
	Cutoff time.Time
	// SettledOnly restricts matches to sent or exhausted events.
	SettledOnly bool
}

// EventFilter narrows event listings.
type EventFilter struct {
	VendorID *ID
	Sent     *bool
	Limit    int
}

// EventRepository defines persistence for vendor-subscription events.
type EventRepository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id ID) (*Event, error)
	// RecordAttempt increments trials in a single statement and sets sent when success is true.
	RecordAttempt(ctx context.Context, id ID, success bool, at time.Time) error
	// ListPending returns eligible events never attempted or last attempted at or before notAfter
	// whose subscription still exists and is enabled.
	ListPending(ctx context.Context, notAfter time.Time) ([]PendingEvent, error)
	List(ctx context.Context, filter EventFilter) ([]*Event, error)
	CountForRetention(ctx context.Context, filter RetentionFilter) (int64, error)
	DeleteForRetention(ctx context.Context, filter RetentionFilter) (int64, error)
}

// RefundEventRepository defines persistence for external-partner events.
type RefundEventRepository interface {
	Create(ctx context.Context, e *RefundEvent) error
	GetByID(ctx context.Context, id ID) (*RefundEvent, error)
	RecordAttempt(ctx context.Context, id ID, success bool, at time.Time) error
	ListPending(ctx context.Context, notAfter time.Time) ([]ID, error)
	CountForRetention(ctx context.Context, filter RetentionFilter) (int64, error)
	DeleteForRetention(ctx context.Context, filter RetentionFilter) (int64, error)
}
