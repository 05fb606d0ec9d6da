package webhook

import (
	"fmt"
	"strings"
	"time"

	"github.com/refundly/webhooks/pkg/domain/shared"
)

// ID is a type alias for shared.ID.
type ID = shared.ID

// MaxSubscriptionsPerVendor bounds how many destinations a vendor may register.
const MaxSubscriptionsPerVendor = 2

// Subscription is a vendor-registered destination for refund notifications.
type Subscription struct {
	id        ID
	vendorID  ID
	url       string
	key       string
	enabled   bool
	createdAt time.Time
}

// NewSubscription creates an enabled subscription that has not been persisted yet.
func NewSubscription(vendorID ID, url, key string) (*Subscription, error) {
	if vendorID.IsZero() {
		return nil, fmt.Errorf("%w: vendor id is required", shared.ErrValidation)
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", shared.ErrValidation)
	}
	return &Subscription{
		vendorID:  vendorID,
		url:       url,
		key:       key,
		enabled:   true,
		createdAt: time.Now().UTC(),
	}, nil
}

// ReconstructSubscription creates a Subscription from stored data.
func ReconstructSubscription(id, vendorID ID, url, key string, enabled bool, createdAt time.Time) *Subscription {
	return &Subscription{
		id:        id,
		vendorID:  vendorID,
		url:       url,
		key:       key,
		enabled:   enabled,
		createdAt: createdAt,
	}
}

func (s *Subscription) ID() ID               { return s.id }
func (s *Subscription) VendorID() ID         { return s.vendorID }
func (s *Subscription) URL() string          { return s.url }
func (s *Subscription) Key() string          { return s.key }
func (s *Subscription) Enabled() bool        { return s.enabled }
func (s *Subscription) CreatedAt() time.Time { return s.createdAt }

// SetID is called by the repository once the row has been inserted.
func (s *Subscription) SetID(id ID) { s.id = id }

// SetCreatedAt is called by the repository with the stored creation time.
func (s *Subscription) SetCreatedAt(t time.Time) { s.createdAt = t }

// SetEnabled toggles delivery eligibility without touching history.
func (s *Subscription) SetEnabled(enabled bool) { s.enabled = enabled }

// OwnedBy reports whether the subscription belongs to the vendor.
func (s *Subscription) OwnedBy(vendorID ID) bool { return s.vendorID == vendorID }

var (
	ErrSubscriptionNotFound     = fmt.Errorf("%w: subscription not found", shared.ErrNotFound)
	ErrSubscriptionExists       = fmt.Errorf("%w: subscription url already registered", shared.ErrAlreadyExists)
	ErrSubscriptionLimitReached = fmt.Errorf("%w: subscription limit reached", shared.ErrLimitExceeded)
)
