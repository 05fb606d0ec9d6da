package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/domain/webhook"
	"github.com/refundly/webhooks/pkg/logger"
	"github.com/refundly/webhooks/pkg/validator"
)

// SubscriptionService manages the callback URLs vendors register.
type SubscriptionService struct {
	repo             webhook.SubscriptionRepository
	validator        *validator.Validator
	maxPerVendor     int
	allowPrivateURLs bool
	logger           *logger.Logger
}

// SubscriptionServiceConfig tunes SubscriptionService.
type SubscriptionServiceConfig struct {
	MaxPerVendor     int
	AllowPrivateURLs bool
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(repo webhook.SubscriptionRepository, cfg SubscriptionServiceConfig, log *logger.Logger) *SubscriptionService {
	maxPerVendor := cfg.MaxPerVendor
	if maxPerVendor <= 0 {
		maxPerVendor = webhook.MaxSubscriptionsPerVendor
	}
	return &SubscriptionService{
		repo:             repo,
		validator:        validator.New(),
		maxPerVendor:     maxPerVendor,
		allowPrivateURLs: cfg.AllowPrivateURLs,
		logger:           log.With("service", "subscription"),
	}
}

// AddSubscriptionInput represents input for registering a callback URL.
type AddSubscriptionInput struct {
	VendorID int64  `json:"vendor_id" validate:"gt=0"`
	URL      string `json:"url" validate:"required,max=2000,callback_url"`
	Key      string `json:"key" validate:"required,min=16,max=255,signing_key"`
}

// Add registers a callback URL for the vendor.
// When the insert would leave the vendor above the maximum number of subscriptions, it is
// undone and ErrSubscriptionLimitReached is returned. Existing subscriptions are untouched.
func (s *SubscriptionService) Add(ctx context.Context, input AddSubscriptionInput) (*webhook.Subscription, error) {
	input.URL = strings.TrimSpace(input.URL)
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}
	if !s.allowPrivateURLs {
		if err := validateCallbackURL(input.URL); err != nil {
			return nil, err
		}
	}

	vendorID := shared.ID(input.VendorID)
	sub, err := webhook.NewSubscription(vendorID, input.URL, input.Key)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, sub, s.maxPerVendor); err != nil {
		if errors.Is(err, webhook.ErrSubscriptionLimitReached) {
			s.logger.Info("subscription limit reached",
				"vendor_id", vendorID.Int64(),
				"limit", s.maxPerVendor,
			)
		}
		return nil, err
	}

	s.logger.Info("subscription created",
		"id", sub.ID().Int64(),
		"vendor_id", vendorID.Int64(),
	)

	return sub, nil
}

// List returns the vendor's subscriptions oldest first.
func (s *SubscriptionService) List(ctx context.Context, vendorID shared.ID) ([]*webhook.Subscription, error) {
	return s.repo.ListByVendor(ctx, vendorID)
}

// Get returns a subscription owned by the vendor.
func (s *SubscriptionService) Get(ctx context.Context, vendorID, id shared.ID) (*webhook.Subscription, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sub.OwnedBy(vendorID) {
		return nil, webhook.ErrSubscriptionNotFound
	}
	return sub, nil
}

// SetEnabled toggles whether new events are delivered to the subscription.
func (s *SubscriptionService) SetEnabled(ctx context.Context, vendorID, id shared.ID, enabled bool) (*webhook.Subscription, error) {
	sub, err := s.Get(ctx, vendorID, id)
	if err != nil {
		return nil, err
	}
	if sub.Enabled() == enabled {
		return sub, nil
	}

	sub.SetEnabled(enabled)
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("subscription updated", "id", id.Int64(), "vendor_id", vendorID.Int64(), "enabled", enabled)
	return sub, nil
}

// Delete removes a subscription. Its events are kept and stop being delivered.
func (s *SubscriptionService) Delete(ctx context.Context, vendorID, id shared.ID) error {
	if _, err := s.Get(ctx, vendorID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("subscription deleted", "id", id.Int64(), "vendor_id", vendorID.Int64())
	return nil
}

// validateCallbackURL rejects callbacks aimed at internal or private networks.
func validateCallbackURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid URL", shared.ErrValidation)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: callback URL must have a hostname", shared.ErrValidation)
	}

	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") || lower == "0.0.0.0" {
		return fmt.Errorf("%w: callback URL cannot target localhost", shared.ErrValidation)
	}

	if lower == "169.254.169.254" || lower == "metadata.google.internal" {
		return fmt.Errorf("%w: callback URL cannot target cloud metadata services", shared.ErrValidation)
	}

	ip := net.ParseIP(host)
	if ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return fmt.Errorf("%w: callback URL cannot target private or reserved IP addresses", shared.ErrValidation)
		}
	}

	return nil
}
