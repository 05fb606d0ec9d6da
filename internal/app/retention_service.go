package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/refundly/webhooks/internal/metrics"
	"github.com/refundly/webhooks/pkg/domain/webhook"
	"github.com/refundly/webhooks/pkg/logger"
)

// DefaultRetention is how long event rows are kept after their last attempt.
const DefaultRetention = 60 * 24 * time.Hour

// RetentionPolicy selects which old events are deleted.
type RetentionPolicy string

const (
	// RetentionAll deletes every old event regardless of delivery state.
	RetentionAll RetentionPolicy = "all"
	// RetentionSettled deletes only old events that were delivered or ran out of trials.
	RetentionSettled RetentionPolicy = "settled"
)

// RetentionServiceConfig tunes RetentionService.
type RetentionServiceConfig struct {
	Retention time.Duration
	Policy    RetentionPolicy
	DryRun    bool
}

// RetentionResult summarises one cleaning run.
type RetentionResult struct {
	Cutoff        time.Time `json:"cutoff" yaml:"cutoff"`
	VendorEvents  int64     `json:"vendor_events" yaml:"vendor_events"`
	PartnerEvents int64     `json:"partner_events" yaml:"partner_events"`
	DryRun        bool      `json:"dry_run" yaml:"dry_run"`
}

// Total returns the number of rows deleted (or that would be, on a dry run).
func (r RetentionResult) Total() int64 {
	return r.VendorEvents + r.PartnerEvents
}

// RetentionService deletes event rows last attempted before the retention window.
// Rows never attempted are aged by their creation time.
type RetentionService struct {
	events       webhook.EventRepository
	refundEvents webhook.RefundEventRepository
	cfg          RetentionServiceConfig
	logger       *logger.Logger
}

// NewRetentionService creates a new RetentionService.
func NewRetentionService(
	events webhook.EventRepository,
	refundEvents webhook.RefundEventRepository,
	cfg RetentionServiceConfig,
	log *logger.Logger,
) *RetentionService {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Policy == "" {
		cfg.Policy = RetentionAll
	}
	return &RetentionService{
		events:       events,
		refundEvents: refundEvents,
		cfg:          cfg,
		logger:       log.With("service", "retention"),
	}
}

// DryRun reports whether the service only counts.
func (s *RetentionService) DryRun() bool {
	return s.cfg.DryRun
}

// Clean deletes both event variants older than the retention window at now.
func (s *RetentionService) Clean(ctx context.Context, now time.Time) (RetentionResult, error) {
	return s.clean(ctx, now, s.cfg.DryRun)
}

// Preview counts what Clean would delete at now without deleting.
func (s *RetentionService) Preview(ctx context.Context, now time.Time) (RetentionResult, error) {
	return s.clean(ctx, now, true)
}

type retentionStore interface {
	CountForRetention(ctx context.Context, filter webhook.RetentionFilter) (int64, error)
	DeleteForRetention(ctx context.Context, filter webhook.RetentionFilter) (int64, error)
}

func (s *RetentionService) clean(ctx context.Context, now time.Time, dryRun bool) (RetentionResult, error) {
	filter := webhook.RetentionFilter{
		Cutoff:      now.Add(-s.cfg.Retention),
		SettledOnly: s.cfg.Policy == RetentionSettled,
	}
	result := RetentionResult{Cutoff: filter.Cutoff, DryRun: dryRun}

	vendorCount, vendorErr := s.cleanStore(ctx, s.events, filter, dryRun, webhook.VariantVendor)
	result.VendorEvents = vendorCount

	partnerCount, partnerErr := s.cleanStore(ctx, s.refundEvents, filter, dryRun, webhook.VariantPartner)
	result.PartnerEvents = partnerCount

	err := errors.Join(vendorErr, partnerErr)

	if dryRun {
		s.logger.Info("[DRY RUN] webhook events would be deleted",
			"vendor_events", result.VendorEvents,
			"partner_events", result.PartnerEvents,
			"cutoff", filter.Cutoff,
			"policy", s.cfg.Policy,
		)
		return result, err
	}

	s.logger.Info("webhook events deleted",
		"vendor_events", result.VendorEvents,
		"partner_events", result.PartnerEvents,
		"cutoff", filter.Cutoff,
		"policy", s.cfg.Policy,
	)
	return result, err
}

func (s *RetentionService) cleanStore(
	ctx context.Context,
	store retentionStore,
	filter webhook.RetentionFilter,
	dryRun bool,
	variant webhook.Variant,
) (int64, error) {
	if dryRun {
		n, err := store.CountForRetention(ctx, filter)
		if err != nil {
			return 0, fmt.Errorf("count %s events: %w", variant, err)
		}
		return n, nil
	}

	n, err := store.DeleteForRetention(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete %s events: %w", variant, err)
	}
	metrics.RetentionDeletedTotal.WithLabelValues(string(variant)).Add(float64(n))
	return n, nil
}
