package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/refundly/webhooks/internal/metrics"
	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/domain/webhook"
	"github.com/refundly/webhooks/pkg/logger"
)

// DefaultRetryDelay is how long an attempted event waits before the sweep republishes it.
const DefaultRetryDelay = 30 * time.Minute

// SweepServiceConfig tunes SweepService.
type SweepServiceConfig struct {
	RetryDelay time.Duration
	// Concurrency bounds how many vendor queues are published to at once.
	Concurrency int
}

// SweepResult summarises one sweep.
type SweepResult struct {
	VendorEvents  int `json:"vendor_events" yaml:"vendor_events"`
	Vendors       int `json:"vendors" yaml:"vendors"`
	PartnerEvents int `json:"partner_events" yaml:"partner_events"`
}

// Total returns the number of ids republished.
func (r SweepResult) Total() int {
	return r.VendorEvents + r.PartnerEvents
}

// SweepService republishes events whose previous attempt failed long enough ago.
type SweepService struct {
	events       webhook.EventRepository
	refundEvents webhook.RefundEventRepository
	broker       Broker
	queues       vendorQueueRegistrar
	retryDelay   time.Duration
	concurrency  int
	logger       *logger.Logger
}

// NewSweepService creates a new SweepService.
func NewSweepService(
	events webhook.EventRepository,
	refundEvents webhook.RefundEventRepository,
	broker Broker,
	queues vendorQueueRegistrar,
	cfg SweepServiceConfig,
	log *logger.Logger,
) *SweepService {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &SweepService{
		events:       events,
		refundEvents: refundEvents,
		broker:       broker,
		queues:       queues,
		retryDelay:   cfg.RetryDelay,
		concurrency:  cfg.Concurrency,
		logger:       log.With("service", "sweep"),
	}
}

// Sweep republishes every unsent event with trials left that was never attempted or
// was last attempted at or before now minus the retry delay. Vendor events go back to
// their vendor's queue in one publish per vendor; partner events go to the shared queue.
// A failing vendor does not stop the others; the joined error is returned with the partial result.
func (s *SweepService) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	notAfter := now.Add(-s.retryDelay)

	var result SweepResult
	vendorResult, vendorErr := s.sweepVendorEvents(ctx, notAfter)
	result.VendorEvents = vendorResult.VendorEvents
	result.Vendors = vendorResult.Vendors

	partnerCount, partnerErr := s.sweepPartnerEvents(ctx, notAfter)
	result.PartnerEvents = partnerCount

	err := errors.Join(vendorErr, partnerErr)
	if result.Total() > 0 || err != nil {
		s.logger.Info("retry sweep completed",
			"vendor_events", result.VendorEvents,
			"vendors", result.Vendors,
			"partner_events", result.PartnerEvents,
			"failed", err != nil,
		)
	}
	return result, err
}

func (s *SweepService) sweepVendorEvents(ctx context.Context, notAfter time.Time) (SweepResult, error) {
	pending, err := s.events.ListPending(ctx, notAfter)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list pending vendor events: %w", err)
	}
	if len(pending) == 0 {
		return SweepResult{}, nil
	}

	groups := make(map[shared.ID][]shared.ID)
	for _, p := range pending {
		groups[p.VendorID] = append(groups[p.VendorID], p.EventID)
	}
	vendorIDs := make([]shared.ID, 0, len(groups))
	for id := range groups {
		vendorIDs = append(vendorIDs, id)
	}
	sort.Slice(vendorIDs, func(i, j int) bool { return vendorIDs[i] < vendorIDs[j] })

	var (
		published atomic.Int64
		vendors   atomic.Int64
		errs      = make([]error, len(vendorIDs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, vendorID := range vendorIDs {
		ids := groups[vendorID]
		g.Go(func() error {
			if err := s.publishVendor(gctx, vendorID, ids); err != nil {
				s.logger.Error("failed to republish vendor events",
					"vendor_id", vendorID.Int64(),
					"count", len(ids),
					"error", err,
				)
				errs[i] = fmt.Errorf("vendor %d: %w", vendorID.Int64(), err)
				return nil
			}
			published.Add(int64(len(ids)))
			vendors.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return SweepResult{
		VendorEvents: int(published.Load()),
		Vendors:      int(vendors.Load()),
	}, errors.Join(errs...)
}

func (s *SweepService) publishVendor(ctx context.Context, vendorID shared.ID, ids []shared.ID) error {
	if err := s.queues.RegisterVendor(ctx, vendorID); err != nil {
		return err
	}
	bodies, err := webhook.EncodeMessages(webhook.VariantVendor, ids)
	if err != nil {
		return err
	}
	if err := s.broker.Publish(ctx, webhook.VendorQueue(vendorID), bodies...); err != nil {
		return err
	}
	metrics.MessagesPublishedTotal.WithLabelValues(string(webhook.VariantVendor), "sweep").Add(float64(len(ids)))
	return nil
}

func (s *SweepService) sweepPartnerEvents(ctx context.Context, notAfter time.Time) (int, error) {
	ids, err := s.refundEvents.ListPending(ctx, notAfter)
	if err != nil {
		return 0, fmt.Errorf("list pending partner events: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	bodies, err := webhook.EncodeMessages(webhook.VariantPartner, ids)
	if err != nil {
		return 0, err
	}
	if err := s.broker.Publish(ctx, webhook.PartnerQueue, bodies...); err != nil {
		return 0, fmt.Errorf("republish partner events: %w", err)
	}

	metrics.MessagesPublishedTotal.WithLabelValues(string(webhook.VariantPartner), "sweep").Add(float64(len(ids)))
	return len(ids), nil
}
