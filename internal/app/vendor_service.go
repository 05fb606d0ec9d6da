package app

import (
	"context"
	"fmt"

	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/domain/vendor"
	"github.com/refundly/webhooks/pkg/logger"
	"github.com/refundly/webhooks/pkg/validator"
)

// VendorService onboards vendors and gives each its delivery queue.
type VendorService struct {
	repo      vendor.Repository
	queues    *QueueRegistrar
	validator *validator.Validator
	logger    *logger.Logger
}

// NewVendorService creates a new VendorService.
func NewVendorService(repo vendor.Repository, queues *QueueRegistrar, log *logger.Logger) *VendorService {
	return &VendorService{
		repo:      repo,
		queues:    queues,
		validator: validator.New(),
		logger:    log.With("service", "vendor"),
	}
}

// CreateVendorInput represents input for onboarding a vendor.
type CreateVendorInput struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// Create stores the vendor and registers its queue. A vendor whose queue could not be
// registered is still returned with the error; the next publish or restart retries registration.
func (s *VendorService) Create(ctx context.Context, input CreateVendorInput) (*vendor.Vendor, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	v, err := vendor.NewVendor(input.Name)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}

	s.logger.Info("vendor created", "vendor_id", v.ID().Int64())

	if err := s.queues.RegisterVendor(ctx, v.ID()); err != nil {
		return v, fmt.Errorf("register vendor queue: %w", err)
	}
	return v, nil
}

// Get returns a vendor by id.
func (s *VendorService) Get(ctx context.Context, id shared.ID) (*vendor.Vendor, error) {
	return s.repo.GetByID(ctx, id)
}
