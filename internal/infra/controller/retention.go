package controller

import (
	"context"
	"time"

	"github.com/refundly/webhooks/internal/app"
)

// DefaultRetentionSchedule runs the retention cleaner daily at 03:00.
const DefaultRetentionSchedule = "0 3 * * *"

type cleaner interface {
	Clean(ctx context.Context, now time.Time) (app.RetentionResult, error)
}

// RetentionControllerConfig configures the RetentionController.
type RetentionControllerConfig struct {
	// Schedule is the cron expression. Default: DefaultRetentionSchedule.
	Schedule string
}

// RetentionController deletes webhook events past the retention window.
// Deleted rows cannot be recovered; the cleaner's dry-run mode only counts them.
type RetentionController struct {
	cleaner  cleaner
	schedule string
	now      func() time.Time
}

// NewRetentionController creates a new RetentionController.
func NewRetentionController(c cleaner, cfg RetentionControllerConfig) *RetentionController {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultRetentionSchedule
	}
	return &RetentionController{cleaner: c, schedule: cfg.Schedule, now: time.Now}
}

// Name returns the controller name.
func (c *RetentionController) Name() string { return "webhook-retention" }

// Schedule returns the cron expression.
func (c *RetentionController) Schedule() string { return c.schedule }

// Reconcile runs one cleaning pass.
func (c *RetentionController) Reconcile(ctx context.Context) (int, error) {
	result, err := c.cleaner.Clean(ctx, c.now())
	return int(result.Total()), err
}
