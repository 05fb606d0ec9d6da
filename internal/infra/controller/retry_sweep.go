package controller

import (
	"context"
	"time"

	"github.com/refundly/webhooks/internal/app"
)

// DefaultSweepSchedule runs the retry sweep every five minutes.
const DefaultSweepSchedule = "*/5 * * * *"

// sweeper is the part of app.SweepService the controller drives.
type sweeper interface {
	Sweep(ctx context.Context, now time.Time) (app.SweepResult, error)
}

// RetrySweepControllerConfig configures the RetrySweepController.
type RetrySweepControllerConfig struct {
	// Schedule is the cron expression. Default: DefaultSweepSchedule.
	Schedule string
}

// RetrySweepController republishes events whose previous attempt failed.
type RetrySweepController struct {
	sweeper  sweeper
	schedule string
	now      func() time.Time
}

// NewRetrySweepController creates a new RetrySweepController.
func NewRetrySweepController(s sweeper, cfg RetrySweepControllerConfig) *RetrySweepController {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSweepSchedule
	}
	return &RetrySweepController{sweeper: s, schedule: cfg.Schedule, now: time.Now}
}

// Name returns the controller name.
func (c *RetrySweepController) Name() string { return "webhook-retry-sweep" }

// Schedule returns the cron expression.
func (c *RetrySweepController) Schedule() string { return c.schedule }

// Reconcile runs one sweep.
func (c *RetrySweepController) Reconcile(ctx context.Context) (int, error) {
	result, err := c.sweeper.Sweep(ctx, c.now())
	return result.Total(), err
}
