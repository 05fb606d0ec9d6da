package main

import (
	"github.com/refundly/webhooks/internal/config"
	"github.com/refundly/webhooks/internal/infra/controller"
	"github.com/refundly/webhooks/pkg/logger"
)

// NewControllerManager registers the retry sweep and the retention cleaner.
func NewControllerManager(cfg *config.Config, svc *Services, log *logger.Logger) (*controller.Manager, error) {
	manager := controller.NewManager(&controller.ManagerConfig{
		Metrics:    controller.NewPrometheusMetrics(nil),
		Logger:     log,
		RunOnStart: true,
	})

	if err := manager.Register(controller.NewRetrySweepController(svc.Sweep, controller.RetrySweepControllerConfig{
		Schedule: cfg.Webhook.SweepSchedule,
	})); err != nil {
		return nil, err
	}

	if err := manager.Register(controller.NewRetentionController(svc.Retention, controller.RetentionControllerConfig{
		Schedule: cfg.Webhook.RetentionSchedule,
	})); err != nil {
		return nil, err
	}

	log.Info("controllers initialized",
		"sweep_schedule", cfg.Webhook.SweepSchedule,
		"retention_schedule", cfg.Webhook.RetentionSchedule,
		"retention_policy", cfg.Webhook.RetentionPolicy,
		"retention_dry_run", cfg.Webhook.RetentionDryRun,
	)
	return manager, nil
}
