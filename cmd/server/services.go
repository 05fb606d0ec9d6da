package main

import (
	"github.com/refundly/webhooks/internal/app"
	"github.com/refundly/webhooks/internal/config"
	"github.com/refundly/webhooks/internal/infra/jobs"
	"github.com/refundly/webhooks/internal/infra/notification"
	"github.com/refundly/webhooks/pkg/jwt"
	"github.com/refundly/webhooks/pkg/logger"
)

// Services holds all service instances.
type Services struct {
	Delivery     *app.DeliveryService
	Queues       *app.QueueRegistrar
	Subscription *app.SubscriptionService
	Vendor       *app.VendorService
	Producer     *app.EventProducer
	Event        *app.EventService
	Sweep        *app.SweepService
	Retention    *app.RetentionService
	Tokens       *jwt.Generator
}

// ServiceDeps contains dependencies needed to create services.
type ServiceDeps struct {
	Config    *config.Config
	Log       *logger.Logger
	Repos     *Repositories
	Broker    *jobs.Broker
	Consumers *jobs.ConsumerPool
}

// NewServices initializes all services.
func NewServices(deps *ServiceDeps) *Services {
	cfg := deps.Config
	log := deps.Log
	repos := deps.Repos

	sender := notification.NewWebhookClient(notification.Config{
		Timeout:   cfg.Webhook.HTTPTimeout,
		UserAgent: cfg.Webhook.UserAgent,
	})

	s := &Services{}
	s.Delivery = app.NewDeliveryService(repos.Event, repos.RefundEvent, repos.Subscription, repos.Refund, sender, log)
	s.Queues = app.NewQueueRegistrar(deps.Broker, deps.Consumers, s.Delivery, log)

	s.Subscription = app.NewSubscriptionService(repos.Subscription, app.SubscriptionServiceConfig{
		MaxPerVendor:     cfg.Webhook.MaxSubscriptions,
		AllowPrivateURLs: cfg.Webhook.AllowPrivateURLs,
	}, log)
	s.Vendor = app.NewVendorService(repos.Vendor, s.Queues, log)
	s.Producer = app.NewEventProducer(repos.Subscription, repos.Event, repos.RefundEvent, deps.Broker, s.Queues, log)
	s.Event = app.NewEventService(repos.Event)

	s.Sweep = app.NewSweepService(repos.Event, repos.RefundEvent, deps.Broker, s.Queues, app.SweepServiceConfig{
		RetryDelay:  cfg.Webhook.RetryDelay,
		Concurrency: cfg.Webhook.SweepConcurrency,
	}, log)
	s.Retention = app.NewRetentionService(repos.Event, repos.RefundEvent, app.RetentionServiceConfig{
		Retention: cfg.Webhook.Retention,
		Policy:    app.RetentionPolicy(cfg.Webhook.RetentionPolicy),
		DryRun:    cfg.Webhook.RetentionDryRun,
	}, log)

	s.Tokens = jwt.NewGenerator(jwt.TokenConfig{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.JWTIssuer,
		Duration: cfg.Auth.TokenTTL,
	})

	return s
}
