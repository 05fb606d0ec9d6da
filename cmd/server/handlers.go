package main

import (
	"github.com/refundly/webhooks/internal/infra/http/handler"
	"github.com/refundly/webhooks/internal/infra/http/routes"
	"github.com/refundly/webhooks/internal/infra/postgres"
	"github.com/refundly/webhooks/internal/infra/redis"
	"github.com/refundly/webhooks/pkg/logger"
)

// HandlerDeps contains dependencies needed to create handlers.
type HandlerDeps struct {
	Log         *logger.Logger
	DB          *postgres.DB
	RedisClient *redis.Client
	Repos       *Repositories
	Services    *Services
}

// NewHandlers initializes all HTTP handlers.
func NewHandlers(deps *HandlerDeps) routes.Handlers {
	log := deps.Log
	svc := deps.Services

	return routes.Handlers{
		Health: handler.NewHealthHandler(
			handler.WithCheck("database", deps.DB),
			handler.WithCheck("redis", deps.RedisClient),
		),
		Subscription: handler.NewSubscriptionHandler(svc.Subscription, log),
		Event:        handler.NewEventHandler(svc.Event, log),
		Internal:     handler.NewInternalHandler(svc.Vendor, svc.Producer, deps.Repos.Refund, log),
	}
}
