// Package routes registers all HTTP routes for the API.
package routes

import (
	"net/http"

	infrahttp "github.com/refundly/webhooks/internal/infra/http"
	"github.com/refundly/webhooks/internal/infra/http/handler"
	"github.com/refundly/webhooks/internal/infra/http/middleware"
	"github.com/refundly/webhooks/pkg/logger"
)

// Middleware is an alias to the http package's Middleware type.
type Middleware = infrahttp.Middleware

// Router is an alias to the http package's Router interface.
type Router = infrahttp.Router

// Handlers holds all HTTP handlers for route registration.
type Handlers struct {
	Health       *handler.HealthHandler
	Subscription *handler.SubscriptionHandler
	Event        *handler.EventHandler
	Internal     *handler.InternalHandler
}

// Options carries the cross-cutting middleware the routes need.
type Options struct {
	Tokens middleware.TokenValidator
	// RateLimit is applied after authentication so vendors are limited individually.
	RateLimit Middleware
	Logger    *logger.Logger
}

// Register registers all application routes.
//   - /health, /ready, /metrics: public probes (misc.go)
//   - /api/v1: vendor-scoped subscription and event management
//   - /internal: platform services (vendor onboarding, notification triggers)
func Register(router Router, h Handlers, opts Options) {
	registerHealthRoutes(router, h.Health)

	auth := Middleware(middleware.Authenticate(opts.Tokens, opts.Logger))
	rateLimit := opts.RateLimit
	if rateLimit == nil {
		rateLimit = func(next http.Handler) http.Handler { return next }
	}

	router.Group("/api/v1", func(r Router) {
		if h.Subscription != nil {
			r.POST("/subscriptions", h.Subscription.Create)
			r.GET("/subscriptions", h.Subscription.List)
			r.POST("/subscriptions/{id}/enable", h.Subscription.Enable)
			r.POST("/subscriptions/{id}/disable", h.Subscription.Disable)
			r.DELETE("/subscriptions/{id}", h.Subscription.Delete)
		}
		if h.Event != nil {
			r.GET("/events", h.Event.List)
		}
	}, auth, rateLimit, middleware.RequireVendor())

	if h.Internal != nil {
		router.Group("/internal", func(r Router) {
			r.POST("/vendors", h.Internal.CreateVendor)
			r.POST("/refunds/{id}/notify", h.Internal.NotifyVendor)
			r.POST("/refunds/{id}/notify-partner", h.Internal.NotifyPartner)
		}, auth, middleware.RequireInternal())
	}
}
