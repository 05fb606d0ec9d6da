package routes

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/refundly/webhooks/internal/infra/http/handler"
)

// registerHealthRoutes registers the probes and the Prometheus scrape endpoint.
func registerHealthRoutes(router Router, h *handler.HealthHandler) {
	if h != nil {
		router.GET("/health", h.Health)
		router.GET("/ready", h.Ready)
	}
	router.GET("/metrics", promhttp.Handler().ServeHTTP)
}
