package handler

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// readyTimeout bounds the dependency pings of one readiness probe.
const readyTimeout = 5 * time.Second

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

// Ping calls f.
func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	checks map[string]Pinger
	now    func() time.Time
}

// HealthHandlerOption configures the health handler.
type HealthHandlerOption func(*HealthHandler)

// WithCheck adds a named dependency to the readiness probe.
func WithCheck(name string, p Pinger) HealthHandlerOption {
	return func(h *HealthHandler) {
		h.checks[name] = p
	}
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(opts ...HealthHandlerOption) *HealthHandler {
	h := &HealthHandler{checks: make(map[string]Pinger), now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Health handles GET /health (liveness).
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: h.now().UTC()})
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult represents a single dependency check.
type CheckResult struct {
	Status   string `json:"status"`
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Ready handles GET /ready. Any failing dependency turns the probe into a 503.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]CheckResult, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = checkDependency(ctx, h.checks[name])
		}()
	}
	wg.Wait()

	checks := make(map[string]CheckResult, len(names))
	status, code := "ready", http.StatusOK
	for i, name := range names {
		checks[name] = results[i]
		if results[i].Status != "ok" {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, ReadyResponse{Status: status, Timestamp: h.now().UTC(), Checks: checks})
}

func checkDependency(ctx context.Context, p Pinger) CheckResult {
	start := time.Now()
	err := p.Ping(ctx)
	duration := time.Since(start)

	if err != nil {
		return CheckResult{Status: "error", Duration: duration.String(), Error: err.Error()}
	}
	return CheckResult{Status: "ok", Duration: duration.String()}
}
