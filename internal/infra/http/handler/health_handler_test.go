package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler_Ready(t *testing.T) {
	healthy := PingerFunc(func(context.Context) error { return nil })
	broken := PingerFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") })

	tests := []struct {
		name       string
		opts       []HealthHandlerOption
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "no dependencies",
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{},
		},
		{
			name:       "all healthy",
			opts:       []HealthHandlerOption{WithCheck("database", healthy), WithCheck("redis", healthy)},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "ok", "redis": "ok"},
		},
		{
			name:       "redis down",
			opts:       []HealthHandlerOption{WithCheck("database", healthy), WithCheck("redis", broken)},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "ok", "redis": "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.opts...)
			rec := httptest.NewRecorder()

			h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			var resp ReadyResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			got := make(map[string]string, len(resp.Checks))
			for name, c := range resp.Checks {
				got[name] = c.Status
			}
			assert.Equal(t, tt.wantChecks, got)
		})
	}
}

func TestHealthHandler_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler().Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}
