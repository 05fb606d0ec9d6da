// Package handler implements the HTTP handlers of the webhook administration API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/refundly/webhooks/internal/infra/http/middleware"
	"github.com/refundly/webhooks/pkg/apierror"
	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/logger"
)

// ListResponse wraps list payloads.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

func newListResponse[T any](data []T) ListResponse[T] {
	if data == nil {
		data = []T{}
	}
	return ListResponse[T]{Data: data, Total: len(data)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes the request body into dst, writing the error response on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			middleware.WriteBodyTooLarge(w)
			return false
		}
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return false
	}
	return true
}

// writeError maps a service error to its API response. Server errors are logged with the request id.
func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	apiErr := apierror.FromDomain(err)
	if apiErr.Status >= http.StatusInternalServerError {
		log.WithContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	apiErr.WriteJSONWithRequestID(w, middleware.GetRequestID(r.Context()))
}

// pathID parses a positive numeric URL parameter.
func pathID(r *http.Request, key string) (shared.ID, error) {
	return shared.ParseID(chi.URLParam(r, key))
}

// parseQueryInt parses a query parameter as an integer.
// Returns defaultVal if the input is empty or invalid.
func parseQueryInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return val
}

// parseQueryBool parses a query parameter as a boolean pointer.
// Returns nil if the input is empty or not a boolean.
func parseQueryBool(s string) *bool {
	if s == "" {
		return nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return nil
	}
	return &val
}
