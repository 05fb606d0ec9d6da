package middleware

import (
	"net/http"

	"github.com/refundly/webhooks/pkg/apierror"
)

// DefaultMaxBodySize is the default maximum request body size (1MB).
const DefaultMaxBodySize = 1 << 20

// BodyLimit limits the maximum size of request bodies.
// If maxBytes is 0, DefaultMaxBodySize is used.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hasNoBody(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > maxBytes {
				WriteBodyTooLarge(w)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// WriteBodyTooLarge writes the 413 response used when a body exceeds the limit.
func WriteBodyTooLarge(w http.ResponseWriter) {
	apierror.PayloadTooLarge().WriteJSON(w)
}

func hasNoBody(method string) bool {
	return method == http.MethodGet || method == http.MethodHead ||
		method == http.MethodOptions || method == http.MethodTrace
}
