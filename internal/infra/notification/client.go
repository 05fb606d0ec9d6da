// Package notification delivers signed JSON callbacks to receiver endpoints.
package notification

import (
	"time"
)

// DefaultTimeout bounds a single callback when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent identifies outbound callbacks.
const DefaultUserAgent = "refundly-webhooks/1.0"

// maxExcerpt caps how much of a receiver's response body is kept for logging.
const maxExcerpt = 1 << 10

// Request is one callback to send.
type Request struct {
	URL string
	// Secret signs the body when non-empty.
	Secret string
	Body   []byte
}

// SendResult represents the outcome of one callback.
// Transport failures leave StatusCode at zero.
type SendResult struct {
	Success    bool
	StatusCode int
	Excerpt    string
	Duration   time.Duration
	Error      string
}

// Config holds the configuration for creating a webhook client.
type Config struct {
	Timeout   time.Duration
	UserAgent string
}
