package notification

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/refundly/webhooks/pkg/signature"
)

// WebhookClient posts signed JSON payloads.
type WebhookClient struct {
	userAgent  string
	httpClient *http.Client
	now        func() time.Time
}

// NewWebhookClient creates a new webhook client.
func NewWebhookClient(config Config) *WebhookClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &WebhookClient{
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		now: time.Now,
	}
}

// Send posts the request body. A non-2xx answer or a transport failure is reported
// through the result; the error return is reserved for requests that could not be built.
func (c *WebhookClient) Send(ctx context.Context, r Request) (*SendResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(r.Body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if r.Secret != "" {
		req.Header.Set(signature.Header, signature.Sign(r.Secret, r.Body))
	}

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &SendResult{
			Success:  false,
			Duration: c.now().Sub(start),
			Error:    fmt.Sprintf("send request failed: %v", err),
		}, nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxExcerpt))
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	result := &SendResult{
		StatusCode: resp.StatusCode,
		Excerpt:    string(body),
		Duration:   c.now().Sub(start),
	}

	if resp.StatusCode >= 300 {
		result.Error = fmt.Sprintf("webhook returned status %d", resp.StatusCode)
		return result, nil
	}

	result.Success = true
	return result, nil
}
