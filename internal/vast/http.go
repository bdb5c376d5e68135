// Package vast implements a typed client for the Vast.ai marketplace REST
// API: rate-limited transport, instance lifecycle operations, and offer
// search with ranking.
package vast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vastctl/vastctl/internal/retry"
	"github.com/vastctl/vastctl/internal/slogger"
)

// DefaultBaseURL is the production marketplace API endpoint.
const DefaultBaseURL = "https://console.vast.ai/api/v0"

const (
	defaultTimeout     = 30 * time.Second
	defaultMinInterval = 1200 * time.Millisecond
)

// ErrMissingAPIKey is returned when a client is constructed without a key.
var ErrMissingAPIKey = errors.New("missing API key")

// APIError is an error response from the marketplace. StatusCode is 0 when
// the request never produced an HTTP response (network failure, bad URL).
type APIError struct {
	StatusCode int
	Message    string
	Payload    json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vast api (%d): %s", e.StatusCode, e.Message)
}

// IsRateLimited reports whether err is a 429 response.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// ClientOptions configures a marketplace client. Zero values fall back to
// production defaults.
type ClientOptions struct {
	APIKey  string
	BaseURL string

	// HTTPClient overrides the underlying HTTP client (tests).
	HTTPClient *http.Client

	// MinInterval is the minimum spacing between requests. The marketplace
	// throttles aggressively, so requests are paced client-side too.
	MinInterval time.Duration

	// RateLimitBackoff governs retries on 429 responses.
	RateLimitBackoff retry.Policy
}

// Client is a rate-limited HTTP client for the marketplace API.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	limiter *rate.Limiter
	backoff retry.Policy
}

// NewClient creates a marketplace client.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: defaultTimeout}
	}

	interval := opts.MinInterval
	if interval == 0 {
		interval = defaultMinInterval
	}

	backoff := opts.RateLimitBackoff
	if backoff.Attempts == 0 {
		backoff = retry.Ladder(2*time.Second, 3*time.Second, 5*time.Second, 9*time.Second)
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		httpc:   httpc,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		backoff: backoff,
	}, nil
}

// do performs a single API request. The response body is decoded into out
// when out is non-nil and the body is non-empty. 429 responses are retried
// per the client's backoff policy; all other errors are returned as-is.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	log := slogger.FromContext(ctx)
	log.Debug("api request", "method", method, "path", path)

	return retry.Do(ctx, c.backoff, func(ctx context.Context) error {
		err := c.once(ctx, method, u, payload, out)
		if err != nil && !IsRateLimited(err) {
			return retry.Permanent(err)
		}
		if err != nil {
			log.Warn("rate limited, backing off", "path", path)
		}
		return err
	})
}

func (c *Client) once(ctx context.Context, method, u string, payload []byte, out any) error {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return &APIError{StatusCode: 0, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &APIError{StatusCode: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: 0, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode >= 400 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    extractErrorMessage(resp.StatusCode, respBody),
			Payload:    rawJSON(respBody),
		}
	}

	// 204 and friends carry no body
	if len(respBody) == 0 || out == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// extractErrorMessage pulls a human-readable message out of an error body.
// The marketplace is inconsistent about which key it uses.
func extractErrorMessage(status int, body []byte) string {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err == nil {
		for _, key := range []string{"msg", "error", "message", "detail"} {
			if s, ok := data[key].(string); ok && s != "" {
				return s
			}
		}
	}
	if len(body) > 0 {
		return string(body)
	}
	return fmt.Sprintf("HTTP %d", status)
}

func rawJSON(body []byte) json.RawMessage {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return nil
}
