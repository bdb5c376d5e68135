package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vastctl/vastctl/internal/provision"
	"github.com/vastctl/vastctl/internal/slogger"
)

// DefaultBaseURL is the production cloud service endpoint.
const DefaultBaseURL = "https://api.vastctl.cloud"

const defaultCloudTimeout = 20 * time.Second

// ErrDisabled is returned when cloud sync is turned off in configuration.
var ErrDisabled = errors.New("cloud sync is disabled")

// APIError is an error response from the cloud service. StatusCode is 0
// when the request never produced an HTTP response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cloud api (%d): %s", e.StatusCode, e.Message)
}

// ClientOptions configures a cloud client.
type ClientOptions struct {
	BaseURL string
	Enabled bool
	Tokens  *TokenStore

	// HTTPClient overrides the underlying HTTP client (tests).
	HTTPClient *http.Client
}

// Client is an authenticated HTTP client for the cloud service.
type Client struct {
	baseURL string
	enabled bool
	tokens  *TokenStore
	httpc   *http.Client
}

// NewClient creates a cloud client.
func NewClient(opts ClientOptions) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: defaultCloudTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		enabled: opts.Enabled,
		tokens:  opts.Tokens,
		httpc:   httpc,
	}
}

// Enabled reports whether cloud sync is turned on.
func (c *Client) Enabled() bool {
	return c.enabled
}

// LoggedIn reports whether a token is available.
func (c *Client) LoggedIn() bool {
	return c.tokens != nil && c.tokens.LoggedIn()
}

// UserInfo describes the authenticated account.
type UserInfo struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	Organization string `json:"organization"`
}

// verifyResponse tolerates both flat and nested user payloads.
type verifyResponse struct {
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Organization string    `json:"organization"`
	User         *UserInfo `json:"user"`
}

// VerifyToken checks the stored token against the cloud service and
// returns the account it belongs to.
func (c *Client) VerifyToken(ctx context.Context) (*UserInfo, error) {
	var resp verifyResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/cli-tokens/verify", nil, &resp); err != nil {
		return nil, err
	}

	info := UserInfo{Email: resp.Email, Name: resp.Name, Organization: resp.Organization}
	if resp.User != nil {
		if info.Email == "" {
			info.Email = resp.User.Email
		}
		if info.Name == "" {
			info.Name = resp.User.Name
		}
		if info.Organization == "" {
			info.Organization = resp.User.Organization
		}
	}
	return &info, nil
}

// PushSnapshot uploads one telemetry snapshot.
func (c *Client) PushSnapshot(ctx context.Context, snap Snapshot) error {
	if !c.enabled {
		return ErrDisabled
	}
	if snap.TS.IsZero() {
		snap.TS = time.Now().UTC()
	}
	return c.do(ctx, http.MethodPost, "/v1/cli/snapshots", snap, nil)
}

// profileEntry is the wire format for one hosted profile.
type profileEntry struct {
	Name         string           `json:"name"`
	Slug         string           `json:"slug"`
	Description  string           `json:"description"`
	Image        string           `json:"image"`
	Provisioning provision.Config `json:"provisioning"`
}

func (e profileEntry) key() string {
	if e.Slug != "" {
		return e.Slug
	}
	return e.Name
}

func (e profileEntry) profile() provision.Profile {
	return provision.Profile{
		Description:  e.Description,
		Image:        e.Image,
		Provisioning: e.Provisioning,
	}
}

// FetchProfiles downloads all hosted provisioning profiles, keyed by slug.
func (c *Client) FetchProfiles(ctx context.Context) (map[string]provision.Profile, error) {
	// The endpoint has returned both a bare list and a wrapped object.
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/v1/profiles", nil, &raw); err != nil {
		return nil, err
	}

	var entries []profileEntry
	var wrapped struct {
		Profiles []profileEntry `json:"profiles"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Profiles != nil {
		entries = wrapped.Profiles
	} else if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}

	profiles := make(map[string]provision.Profile, len(entries))
	for _, e := range entries {
		if e.key() == "" {
			continue
		}
		profiles[e.key()] = e.profile()
	}
	return profiles, nil
}

// GetProfile downloads one hosted profile by name or slug.
func (c *Client) GetProfile(ctx context.Context, name string) (*provision.Profile, error) {
	var entry profileEntry
	if err := c.do(ctx, http.MethodGet, "/v1/profiles/"+name, nil, &entry); err != nil {
		return nil, err
	}
	p := entry.profile()
	return &p, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.tokens == nil {
		return ErrNotLoggedIn
	}
	token, err := c.tokens.Load()
	if err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	log := slogger.FromContext(ctx)
	log.Debug("cloud api request", "method", method, "path", path)

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return &APIError{StatusCode: 0, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+token)
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
			Message:    cloudErrorMessage(resp.StatusCode, respBody),
		}
	}

	if len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func cloudErrorMessage(status int, body []byte) string {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err == nil {
		for _, key := range []string{"message", "error", "msg", "detail"} {
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
