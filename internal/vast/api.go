package vast

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vastctl/vastctl/internal/slogger"
)

// Polling defaults for verified mutations.
const (
	DefaultReadyTimeout = 600 * time.Second
	DefaultStopTimeout  = 180 * time.Second
	DefaultPollInterval = 5 * time.Second
)

// ErrNotFound is returned when an instance ID is absent from the account.
var ErrNotFound = errors.New("instance not found")

// ErrTimeout is returned when a verified mutation did not converge in time.
var ErrTimeout = errors.New("timed out waiting for instance")

// API exposes typed marketplace operations.
//
//go:generate go run github.com/matryer/moq@latest -pkg mocks -out mocks/api.go . API
type API interface {
	ListInstances(ctx context.Context) ([]Instance, error)
	GetInstance(ctx context.Context, id int64) (*Instance, error)
	CreateInstance(ctx context.Context, offerID int64, req CreateRequest) (*CreateResult, error)
	StartInstance(ctx context.Context, id int64) error
	StopInstance(ctx context.Context, id int64) error
	DestroyInstance(ctx context.Context, id int64) error
	AttachSSHKey(ctx context.Context, id int64, publicKey string) error
	SSHInfo(ctx context.Context, id int64) (*SSHInfo, error)
	SearchOffers(ctx context.Context, q OfferQuery) ([]Offer, error)
	SearchCPUOffers(ctx context.Context, q CPUQuery) ([]Offer, error)

	WaitForRunning(ctx context.Context, id int64, timeout time.Duration) (*Instance, error)
	WaitUntilStopped(ctx context.Context, id int64, timeout time.Duration) error
	WaitUntilGone(ctx context.Context, id int64, timeout time.Duration) error
}

// CreateRequest holds the parameters for accepting an offer.
type CreateRequest struct {
	Image   string
	DiskGB  int
	OnStart string
	Label   string
}

// poll is the interval between status checks; a field so tests can shrink it.
type api struct {
	client *Client
	poll   time.Duration
}

var _ API = (*api)(nil)

// NewAPI wraps a transport client with typed operations. A poll interval
// of zero means DefaultPollInterval.
func NewAPI(client *Client, poll time.Duration) API {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &api{client: client, poll: poll}
}

func (a *api) ListInstances(ctx context.Context) ([]Instance, error) {
	var resp struct {
		Instances []Instance `json:"instances"`
	}
	if err := a.client.do(ctx, http.MethodGet, "/instances/", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	return resp.Instances, nil
}

func (a *api) GetInstance(ctx context.Context, id int64) (*Instance, error) {
	instances, err := a.ListInstances(ctx)
	if err != nil {
		return nil, err
	}
	for i := range instances {
		if instances[i].ID == id {
			return &instances[i], nil
		}
	}
	return nil, fmt.Errorf("instance %d: %w", id, ErrNotFound)
}

func (a *api) CreateInstance(ctx context.Context, offerID int64, req CreateRequest) (*CreateResult, error) {
	payload := map[string]any{
		"client_id": "me",
		"image":     req.Image,
		"disk":      req.DiskGB,
		"onstart":   req.OnStart,
		"runtype":   "ssh",
		"label":     req.Label,
	}

	var result CreateResult
	if err := a.client.do(ctx, http.MethodPut, fmt.Sprintf("/asks/%d/", offerID), nil, payload, &result); err != nil {
		return nil, fmt.Errorf("accept offer %d: %w", offerID, err)
	}
	return &result, nil
}

func (a *api) StartInstance(ctx context.Context, id int64) error {
	if err := a.setState(ctx, id, "running"); err != nil {
		return fmt.Errorf("start instance %d: %w", id, err)
	}
	return nil
}

func (a *api) StopInstance(ctx context.Context, id int64) error {
	if err := a.setState(ctx, id, "stopped"); err != nil {
		return fmt.Errorf("stop instance %d: %w", id, err)
	}
	return nil
}

func (a *api) setState(ctx context.Context, id int64, state string) error {
	return a.client.do(ctx, http.MethodPut, fmt.Sprintf("/instances/%d/", id), nil,
		map[string]any{"state": state}, nil)
}

func (a *api) DestroyInstance(ctx context.Context, id int64) error {
	if err := a.client.do(ctx, http.MethodDelete, fmt.Sprintf("/instances/%d/", id), nil, nil, nil); err != nil {
		return fmt.Errorf("destroy instance %d: %w", id, err)
	}
	return nil
}

func (a *api) AttachSSHKey(ctx context.Context, id int64, publicKey string) error {
	if err := a.client.do(ctx, http.MethodPost, fmt.Sprintf("/instances/%d/ssh/", id), nil,
		map[string]any{"ssh_key": publicKey}, nil); err != nil {
		return fmt.Errorf("attach ssh key to instance %d: %w", id, err)
	}
	return nil
}

// SSHInfo resolves the SSH endpoint for an instance, preferring the proxy
// address over a direct connection.
func (a *api) SSHInfo(ctx context.Context, id int64) (*SSHInfo, error) {
	inst, err := a.GetInstance(ctx, id)
	if err != nil {
		return nil, err
	}

	if inst.SSHHost != "" && inst.SSHPort > 0 {
		return &SSHInfo{Host: inst.SSHHost, Port: inst.SSHPort}, nil
	}
	if inst.PublicIPAddr != "" && inst.DirectPortStart > 0 {
		return &SSHInfo{Host: inst.PublicIPAddr, Port: inst.DirectPortStart}, nil
	}

	return nil, fmt.Errorf("no ssh endpoint available for instance %d", id)
}

// WaitForRunning polls until the instance reports running.
func (a *api) WaitForRunning(ctx context.Context, id int64, timeout time.Duration) (*Instance, error) {
	if timeout == 0 {
		timeout = DefaultReadyTimeout
	}

	var running *Instance
	err := a.pollUntil(ctx, timeout, func(ctx context.Context) (bool, error) {
		inst, err := a.GetInstance(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if inst.ActualStatus == "running" {
			running = inst
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("instance %d did not reach running within %s: %w", id, timeout, err)
	}
	return running, nil
}

// WaitUntilStopped polls until the instance reports stopped.
func (a *api) WaitUntilStopped(ctx context.Context, id int64, timeout time.Duration) error {
	if timeout == 0 {
		timeout = DefaultStopTimeout
	}

	err := a.pollUntil(ctx, timeout, func(ctx context.Context) (bool, error) {
		inst, err := a.GetInstance(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// gone entirely counts as stopped
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return inst.ActualStatus == "stopped", nil
	})
	if err != nil {
		return fmt.Errorf("instance %d did not stop within %s: %w", id, timeout, err)
	}
	return nil
}

// WaitUntilGone polls until the instance no longer appears in the account.
func (a *api) WaitUntilGone(ctx context.Context, id int64, timeout time.Duration) error {
	if timeout == 0 {
		timeout = DefaultStopTimeout
	}

	err := a.pollUntil(ctx, timeout, func(ctx context.Context) (bool, error) {
		_, err := a.GetInstance(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("instance %d still present after %s: %w", id, timeout, err)
	}
	return nil
}

// pollUntil runs check every poll interval until it reports done, the
// timeout elapses, or the context is canceled. Transient API errors are
// logged and polling continues; the timeout is the backstop.
func (a *api) pollUntil(ctx context.Context, timeout time.Duration, check func(ctx context.Context) (bool, error)) error {
	log := slogger.FromContext(ctx)
	deadline := time.Now().Add(timeout)

	for {
		done, err := check(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Debug("poll check failed, retrying", "error", err)
		}
		if done {
			return nil
		}

		if time.Now().After(deadline) {
			return ErrTimeout
		}

		timer := time.NewTimer(a.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
