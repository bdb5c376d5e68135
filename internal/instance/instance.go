// Package instance provides high-level instance lifecycle management:
// renting machines from the marketplace, provisioning them over SSH, and
// keeping the local registry in sync with remote state.
package instance

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for instance operations.
var (
	ErrNotFound      = errors.New("instance not found")
	ErrAlreadyExists = errors.New("instance already exists")
	ErrNotRunning    = errors.New("instance is not running")
	ErrNoOffers      = errors.New("no offers match the requested hardware")
	ErrNoRemoteID    = errors.New("instance has no remote ID")
)

// ProvisionError describes a machine that was rented but could not be made
// ready. The remote instance still exists and accrues cost until destroyed.
type ProvisionError struct {
	Name     string
	RemoteID int64
	Step     string
	Err      error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("instance %s (remote %d) failed during %s: %v", e.Name, e.RemoteID, e.Step, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// Status represents the instance lifecycle state.
type Status string

// Instance status constants.
const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// Instance is the locally tracked view of a rented machine.
type Instance struct {
	// Identity
	Name      string `json:"name"`
	RemoteID  int64  `json:"remote_id,omitempty"`
	MachineID int64  `json:"machine_id,omitempty"`

	// Requested hardware
	GPUType  string `json:"gpu_type,omitempty"`
	GPUCount int    `json:"gpu_count,omitempty"`
	CPUCores int    `json:"cpu_cores,omitempty"`
	RAMGB    int    `json:"ram_gb,omitempty"`
	DiskGB   int    `json:"disk_gb,omitempty"`
	Image    string `json:"image,omitempty"`

	// Organization
	Project     string   `json:"project,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// Connection info
	SSHHost      string `json:"ssh_host,omitempty"`
	SSHPort      int    `json:"ssh_port,omitempty"`
	JupyterToken string `json:"jupyter_token,omitempty"`
	JupyterPort  int    `json:"jupyter_port,omitempty"`

	// Offer details captured at rent time
	PricePerHour  float64 `json:"price_per_hour,omitempty"`
	BandwidthMbps float64 `json:"bandwidth_mbps,omitempty"`
	Reliability   float64 `json:"reliability,omitempty"`

	// Lifecycle
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`

	// Accumulated accounting for completed running periods
	TotalRuntimeHours float64 `json:"total_runtime_hours,omitempty"`
	TotalCost         float64 `json:"total_cost,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// IsRunning reports whether the instance is currently running.
func (i *Instance) IsRunning() bool {
	return i.Status == StatusRunning
}

// ConnectionString returns "host:port" for display, or "" when unknown.
func (i *Instance) ConnectionString() string {
	if i.SSHHost == "" || i.SSHPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", i.SSHHost, i.SSHPort)
}

// JupyterURL returns the local tunnel URL for the notebook server, or ""
// when no token has been generated.
func (i *Instance) JupyterURL() string {
	if i.JupyterToken == "" {
		return ""
	}
	port := i.JupyterPort
	if port == 0 {
		port = 8888
	}
	return fmt.Sprintf("http://localhost:%d/lab?token=%s", port, i.JupyterToken)
}

// UpdateStatus transitions the instance to a new status and maintains the
// accounting invariants: StartedAt is set exactly when the instance is
// running, and accrued runtime/cost is flushed into the totals on any
// transition out of running.
func (i *Instance) UpdateStatus(status Status) {
	old := i.Status
	i.Status = status

	switch {
	case status == StatusRunning && old != StatusRunning:
		now := time.Now()
		i.StartedAt = &now
	case status != StatusRunning && old == StatusRunning:
		if i.StartedAt != nil {
			runtime := time.Since(*i.StartedAt).Hours()
			i.TotalRuntimeHours += runtime
			i.TotalCost += runtime * i.PricePerHour
		}
		i.StartedAt = nil
	}
}

// RuntimeHours returns accumulated runtime, including the current running
// period when applicable.
func (i *Instance) RuntimeHours() float64 {
	if i.IsRunning() && i.StartedAt != nil {
		return i.TotalRuntimeHours + time.Since(*i.StartedAt).Hours()
	}
	return i.TotalRuntimeHours
}

// CurrentCost returns accumulated cost, including the current running
// period when applicable.
func (i *Instance) CurrentCost() float64 {
	if i.IsRunning() && i.StartedAt != nil {
		return i.TotalCost + time.Since(*i.StartedAt).Hours()*i.PricePerHour
	}
	return i.TotalCost
}

// MarkAccessed records a connection to the instance.
func (i *Instance) MarkAccessed() {
	now := time.Now()
	i.LastAccessed = &now
}

// AddTag adds a tag if not already present.
func (i *Instance) AddTag(tag string) {
	for _, t := range i.Tags {
		if t == tag {
			return
		}
	}
	i.Tags = append(i.Tags, tag)
}

// ListFilter filters instance listings.
type ListFilter struct {
	Project string   // Filter by project (empty = all)
	Status  Status   // Filter by status (empty = all)
	Tags    []string // Match instances carrying any of these tags
}

// Matches reports whether the instance passes the filter.
func (i *Instance) Matches(f ListFilter) bool {
	if f.Project != "" && i.Project != f.Project {
		return false
	}
	if f.Status != "" && i.Status != f.Status {
		return false
	}
	if len(f.Tags) > 0 {
		found := false
		for _, want := range f.Tags {
			for _, have := range i.Tags {
				if want == have {
					found = true
					break
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}
