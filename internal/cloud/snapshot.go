package cloud

import (
	"math"
	"time"

	"github.com/vastctl/vastctl/internal/instance"
	"github.com/vastctl/vastctl/internal/version"
)

// InstanceSnapshot is the privacy-filtered view of a registry record that
// is allowed to leave the machine. It deliberately has no fields for the
// SSH endpoint, the Jupyter token, or anything environment-derived, so
// those values cannot leak by accident.
type InstanceSnapshot struct {
	Name                string     `json:"name"`
	RemoteID            int64      `json:"remote_id,omitempty"`
	Status              string     `json:"status"`
	GPUType             string     `json:"gpu_type,omitempty"`
	GPUCount            int        `json:"gpu_count,omitempty"`
	DiskGB              int        `json:"disk_gb,omitempty"`
	PricePerHour        float64    `json:"price_per_hour,omitempty"`
	BandwidthMbps       float64    `json:"bandwidth_mbps,omitempty"`
	CurrentCostEstimate float64    `json:"current_cost_estimate"`
	Project             string     `json:"project,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	LastAccessed        *time.Time `json:"last_accessed,omitempty"`
}

// ClientInfo identifies the pushing CLI build.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Summary aggregates fleet statistics for a snapshot.
type Summary struct {
	TotalInstances   int     `json:"total_instances"`
	RunningInstances int     `json:"running_instances"`
	StoppedInstances int     `json:"stopped_instances"`
	TotalCostPerHour float64 `json:"total_cost_per_hour"`
}

// Event carries the lifecycle action that triggered a snapshot push.
type Event struct {
	Type         string            `json:"type"`
	InstanceName string            `json:"instance_name,omitempty"`
	Details      map[string]string `json:"details"`
}

// Snapshot is one telemetry payload.
type Snapshot struct {
	InstallationID string             `json:"installation_id"`
	TS             time.Time          `json:"ts"`
	Instances      []InstanceSnapshot `json:"instances"`
	Client         ClientInfo         `json:"client"`
	Summary        Summary            `json:"summary"`
	Event          *Event             `json:"event,omitempty"`
}

// BuildSnapshot assembles a snapshot of the given registry records.
func BuildSnapshot(installationID string, instances []*instance.Instance) Snapshot {
	snap := Snapshot{
		InstallationID: installationID,
		TS:             time.Now().UTC(),
		Instances:      make([]InstanceSnapshot, 0, len(instances)),
		Client:         ClientInfo{Name: "vastctl", Version: version.Version},
	}

	var costPerHour float64
	for _, inst := range instances {
		snap.Instances = append(snap.Instances, sanitize(inst))

		switch inst.Status {
		case instance.StatusRunning:
			snap.Summary.RunningInstances++
			costPerHour += inst.PricePerHour
		case instance.StatusStopped:
			snap.Summary.StoppedInstances++
		}
	}
	snap.Summary.TotalInstances = len(snap.Instances)
	snap.Summary.TotalCostPerHour = math.Round(costPerHour*10000) / 10000

	return snap
}

// WithEvent returns a copy of the snapshot tagged with the triggering
// lifecycle event. Details must already be privacy-safe.
func (s Snapshot) WithEvent(eventType, instanceName string, details map[string]string) Snapshot {
	if details == nil {
		details = map[string]string{}
	}
	s.Event = &Event{Type: eventType, InstanceName: instanceName, Details: details}
	return s
}

func sanitize(inst *instance.Instance) InstanceSnapshot {
	return InstanceSnapshot{
		Name:                inst.Name,
		RemoteID:            inst.RemoteID,
		Status:              string(inst.Status),
		GPUType:             inst.GPUType,
		GPUCount:            inst.GPUCount,
		DiskGB:              inst.DiskGB,
		PricePerHour:        inst.PricePerHour,
		BandwidthMbps:       inst.BandwidthMbps,
		CurrentCostEstimate: inst.CurrentCost(),
		Project:             inst.Project,
		CreatedAt:           inst.CreatedAt,
		StartedAt:           inst.StartedAt,
		LastAccessed:        inst.LastAccessed,
	}
}
