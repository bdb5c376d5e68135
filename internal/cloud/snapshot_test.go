package cloud

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vastctl/vastctl/internal/instance"
)

func testInstances() []*instance.Instance {
	started := time.Now().Add(-time.Hour)
	return []*instance.Instance{
		{
			Name:         "trainer",
			RemoteID:     555,
			GPUType:      "A100",
			GPUCount:     2,
			Status:       instance.StatusRunning,
			StartedAt:    &started,
			PricePerHour: 1.25,
			Project:      "research",
			SSHHost:      "ssh4.vast.ai",
			SSHPort:      22022,
			JupyterToken: "supersecrettoken1234567890abcdef",
		},
		{
			Name:         "worker",
			RemoteID:     777,
			Status:       instance.StatusStopped,
			PricePerHour: 0.40,
		},
	}
}

func TestBuildSnapshot(t *testing.T) {
	snap := BuildSnapshot("install-1", testInstances())

	assert.Equal(t, "install-1", snap.InstallationID)
	assert.False(t, snap.TS.IsZero())
	assert.Equal(t, "vastctl", snap.Client.Name)
	require.Len(t, snap.Instances, 2)

	assert.Equal(t, 2, snap.Summary.TotalInstances)
	assert.Equal(t, 1, snap.Summary.RunningInstances)
	assert.Equal(t, 1, snap.Summary.StoppedInstances)
	assert.Equal(t, 1.25, snap.Summary.TotalCostPerHour, "only running instances bill")

	assert.InDelta(t, 1.25, snap.Instances[0].CurrentCostEstimate, 0.01, "1h at $1.25/hr")
}

func TestSnapshotExcludesSensitiveFields(t *testing.T) {
	snap := BuildSnapshot("install-1", testInstances())

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	payload := string(data)
	assert.NotContains(t, payload, "ssh4.vast.ai", "ssh host must never leave the machine")
	assert.NotContains(t, payload, "22022", "ssh port must never leave the machine")
	assert.NotContains(t, payload, "supersecrettoken", "jupyter token must never leave the machine")
}

func TestSnapshotWithEvent(t *testing.T) {
	snap := BuildSnapshot("install-1", nil).WithEvent("stop", "trainer", nil)

	require.NotNil(t, snap.Event)
	assert.Equal(t, "stop", snap.Event.Type)
	assert.Equal(t, "trainer", snap.Event.InstanceName)
	assert.NotNil(t, snap.Event.Details)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event"`)
}
