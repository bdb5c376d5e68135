package cloud

import (
	"context"

	"github.com/vastctl/vastctl/internal/instance"
	"github.com/vastctl/vastctl/internal/slogger"
)

// SyncEvent builds and pushes a snapshot tagged with a lifecycle event.
// Telemetry must never break the command that triggered it, so every
// failure is logged at debug level and swallowed.
func SyncEvent(ctx context.Context, c *Client, configDir string, instances []*instance.Instance, eventType, instanceName string) {
	log := slogger.FromContext(ctx)

	if c == nil || !c.Enabled() {
		return
	}
	if !c.LoggedIn() {
		log.Debug("cloud sync skipped, not logged in", "event", eventType)
		return
	}

	id, err := InstallationID(configDir)
	if err != nil {
		log.Debug("cloud sync skipped", "error", err)
		return
	}

	snap := BuildSnapshot(id, instances).WithEvent(eventType, instanceName, nil)
	if err := c.PushSnapshot(ctx, snap); err != nil {
		log.Debug("cloud sync failed", "event", eventType, "error", err)
		return
	}
	log.Debug("cloud sync pushed", "event", eventType, "instances", len(instances))
}
