package cloud

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const identityFile = "installation_id"

// InstallationID returns the stable UUID identifying this installation,
// creating and persisting one under configDir on first use. The ID lets
// the cloud service correlate snapshots from the same machine without
// any account or hardware identifier.
func InstallationID(configDir string) (string, error) {
	path := filepath.Join(configDir, identityFile)

	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write installation id: %w", err)
	}
	return id, nil
}
