// Package logging manages local copies of remote provisioning logs.
// Instances are transient; a saved log often outlives the machine that
// produced it.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir returns the log directory under the data directory.
func Dir(dataDir string) string {
	return filepath.Join(dataDir, "logs")
}

// InstancePath returns the local log file path for an instance.
func InstancePath(dataDir, name string) string {
	return filepath.Join(Dir(dataDir), name+".log")
}

// EnsureInstancePath creates the log directory if needed and returns the
// log file path for an instance.
func EnsureInstancePath(dataDir, name string) (string, error) {
	if err := os.MkdirAll(Dir(dataDir), 0o750); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}
	return InstancePath(dataDir, name), nil
}

// Saved returns the instance names that have a saved log.
func Saved(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(Dir(dataDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if ext := filepath.Ext(name); ext == ".log" {
			names = append(names, name[:len(name)-len(ext)])
		}
	}
	return names, nil
}
