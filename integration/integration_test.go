//go:build integration

// Package integration provides integration tests for the vastctl CLI using
// testscript. Only offline commands are exercised; nothing here talks to
// the marketplace.
package integration

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/vastctl/vastctl/internal/cmd"
)

// TestMain registers the CLI entrypoint so scripts can run "vastctl"
// without building a separate binary.
func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"vastctl": func() int {
			if err := cmd.Execute(); err != nil {
				return 1
			}
			return 0
		},
	}))
}

// TestScripts runs all testscript files in testdata/scripts.
func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir:   "testdata/scripts",
		Setup: setupTestEnv,
	})
}

// setupTestEnv isolates config, registry, and token storage from the host
// environment.
func setupTestEnv(env *testscript.Env) error {
	home := filepath.Join(env.WorkDir, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("create test home: %w", err)
	}

	env.Setenv("HOME", home)
	env.Setenv("VAST_API_KEY", "")
	env.Setenv("VASTCTL_CLOUD_TOKEN", "")
	env.Setenv("EDITOR", "")

	return nil
}
