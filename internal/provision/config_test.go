package provision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

func baseConfig() Config {
	return Config{
		Pip:      PipConfig{Packages: []string{"transformers", "datasets"}, FastPackages: []string{"jupyterlab"}},
		Apt:      AptConfig{Packages: []string{"zip"}},
		Torch:    TorchConfig{Mode: TorchModeAuto},
		Logging:  LoggingConfig{LogFile: "/root/base.log"},
		Commands: []string{"echo base"},
	}
}

func TestMerge_EmptyOverrideKeepsBase(t *testing.T) {
	got := Merge(baseConfig(), Config{})
	assert.Equal(t, baseConfig(), got)
}

func TestMerge_OverrideWinsFieldByField(t *testing.T) {
	override := Config{
		Pip:   PipConfig{Packages: []string{"jax"}},
		Torch: TorchConfig{Mode: TorchModeSkip},
	}

	got := Merge(baseConfig(), override)

	// overridden
	assert.Equal(t, []string{"jax"}, got.Pip.Packages)
	assert.Equal(t, TorchModeSkip, got.Torch.Mode)
	// untouched
	assert.Equal(t, []string{"jupyterlab"}, got.Pip.FastPackages)
	assert.Equal(t, []string{"zip"}, got.Apt.Packages)
	assert.Equal(t, "/root/base.log", got.Logging.LogFile)
	assert.Equal(t, []string{"echo base"}, got.Commands)
}

func TestMerge_ListsReplaceNotAppend(t *testing.T) {
	got := Merge(baseConfig(), Config{Commands: []string{"echo override"}})
	assert.Equal(t, []string{"echo override"}, got.Commands)
}

func TestMerge_EmptyListOverridesWhenNonNil(t *testing.T) {
	// a profile can explicitly empty a package list
	got := Merge(baseConfig(), Config{Pip: PipConfig{Packages: []string{}}})
	assert.Empty(t, got.Pip.Packages)
	assert.NotNil(t, got.Pip.Packages)
}

func TestMerge_LoggingEnabledPointer(t *testing.T) {
	base := baseConfig()
	assert.True(t, base.Logging.IsEnabled(), "nil means enabled")

	got := Merge(base, Config{Logging: LoggingConfig{Enabled: boolPtr(false)}})
	assert.False(t, got.Logging.IsEnabled())

	// and base with false stays false when override leaves it unset
	base.Logging.Enabled = boolPtr(false)
	got = Merge(base, Config{})
	assert.False(t, got.Logging.IsEnabled())
}

func TestLoggingConfig_Defaults(t *testing.T) {
	var cfg LoggingConfig
	assert.True(t, cfg.IsEnabled())
	assert.Equal(t, DefaultLogFile, cfg.logFile())
	assert.Equal(t, DefaultStatusFile, cfg.statusFile())
}
