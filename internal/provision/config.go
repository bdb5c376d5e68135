// Package provision builds onstart scripts for rented machines and manages
// the provisioning configuration they are generated from.
package provision

// Config describes what gets installed and run on a freshly rented
// machine. The zero value provisions nothing beyond the Python bootstrap
// and Jupyter.
type Config struct {
	Pip      PipConfig     `mapstructure:"pip" yaml:"pip,omitempty" json:"pip,omitempty"`
	Apt      AptConfig     `mapstructure:"apt" yaml:"apt,omitempty" json:"apt,omitempty"`
	Torch    TorchConfig   `mapstructure:"torch" yaml:"torch,omitempty" json:"torch,omitempty"`
	Logging  LoggingConfig `mapstructure:"logging" yaml:"logging,omitempty" json:"logging,omitempty"`
	Commands []string      `mapstructure:"commands" yaml:"commands,omitempty" json:"commands,omitempty"`
}

// PipConfig lists Python packages to install.
type PipConfig struct {
	Packages []string `mapstructure:"packages" yaml:"packages,omitempty" json:"packages,omitempty"`
	// FastPackages is the minimal set used with --fast.
	FastPackages []string `mapstructure:"fast_packages" yaml:"fast_packages,omitempty" json:"fast_packages,omitempty"`
}

// AptConfig lists system packages to install.
type AptConfig struct {
	Packages []string `mapstructure:"packages" yaml:"packages,omitempty" json:"packages,omitempty"`
}

// Torch install modes.
const (
	TorchModeSkip         = "skip"
	TorchModeAuto         = "auto"
	TorchModeCPU          = "cpu"
	TorchModeCU124        = "cu124"
	TorchModeCU128Nightly = "cu128-nightly"
)

// TorchConfig controls PyTorch installation.
type TorchConfig struct {
	// Mode is one of skip, auto, cpu, cu124, cu128-nightly. Empty means auto.
	Mode string `mapstructure:"mode" yaml:"mode,omitempty" json:"mode,omitempty"`
}

// LoggingConfig controls capture of provisioning output on the machine.
type LoggingConfig struct {
	// Enabled defaults to true when nil.
	Enabled    *bool  `mapstructure:"enabled" yaml:"enabled,omitempty" json:"enabled,omitempty"`
	LogFile    string `mapstructure:"log_file" yaml:"log_file,omitempty" json:"log_file,omitempty"`
	StatusFile string `mapstructure:"status_file" yaml:"status_file,omitempty" json:"status_file,omitempty"`
}

// Defaults for the remote log locations.
const (
	DefaultLogFile    = "/root/vastctl_onstart.log"
	DefaultStatusFile = "/root/.vastctl_setup.json"
)

// IsEnabled reports whether provisioning output should be captured.
func (l LoggingConfig) IsEnabled() bool {
	return l.Enabled == nil || *l.Enabled
}

// logFile returns the configured log path or the default.
func (l LoggingConfig) logFile() string {
	if l.LogFile != "" {
		return l.LogFile
	}
	return DefaultLogFile
}

func (l LoggingConfig) statusFile() string {
	if l.StatusFile != "" {
		return l.StatusFile
	}
	return DefaultStatusFile
}

// Merge overlays override onto base and returns the result. Every field
// participates: set scalar fields and non-nil slices in the override win,
// unset ones keep the base value. Slices replace rather than append so a
// profile can fully redefine a package list.
func Merge(base, override Config) Config {
	out := base

	if override.Pip.Packages != nil {
		out.Pip.Packages = override.Pip.Packages
	}
	if override.Pip.FastPackages != nil {
		out.Pip.FastPackages = override.Pip.FastPackages
	}
	if override.Apt.Packages != nil {
		out.Apt.Packages = override.Apt.Packages
	}
	if override.Torch.Mode != "" {
		out.Torch.Mode = override.Torch.Mode
	}
	if override.Logging.Enabled != nil {
		out.Logging.Enabled = override.Logging.Enabled
	}
	if override.Logging.LogFile != "" {
		out.Logging.LogFile = override.Logging.LogFile
	}
	if override.Logging.StatusFile != "" {
		out.Logging.StatusFile = override.Logging.StatusFile
	}
	if override.Commands != nil {
		out.Commands = override.Commands
	}

	return out
}
