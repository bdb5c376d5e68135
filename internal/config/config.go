// Package config provides configuration management for vastctl.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/vastctl/vastctl/internal/provision"
	"github.com/vastctl/vastctl/internal/vast"
)

// Default configuration locations, relative to the home directory.
const (
	DefaultConfigDir  = ".config/vastctl"
	DefaultConfigFile = "config.yaml"
	DefaultDataDir    = ".local/share/vastctl"
)

// defaultImage has Python, pip, and torch pre-installed. Much safer than a
// bare CUDA image, which lacks Python entirely.
const defaultImage = "pytorch/pytorch:2.4.0-cuda12.4-cudnn9-runtime"

// Sentinel errors for configuration operations.
var (
	ErrInvalidKey = errors.New("invalid configuration key")
	ErrNoAPIKey   = errors.New("no API key configured (set VAST_API_KEY or run: vastctl config api_key <key>)")
)

// validKeys is built once from Config struct reflection.
var validKeys = buildValidKeys()

// validate is the shared validator instance.
var validate = validator.New()

// Config represents the full vastctl configuration.
type Config struct {
	APIKey         string `mapstructure:"api_key"`
	DefaultGPUType string `mapstructure:"default_gpu_type" validate:"required"`
	DefaultDiskGB  int    `mapstructure:"default_disk_gb" validate:"gt=0"`
	DefaultProfile string `mapstructure:"default_profile"`
	DefaultImage   string `mapstructure:"default_image" validate:"required"`
	SSHKeyPath     string `mapstructure:"ssh_key_path" validate:"required"`
	RegistryPath   string `mapstructure:"registry_path" validate:"required"`
	EnvFile        string `mapstructure:"env_file"`

	Defaults     DefaultsConfig               `mapstructure:"defaults"`
	Projects     ProjectsConfig               `mapstructure:"projects"`
	UI           UIConfig                     `mapstructure:"ui"`
	Transfer     TransferConfig               `mapstructure:"transfer"`
	Vast         VastConfig                   `mapstructure:"vast"`
	SSH          SSHConfig                    `mapstructure:"ssh"`
	Provisioning provision.Config             `mapstructure:"provisioning"`
	Cloud        CloudConfig                  `mapstructure:"cloud"`
	Profiles     map[string]provision.Profile `mapstructure:"profiles"`
}

// DefaultsConfig holds search and connection defaults for new instances.
type DefaultsConfig struct {
	BandwidthMin   float64 `mapstructure:"bandwidth_min" validate:"gte=0"`
	ReliabilityMin float64 `mapstructure:"reliability_min" validate:"gte=0,lte=1"`
	PriceMax       float64 `mapstructure:"price_max" validate:"gt=0"`
	JupyterPort    int     `mapstructure:"jupyter_port" validate:"gt=0,lte=65535"`
	SSHTimeout     int     `mapstructure:"ssh_timeout" validate:"gt=0"`
}

// ProjectsConfig holds project grouping configuration.
type ProjectsConfig struct {
	Default string `mapstructure:"default"`
	Active  string `mapstructure:"active"`
}

// UIConfig holds terminal output preferences.
type UIConfig struct {
	ConfirmStop bool `mapstructure:"confirm_stop"`
	ShowCosts   bool `mapstructure:"show_costs"`
}

// TransferConfig holds file transfer defaults.
type TransferConfig struct {
	MaxFileSizeMB    int      `mapstructure:"max_file_size_mb" validate:"gt=0"`
	IgnoreLargeFiles bool     `mapstructure:"ignore_large_files"`
	TimeoutSeconds   int      `mapstructure:"timeout_seconds" validate:"gt=0"`
	MaxWorkers       int      `mapstructure:"max_workers" validate:"gt=0"`
	ExcludePatterns  []string `mapstructure:"exclude_patterns"`
}

// VastConfig holds marketplace API settings.
type VastConfig struct {
	BaseURL             string `mapstructure:"base_url" validate:"required,url"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds" validate:"gt=0"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds" validate:"gt=0"`
	VerifyMutations     bool   `mapstructure:"verify_mutations"`
}

// SSHConfig holds SSH key settings.
type SSHConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path" validate:"required"`
}

// CloudConfig holds the optional telemetry service settings.
type CloudConfig struct {
	Enabled          bool         `mapstructure:"enabled"`
	BaseURL          string       `mapstructure:"base_url" validate:"required,url"`
	TimeoutSeconds   int          `mapstructure:"timeout_seconds" validate:"gt=0"`
	TokenFile        string       `mapstructure:"token_file"`
	ProfileCachePath string       `mapstructure:"profile_cache_path"`
	SyncOn           SyncOnConfig `mapstructure:"sync_on"`
}

// SyncOnConfig gates which lifecycle events trigger a telemetry push.
type SyncOnConfig struct {
	Start   bool `mapstructure:"start"`
	Stop    bool `mapstructure:"stop"`
	Kill    bool `mapstructure:"kill"`
	Refresh bool `mapstructure:"refresh"`
}

// Validate checks the configuration for errors using struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// RequireAPIKey returns the API key or an actionable error.
func (c *Config) RequireAPIKey() (string, error) {
	if c.APIKey == "" {
		return "", ErrNoAPIKey
	}
	return c.APIKey, nil
}

// ActiveProject returns the project new instances are grouped under.
func (c *Config) ActiveProject() string {
	if c.Projects.Active != "" {
		return c.Projects.Active
	}
	return c.Projects.Default
}

// Loader provides configuration loading and saving.
type Loader struct {
	v         *viper.Viper
	path      string
	homeDir   string
	configDir string
	dataDir   string
}

// NewLoader creates a new configuration loader.
func NewLoader() (*Loader, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}
	return newLoaderAt(home)
}

func newLoaderAt(home string) (*Loader, error) {
	configDir := filepath.Join(home, DefaultConfigDir)
	dataDir := filepath.Join(home, DefaultDataDir)
	configPath := filepath.Join(configDir, DefaultConfigFile)

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Environment variable binding
	v.SetEnvPrefix("VASTCTL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Legacy env var names are kept for users coming from other vast
	// tooling. BindEnv only fails with zero arguments.
	for _, b := range [][]string{
		{"api_key", "VASTCTL_API_KEY", "VAST_API_KEY"},
		{"ssh_key_path", "VASTCTL_SSH_KEY_PATH", "VAST_SSH_KEY"},
		{"default_gpu_type", "VASTCTL_GPU_TYPE", "VAST_GPU_TYPE"},
		{"default_disk_gb", "VASTCTL_DISK_GB", "VAST_DISK_GB"},
		{"cloud.base_url", "VASTCTL_CLOUD_URL"},
		{"cloud.enabled", "VASTCTL_CLOUD_ENABLED"},
	} {
		v.BindEnv(b...) //nolint:errcheck
	}

	l := &Loader{
		v:         v,
		path:      configPath,
		homeDir:   home,
		configDir: configDir,
		dataDir:   dataDir,
	}

	// Set defaults before any config reading
	l.setDefaults()

	return l, nil
}

// setDefaults sets all default configuration values using Viper.
func (l *Loader) setDefaults() {
	l.v.SetDefault("api_key", "")
	l.v.SetDefault("default_gpu_type", "A100")
	l.v.SetDefault("default_disk_gb", 200)
	l.v.SetDefault("default_profile", "")
	l.v.SetDefault("default_image", defaultImage)
	l.v.SetDefault("ssh_key_path", "~/.ssh/vast_rsa")
	l.v.SetDefault("registry_path", "~/"+DefaultDataDir+"/registry")
	l.v.SetDefault("env_file", "")

	l.v.SetDefault("defaults.bandwidth_min", 400.0)
	l.v.SetDefault("defaults.reliability_min", 0.95)
	l.v.SetDefault("defaults.price_max", 3.0)
	l.v.SetDefault("defaults.jupyter_port", 8888)
	l.v.SetDefault("defaults.ssh_timeout", 30)

	l.v.SetDefault("projects.default", "default")
	l.v.SetDefault("projects.active", "default")

	l.v.SetDefault("ui.confirm_stop", true)
	l.v.SetDefault("ui.show_costs", true)

	l.v.SetDefault("transfer.max_file_size_mb", 40)
	l.v.SetDefault("transfer.ignore_large_files", true)
	l.v.SetDefault("transfer.timeout_seconds", 900)
	l.v.SetDefault("transfer.max_workers", 4)
	l.v.SetDefault("transfer.exclude_patterns", []string{
		"*.tmp", "__pycache__", ".git", "node_modules", "*.log",
	})

	l.v.SetDefault("vast.base_url", vast.DefaultBaseURL)
	l.v.SetDefault("vast.timeout_seconds", 30)
	l.v.SetDefault("vast.poll_interval_seconds", 5)
	l.v.SetDefault("vast.verify_mutations", true)

	l.v.SetDefault("ssh.public_key_path", "~/.ssh/vast_rsa.pub")

	l.v.SetDefault("provisioning.pip.packages", []string{
		"jupyterlab", "notebook", "ipywidgets", "matplotlib",
		"scipy", "numpy", "pandas", "wandb",
	})
	l.v.SetDefault("provisioning.pip.fast_packages", []string{
		"jupyterlab", "notebook",
	})
	l.v.SetDefault("provisioning.torch.mode", "auto")
	l.v.SetDefault("provisioning.apt.packages", []string{
		"python3", "python3-pip", "python-is-python3", "zip", "unzip", "htop", "tmux",
	})

	l.v.SetDefault("cloud.enabled", false)
	l.v.SetDefault("cloud.base_url", "https://api.vastctl.cloud")
	l.v.SetDefault("cloud.timeout_seconds", 20)
	l.v.SetDefault("cloud.token_file", "~/"+DefaultConfigDir+"/cloud_token")
	l.v.SetDefault("cloud.profile_cache_path", "~/"+DefaultDataDir+"/cloud_profiles.json")
	l.v.SetDefault("cloud.sync_on.start", true)
	l.v.SetDefault("cloud.sync_on.stop", true)
	l.v.SetDefault("cloud.sync_on.kill", true)
	l.v.SetDefault("cloud.sync_on.refresh", true)
}

// Load reads the configuration file, creating defaults if it doesn't exist.
func (l *Loader) Load() (*Config, error) {
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		if err := l.createDefault(); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Expand paths
	cfg.SSHKeyPath = l.expandPath(cfg.SSHKeyPath)
	cfg.SSH.PublicKeyPath = l.expandPath(cfg.SSH.PublicKeyPath)
	cfg.RegistryPath = l.expandPath(cfg.RegistryPath)
	cfg.EnvFile = l.expandPath(cfg.EnvFile)
	cfg.Cloud.TokenFile = l.expandPath(cfg.Cloud.TokenFile)
	cfg.Cloud.ProfileCachePath = l.expandPath(cfg.Cloud.ProfileCachePath)

	// Built-in profiles sit under any the user declared; a user profile
	// with the same name wins.
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]provision.Profile{}
	}
	for name, p := range builtinProfiles {
		if _, ok := cfg.Profiles[name]; !ok {
			cfg.Profiles[name] = p
		}
	}

	return &cfg, nil
}

// Path returns the configuration file path.
func (l *Loader) Path() string {
	return l.path
}

// ConfigDir returns the configuration directory.
func (l *Loader) ConfigDir() string {
	return l.configDir
}

// DataDir returns the data directory.
func (l *Loader) DataDir() string {
	return l.dataDir
}

// All returns every setting as a nested map, suitable for rendering.
func (l *Loader) All() map[string]any {
	return l.v.AllSettings()
}

// Get returns a configuration value by dot-notation key.
func (l *Loader) Get(key string) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return l.v.Get(key), nil
}

// Set sets a configuration value by dot-notation key.
func (l *Loader) Set(key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	l.v.Set(key, value)
	return l.v.WriteConfig()
}

// createDefault writes the default configuration file using Viper.
func (l *Loader) createDefault() error {
	if err := os.MkdirAll(l.configDir, 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return l.v.SafeWriteConfigAs(l.path)
}

// expandPath replaces ~ with the home directory.
func (l *Loader) expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(l.homeDir, path[2:])
	}
	if path == "~" {
		return l.homeDir
	}
	return path
}

// ValidateKey checks if a key is a valid configuration key.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	// Check for exact match in derived valid keys
	if validKeys[key] {
		return nil
	}

	// Profile names are user-defined, so profiles.<name> and anything
	// below it cannot be enumerated up front.
	if key == "profiles" || strings.HasPrefix(key, "profiles.") {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrInvalidKey, key)
}

// buildValidKeys builds the set of valid keys from Config struct using reflection.
func buildValidKeys() map[string]bool {
	keys := make(map[string]bool)
	addKeysFromType(reflect.TypeOf(Config{}), "", keys)
	return keys
}

// addKeysFromType recursively adds keys from a struct type.
func addKeysFromType(t reflect.Type, prefix string, keys map[string]bool) {
	for i := range t.NumField() {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}
		tag = strings.SplitN(tag, ",", 2)[0]
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		keys[key] = true

		// Recurse into nested structs (but not maps)
		if field.Type.Kind() == reflect.Struct {
			addKeysFromType(field.Type, key, keys)
		}
	}
}
