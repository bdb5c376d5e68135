package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vastctl/vastctl/internal/cloud"
	"github.com/vastctl/vastctl/internal/config"
	"github.com/vastctl/vastctl/internal/exec"
	"github.com/vastctl/vastctl/internal/instance"
	"github.com/vastctl/vastctl/internal/registry"
	"github.com/vastctl/vastctl/internal/remote"
	"github.com/vastctl/vastctl/internal/slogger"
	"github.com/vastctl/vastctl/internal/vast"
)

// app bundles the dependencies most commands need. Built per-invocation
// because the registry holds an exclusive lock that must be released.
type app struct {
	cfg      *config.Config
	api      vast.API
	store    *registry.Store
	runner   *remote.Runner
	mgr      *instance.Manager
	executor exec.Executor
}

func requireConfig(ctx context.Context) (*config.Config, error) {
	cfg := ConfigFromContext(ctx)
	if cfg == nil {
		return nil, errors.New("configuration not loaded (see warnings above)")
	}
	return cfg, nil
}

// openApp wires up the marketplace client, registry, and instance manager.
// The returned closer releases the registry lock and must always be called.
func openApp(ctx context.Context) (*app, func(), error) {
	cfg, err := requireConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	api, err := newAPI(cfg)
	if err != nil {
		return nil, nil, err
	}

	executor := exec.New()
	if _, err := executor.LookPath("ssh"); err != nil {
		return nil, nil, errors.New("missing required dependency: ssh (install an OpenSSH client)")
	}

	store, err := registry.Open(cfg.RegistryPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open registry: %w", err)
	}

	runner := remote.NewRunner(executor)

	pubKey, err := readPublicKey(cfg.SSH.PublicKeyPath)
	if err != nil {
		slogger.L(ctx).Warn("ssh public key not readable, new instances will not get a key attached",
			"path", cfg.SSH.PublicKeyPath, "error", err)
	}

	mgr := instance.NewManager(api, store, runner, instance.ManagerConfig{
		SSHKeyPath:      cfg.SSHKeyPath,
		SSHPublicKey:    pubKey,
		SSHTimeout:      time.Duration(cfg.Defaults.SSHTimeout) * time.Second,
		VerifyMutations: cfg.Vast.VerifyMutations,
	})

	a := &app{
		cfg:      cfg,
		api:      api,
		store:    store,
		runner:   runner,
		mgr:      mgr,
		executor: executor,
	}
	closer := func() {
		if err := store.Close(); err != nil {
			slogger.L(ctx).Warn("close registry", "error", err)
		}
	}
	return a, closer, nil
}

// openStore opens just the registry, for commands that never talk to the
// marketplace and should work without an API key.
func openStore(ctx context.Context) (*config.Config, *registry.Store, func(), error) {
	cfg, err := requireConfig(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := registry.Open(cfg.RegistryPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open registry: %w", err)
	}

	closer := func() {
		if err := store.Close(); err != nil {
			slogger.L(ctx).Warn("close registry", "error", err)
		}
	}
	return cfg, store, closer, nil
}

// newAPI builds a marketplace client from config. Separate from openApp so
// search commands work without touching the registry.
func newAPI(cfg *config.Config) (vast.API, error) {
	key, err := cfg.RequireAPIKey()
	if err != nil {
		return nil, err
	}

	client, err := vast.NewClient(vast.ClientOptions{
		APIKey:  key,
		BaseURL: cfg.Vast.BaseURL,
		HTTPClient: &http.Client{
			Timeout: time.Duration(cfg.Vast.TimeoutSeconds) * time.Second,
		},
	})
	if err != nil {
		return nil, err
	}
	return vast.NewAPI(client, time.Duration(cfg.Vast.PollIntervalSeconds)*time.Second), nil
}

func readPublicKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// ensureSSHKey generates an ed25519 keypair at the configured path when
// none exists yet, matching what the marketplace expects to be attached.
func ensureSSHKey(ctx context.Context, executor exec.Executor, cfg *config.Config) error {
	if _, err := os.Stat(cfg.SSHKeyPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat ssh key: %w", err)
	}

	if _, err := executor.LookPath("ssh-keygen"); err != nil {
		return fmt.Errorf("ssh key %s missing and ssh-keygen not found", cfg.SSHKeyPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.SSHKeyPath), 0o700); err != nil {
		return fmt.Errorf("create ssh key directory: %w", err)
	}

	slogger.L(ctx).Info("generating ssh keypair", "path", cfg.SSHKeyPath)
	_, err := executor.Run(ctx, exec.RunOptions{
		Name: "ssh-keygen",
		Args: []string{"-t", "ed25519", "-f", cfg.SSHKeyPath, "-N", "", "-C", "vastctl"},
	})
	if err != nil {
		return fmt.Errorf("generate ssh key: %w", err)
	}
	return nil
}

// resolveName picks the instance name from args or falls back to the
// active instance.
func resolveName(store *registry.Store, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	name, err := store.ActiveName()
	if err != nil {
		if errors.Is(err, registry.ErrNoActive) {
			return "", errors.New("no instance specified and no active instance set (run: vastctl use <name>)")
		}
		return "", err
	}
	return name, nil
}

// sshTarget builds the SSH endpoint for a tracked instance.
func sshTarget(inst *instance.Instance, cfg *config.Config) (remote.Target, error) {
	if inst.SSHHost == "" || inst.SSHPort == 0 {
		return remote.Target{}, fmt.Errorf("no SSH endpoint recorded for %q (try: vastctl refresh)", inst.Name)
	}
	return remote.Target{
		Host:    inst.SSHHost,
		Port:    inst.SSHPort,
		KeyPath: cfg.SSHKeyPath,
	}, nil
}

// touchInstance records an access and persists it. Failures are logged,
// not surfaced, since the actual operation already succeeded.
func touchInstance(ctx context.Context, store *registry.Store, inst *instance.Instance) {
	inst.MarkAccessed()
	if err := store.Put(inst); err != nil {
		slogger.L(ctx).Warn("record access time", "instance", inst.Name, "error", err)
	}
}

// syncCloud pushes a snapshot after a lifecycle event when both the cloud
// integration and the per-event toggle are enabled. Best effort.
func syncCloud(ctx context.Context, a *app, enabled bool, eventType, instanceName string) {
	if !a.cfg.Cloud.Enabled || !enabled {
		return
	}

	loader := LoaderFromContext(ctx)
	if loader == nil {
		return
	}

	instances, err := a.store.List(instance.ListFilter{})
	if err != nil {
		slogger.L(ctx).Debug("cloud sync skipped", "error", err)
		return
	}

	client := cloudClient(a.cfg)
	cloud.SyncEvent(ctx, client, loader.ConfigDir(), instances, eventType, instanceName)
}

// cloudClient builds the cloud client from config.
func cloudClient(cfg *config.Config) *cloud.Client {
	return cloud.NewClient(cloud.ClientOptions{
		BaseURL: cfg.Cloud.BaseURL,
		Enabled: cfg.Cloud.Enabled,
		Tokens:  cloud.NewTokenStore(cfg.Cloud.TokenFile),
	})
}
