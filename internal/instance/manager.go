package instance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vastctl/vastctl/internal/names"
	"github.com/vastctl/vastctl/internal/provision"
	"github.com/vastctl/vastctl/internal/remote"
	"github.com/vastctl/vastctl/internal/retry"
	"github.com/vastctl/vastctl/internal/slogger"
	"github.com/vastctl/vastctl/internal/vast"
)

// maxOfferAttempts bounds how many ranked offers creation will try before
// giving up; offer capacity routinely vanishes between search and accept.
const maxOfferAttempts = 3

// ErrOrphaned indicates a local record whose remote instance no longer
// exists; the record has been removed and a fresh create is required.
var ErrOrphaned = errors.New("instance no longer exists on the marketplace")

// registryStore is the internal interface for registry operations.
type registryStore interface {
	Put(inst *Instance) error
	Get(name string) (*Instance, error)
	Exists(name string) bool
	Remove(name string) error
	List(filter ListFilter) ([]*Instance, error)
	FindByRemoteID(remoteID int64) (*Instance, error)
}

// remoteProvisioner is the internal interface for post-boot SSH work.
type remoteProvisioner interface {
	WaitReady(ctx context.Context, t remote.Target, timeout time.Duration) error
	SetupWorkspace(ctx context.Context, t remote.Target) error
	InjectEnvFile(ctx context.Context, t remote.Target, content, path string) error
	InjectAutoEnv(ctx context.Context, t remote.Target, vars map[string]string) (int, error)
}

// ManagerConfig configures the Manager.
type ManagerConfig struct {
	SSHKeyPath   string // private key used for remote.Target
	SSHPublicKey string // public key content attached to new instances; empty skips attachment

	ReadyTimeout   time.Duration // instance boot (default vast.DefaultReadyTimeout)
	StopTimeout    time.Duration // stop verification (default vast.DefaultStopTimeout)
	DestroyTimeout time.Duration // destroy verification (default 300s)
	SSHTimeout     time.Duration // SSH readiness probe (default remote.DefaultReadyTimeout)

	// Retry policies for the marketplace timing races; zero values get
	// defaults in NewManager.
	AttachRetry    retry.Policy
	WorkspaceRetry retry.Policy
	InjectRetry    retry.Policy

	// VerifyMutations polls actual status after stop/destroy instead of
	// trusting the mutation response.
	VerifyMutations bool
}

// Manager orchestrates instance lifecycle operations.
type Manager struct {
	api    vast.API
	store  registryStore
	remote remoteProvisioner
	cfg    ManagerConfig
}

// NewManager creates a new instance manager.
func NewManager(api vast.API, store registryStore, runner remoteProvisioner, cfg ManagerConfig) *Manager {
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = vast.DefaultReadyTimeout
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = vast.DefaultStopTimeout
	}
	if cfg.DestroyTimeout == 0 {
		cfg.DestroyTimeout = 300 * time.Second
	}
	if cfg.SSHTimeout == 0 {
		cfg.SSHTimeout = remote.DefaultReadyTimeout
	}
	if cfg.AttachRetry.Attempts == 0 {
		cfg.AttachRetry = retry.Fixed(5, 3*time.Second)
	}
	if cfg.WorkspaceRetry.Attempts == 0 {
		cfg.WorkspaceRetry = retry.Fixed(3, 10*time.Second)
	}
	if cfg.InjectRetry.Attempts == 0 {
		cfg.InjectRetry = retry.Fixed(5, 5*time.Second)
	}
	return &Manager{api: api, store: store, remote: runner, cfg: cfg}
}

// CreateConfig describes the hardware and software for a new instance.
type CreateConfig struct {
	GPUType        string
	NumGPUs        int
	CPUOnly        bool
	MinCPUs        int
	MinRAMGB       int
	DiskGB         int
	Image          string
	MaxPrice       float64
	MinBandwidth   float64
	MinReliability float64
	Project        string

	Provisioning provision.Config
	Fast         bool

	// Secrets are injected over SSH after boot, never through the
	// marketplace API or the onstart script.
	EnvFileContent string
	AutoEnv        map[string]string
}

// Create rents a machine matching cfg, provisions it, and records it under
// name. A stopped record with the same name is resumed instead; a record in
// any other state is a name collision.
func (m *Manager) Create(ctx context.Context, name string, cfg CreateConfig) (*Instance, error) {
	log := slogger.FromContext(ctx)
	name = names.Normalize(name)

	if existing, err := m.store.Get(name); err == nil {
		if existing.Status != StatusStopped {
			return nil, fmt.Errorf("instance %q is %s: %w", name, existing.Status, ErrAlreadyExists)
		}
		inst, resumeErr := m.Resume(ctx, name)
		if resumeErr == nil {
			return inst, nil
		}
		if !errors.Is(resumeErr, ErrOrphaned) {
			return nil, resumeErr
		}
		log.Info("stale record removed, creating fresh instance", "name", name)
	}

	offers, err := m.searchOffers(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(offers) == 0 {
		return nil, fmt.Errorf("%w for the requested constraints", ErrNoOffers)
	}

	token, err := remote.GenerateJupyterToken()
	if err != nil {
		return nil, err
	}

	onstart := provision.Build(provision.ScriptOptions{
		Provisioning: cfg.Provisioning,
		JupyterToken: token,
		WorkspaceCmd: remote.WorkspaceCommand(),
		GPUType:      cfg.GPUType,
		CPUOnly:      cfg.CPUOnly,
		Fast:         cfg.Fast,
	})

	result, offer, err := m.acceptOffer(ctx, offers, name, cfg, onstart)
	if err != nil {
		return nil, err
	}

	inst := &Instance{
		Name:          name,
		RemoteID:      result.NewContract,
		MachineID:     offer.MachineID,
		GPUType:       cfg.GPUType,
		GPUCount:      cfg.NumGPUs,
		CPUCores:      cfg.MinCPUs,
		RAMGB:         cfg.MinRAMGB,
		DiskGB:        cfg.DiskGB,
		Image:         cfg.Image,
		Project:       cfg.Project,
		JupyterToken:  token,
		JupyterPort:   remote.DefaultJupyterPort,
		PricePerHour:  offer.Price(),
		BandwidthMbps: offer.InetDown,
		Reliability:   offer.Reliability,
		CreatedAt:     time.Now(),
	}
	inst.UpdateStatus(StatusStarting)

	// Checkpoint before any further step: an interrupted run must leave
	// the remote ID behind for reconciliation, the instance is billing.
	if err := m.store.Put(inst); err != nil {
		return nil, fmt.Errorf("persist instance record: %w", err)
	}

	if err := m.bringUp(ctx, inst, cfg); err != nil {
		return inst, err
	}
	return inst, nil
}

func (m *Manager) searchOffers(ctx context.Context, cfg CreateConfig) ([]vast.Offer, error) {
	if cfg.CPUOnly {
		return m.api.SearchCPUOffers(ctx, vast.CPUQuery{
			MinCPUs:        cfg.MinCPUs,
			MinRAMGB:       cfg.MinRAMGB,
			MaxPrice:       cfg.MaxPrice,
			MinReliability: cfg.MinReliability,
			DiskGB:         cfg.DiskGB,
		})
	}

	offers, err := m.api.SearchOffers(ctx, vast.OfferQuery{
		GPUType:        cfg.GPUType,
		NumGPUs:        cfg.NumGPUs,
		MinBandwidth:   cfg.MinBandwidth,
		MaxPrice:       cfg.MaxPrice,
		MinReliability: cfg.MinReliability,
		DiskGB:         cfg.DiskGB,
	})
	if err != nil {
		return nil, err
	}
	vast.RankOffers(offers)
	return offers, nil
}

// acceptOffer tries ranked offers in order until one accepts; capacity
// vanishing between search and accept is routine, not an error.
func (m *Manager) acceptOffer(ctx context.Context, offers []vast.Offer, name string, cfg CreateConfig, onstart string) (*vast.CreateResult, *vast.Offer, error) {
	log := slogger.FromContext(ctx)

	attempts := maxOfferAttempts
	if len(offers) < attempts {
		attempts = len(offers)
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		offer := offers[i]
		result, err := m.api.CreateInstance(ctx, offer.ID, vast.CreateRequest{
			Image:   cfg.Image,
			DiskGB:  cfg.DiskGB,
			OnStart: onstart,
			Label:   name,
		})
		if err == nil {
			return result, &offers[i], nil
		}
		lastErr = err
		log.Warn("offer unavailable, trying next", "machine_id", offer.MachineID, "error", err)
	}
	return nil, nil, fmt.Errorf("no offer accepted after %d attempts: %w", attempts, lastErr)
}

// bringUp drives a freshly accepted instance to running: boot poll, SSH
// endpoint, key attachment, SSH-readiness probe, workspace setup, secret
// injection. The record is marked running only once SSH is verified and
// the workspace exists; anything earlier that fails leaves it in error
// with the remote ID intact for reconciliation. Secret injection alone
// degrades to a warning, since it can be redone over SSH at any time.
func (m *Manager) bringUp(ctx context.Context, inst *Instance, cfg CreateConfig) error {
	log := slogger.FromContext(ctx)

	if _, err := m.api.WaitForRunning(ctx, inst.RemoteID, m.cfg.ReadyTimeout); err != nil {
		return m.failProvision(ctx, inst, "wait for running", err)
	}

	info, err := m.api.SSHInfo(ctx, inst.RemoteID)
	if err != nil {
		return m.failProvision(ctx, inst, "resolve ssh endpoint", err)
	}
	inst.SSHHost = info.Host
	inst.SSHPort = info.Port

	// Checkpoint the endpoint while still starting so an interrupted run
	// leaves enough behind to reach the machine.
	if err := m.store.Put(inst); err != nil {
		return fmt.Errorf("persist ssh endpoint: %w", err)
	}

	if m.cfg.SSHPublicKey != "" {
		if err := m.attachKey(ctx, inst.RemoteID); err != nil {
			log.Warn("could not verify ssh key attachment", "name", inst.Name, "error", err)
		}
	}

	target := m.target(inst)
	if err := m.remote.WaitReady(ctx, target, m.cfg.SSHTimeout); err != nil {
		return m.failProvision(ctx, inst, "ssh readiness", err)
	}

	err = retry.Do(ctx, m.cfg.WorkspaceRetry, func(ctx context.Context) error {
		return m.remote.SetupWorkspace(ctx, target)
	})
	if err != nil {
		return m.failProvision(ctx, inst, "workspace setup", err)
	}

	m.injectSecrets(ctx, target, inst.Name, cfg)

	inst.UpdateStatus(StatusRunning)
	inst.MarkAccessed()
	return m.store.Put(inst)
}

// failProvision records the error status and wraps the step failure. The
// record is kept: the machine is rented and billing until the user acts.
func (m *Manager) failProvision(ctx context.Context, inst *Instance, step string, err error) error {
	inst.UpdateStatus(StatusError)
	if putErr := m.store.Put(inst); putErr != nil {
		slogger.FromContext(ctx).Error("persist error status", "name", inst.Name, "error", putErr)
	}
	return &ProvisionError{Name: inst.Name, RemoteID: inst.RemoteID, Step: step, Err: err}
}

// attachKey attaches the public key with retries. The provider has a
// timing race where attachment right after creation silently no-ops, and
// re-attaching an attached key fails with "already associated", which
// counts as success. That is brittle string-matching against an external
// API's error text, but no structured error code exists for it.
func (m *Manager) attachKey(ctx context.Context, remoteID int64) error {
	return retry.Do(ctx, m.cfg.AttachRetry, func(ctx context.Context) error {
		err := m.api.AttachSSHKey(ctx, remoteID, m.cfg.SSHPublicKey)
		if err != nil && strings.Contains(err.Error(), "already associated") {
			return nil
		}
		return err
	})
}

func (m *Manager) injectSecrets(ctx context.Context, target remote.Target, name string, cfg CreateConfig) {
	log := slogger.FromContext(ctx)

	if cfg.EnvFileContent != "" {
		err := retry.Do(ctx, m.cfg.InjectRetry, func(ctx context.Context) error {
			return m.remote.InjectEnvFile(ctx, target, cfg.EnvFileContent, "")
		})
		if err != nil {
			log.Warn("env file injection failed, rerun with 'vastctl env inject' later", "name", name, "error", err)
		}
		return
	}

	if len(cfg.AutoEnv) > 0 {
		err := retry.Do(ctx, m.cfg.InjectRetry, func(ctx context.Context) error {
			_, err := m.remote.InjectAutoEnv(ctx, target, cfg.AutoEnv)
			return err
		})
		if err != nil {
			log.Warn("credential auto-injection failed", "name", name, "error", err)
		}
	}
}

func (m *Manager) target(inst *Instance) remote.Target {
	return remote.Target{Host: inst.SSHHost, Port: inst.SSHPort, KeyPath: m.cfg.SSHKeyPath}
}

// Resume restarts a stopped instance on its existing remote machine. The
// remote instance is located by recorded ID first, then by label, since a
// label is the only durable cross-reference when no ID was recorded. If it
// no longer exists remotely the local record is removed and ErrOrphaned is
// returned so the caller can fall through to a fresh create.
func (m *Manager) Resume(ctx context.Context, name string) (*Instance, error) {
	log := slogger.FromContext(ctx)
	name = names.Normalize(name)

	inst, err := m.getRecord(name)
	if err != nil {
		return nil, err
	}

	remoteInst, err := m.matchRemote(ctx, inst)
	if err != nil {
		return nil, err
	}
	if remoteInst == nil {
		if removeErr := m.store.Remove(name); removeErr != nil {
			return nil, fmt.Errorf("remove orphaned record: %w", removeErr)
		}
		return nil, fmt.Errorf("instance %q: %w", name, ErrOrphaned)
	}

	inst.RemoteID = remoteInst.ID

	if err := m.api.StartInstance(ctx, inst.RemoteID); err != nil {
		return nil, fmt.Errorf("resume %q: %w", name, err)
	}
	if _, err := m.api.WaitForRunning(ctx, inst.RemoteID, m.cfg.ReadyTimeout); err != nil {
		inst.UpdateStatus(StatusError)
		if putErr := m.store.Put(inst); putErr != nil {
			log.Error("persist error status", "name", name, "error", putErr)
		}
		return nil, &ProvisionError{Name: name, RemoteID: inst.RemoteID, Step: "wait for running", Err: err}
	}

	if m.cfg.SSHPublicKey != "" {
		if err := m.attachKey(ctx, inst.RemoteID); err != nil {
			log.Warn("could not verify ssh key attachment", "name", name, "error", err)
		}
	}

	info, err := m.api.SSHInfo(ctx, inst.RemoteID)
	if err != nil {
		return nil, &ProvisionError{Name: name, RemoteID: inst.RemoteID, Step: "resolve ssh endpoint", Err: err}
	}
	inst.SSHHost = info.Host
	inst.SSHPort = info.Port
	inst.UpdateStatus(StatusRunning)
	inst.MarkAccessed()

	if err := m.store.Put(inst); err != nil {
		return nil, fmt.Errorf("persist resumed instance: %w", err)
	}
	return inst, nil
}

// matchRemote finds the marketplace instance backing a local record, by
// recorded ID first and label second. Returns nil without error when no
// match exists.
func (m *Manager) matchRemote(ctx context.Context, inst *Instance) (*vast.Instance, error) {
	remotes, err := m.api.ListInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote instances: %w", err)
	}
	for i := range remotes {
		if (inst.RemoteID != 0 && remotes[i].ID == inst.RemoteID) || remotes[i].Label == inst.Name {
			return &remotes[i], nil
		}
	}
	return nil, nil
}

// Stop stops a running instance. With VerifyMutations set, the stop is
// confirmed by polling actual status; a verification timeout leaves the
// record in error state for reconciliation rather than assuming success.
func (m *Manager) Stop(ctx context.Context, name string) (*Instance, error) {
	name = names.Normalize(name)

	inst, err := m.getRecord(name)
	if err != nil {
		return nil, err
	}

	if inst.RemoteID != 0 {
		if err := m.stopRemote(ctx, inst.RemoteID); err != nil {
			inst.UpdateStatus(StatusError)
			if putErr := m.store.Put(inst); putErr != nil {
				return inst, fmt.Errorf("persist error status: %w", putErr)
			}
			return inst, fmt.Errorf("stop %q: %w", name, err)
		}
	}

	inst.UpdateStatus(StatusStopped)
	if err := m.store.Put(inst); err != nil {
		return inst, fmt.Errorf("persist stopped instance: %w", err)
	}
	return inst, nil
}

func (m *Manager) stopRemote(ctx context.Context, remoteID int64) error {
	if err := m.api.StopInstance(ctx, remoteID); err != nil {
		return err
	}
	if m.cfg.VerifyMutations {
		return m.api.WaitUntilStopped(ctx, remoteID, m.cfg.StopTimeout)
	}
	return nil
}

// DestroyOptions configures Destroy.
type DestroyOptions struct {
	// Force allows destroying an instance the registry believes is running.
	Force bool
}

// Destroy removes the remote instance and the registry record. When the
// destroy request is accepted but verification times out, the registry
// record is kept: removing a record for an instance that may still be
// billing is worse than a stale record. Callers detect that case with
// errors.Is(err, vast.ErrTimeout).
func (m *Manager) Destroy(ctx context.Context, name string, opts DestroyOptions) error {
	name = names.Normalize(name)

	inst, err := m.getRecord(name)
	if err != nil {
		return err
	}

	if inst.IsRunning() && !opts.Force {
		return fmt.Errorf("instance %q is running, stop it first or use force", name)
	}

	remoteID := inst.RemoteID
	if remoteID == 0 {
		// Registry-only record; the label is the last chance to find a
		// billing instance before dropping the record.
		remoteInst, matchErr := m.matchRemote(ctx, inst)
		if matchErr == nil && remoteInst != nil {
			remoteID = remoteInst.ID
		}
	}

	if remoteID != 0 {
		if err := m.destroyRemote(ctx, remoteID); err != nil {
			return fmt.Errorf("destroy %q (registry record kept for reconciliation): %w", name, err)
		}
	}

	if err := m.store.Remove(name); err != nil {
		return fmt.Errorf("remove registry record: %w", err)
	}
	return nil
}

func (m *Manager) destroyRemote(ctx context.Context, remoteID int64) error {
	if err := m.api.DestroyInstance(ctx, remoteID); err != nil {
		return err
	}
	if m.cfg.VerifyMutations {
		return m.api.WaitUntilGone(ctx, remoteID, m.cfg.DestroyTimeout)
	}
	return nil
}

// RefreshResult reports the reconciliation outcome for one record.
type RefreshResult struct {
	Name    string
	Status  Status
	Matched bool // false means local drift: no remote counterpart found
}

// Refresh reconciles local records against marketplace ground truth. The
// remote account is fetched once; each local record is matched by remote
// ID first, then by label. Unmatched records are reported, never deleted.
// Running instances missing a start timestamp get it backfilled from the
// remote start date so cost accounting stays intact.
func (m *Manager) Refresh(ctx context.Context, filter ListFilter) ([]RefreshResult, error) {
	log := slogger.FromContext(ctx)

	remotes, err := m.api.ListInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote instances: %w", err)
	}

	locals, err := m.store.List(filter)
	if err != nil {
		return nil, fmt.Errorf("list registry: %w", err)
	}

	results := make([]RefreshResult, 0, len(locals))
	for _, inst := range locals {
		var match *vast.Instance
		for i := range remotes {
			if (inst.RemoteID != 0 && remotes[i].ID == inst.RemoteID) || remotes[i].Label == inst.Name {
				match = &remotes[i]
				break
			}
		}

		if match == nil {
			results = append(results, RefreshResult{Name: inst.Name, Status: inst.Status, Matched: false})
			continue
		}

		inst.RemoteID = match.ID
		inst.UpdateStatus(mapRemoteStatus(match.ActualStatus))
		backfillStartedAt(inst, match)

		if err := m.store.Put(inst); err != nil {
			log.Error("persist refreshed record", "name", inst.Name, "error", err)
			continue
		}
		results = append(results, RefreshResult{Name: inst.Name, Status: inst.Status, Matched: true})
	}
	return results, nil
}

// mapRemoteStatus translates the marketplace status vocabulary into ours.
func mapRemoteStatus(actual string) Status {
	switch actual {
	case "running":
		return StatusRunning
	case "exited":
		return StatusStopped
	default:
		return Status(actual)
	}
}

// backfillStartedAt restores a lost start timestamp from the remote start
// date. Without it, the next stop would bill zero hours for the period.
func backfillStartedAt(inst *Instance, match *vast.Instance) {
	if inst.Status != StatusRunning || inst.StartedAt != nil || match.StartDate <= 0 {
		return
	}
	started := time.Unix(int64(match.StartDate), 0)
	inst.StartedAt = &started
}

func (m *Manager) getRecord(name string) (*Instance, error) {
	inst, err := m.store.Get(name)
	if err != nil {
		return nil, fmt.Errorf("instance %q: %w", name, ErrNotFound)
	}
	return inst, nil
}
