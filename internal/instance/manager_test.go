package instance

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vastctl/vastctl/internal/remote"
	"github.com/vastctl/vastctl/internal/retry"
	"github.com/vastctl/vastctl/internal/vast"
	"github.com/vastctl/vastctl/internal/vast/mocks"
)

// fakeStore is an in-memory registryStore with the same copy semantics as
// the Badger-backed store: Get returns a copy, mutations require Put.
type fakeStore struct {
	instances map[string]*Instance
}

func newFakeStore() *fakeStore {
	return &fakeStore{instances: map[string]*Instance{}}
}

func (s *fakeStore) Put(inst *Instance) error {
	cp := *inst
	s.instances[inst.Name] = &cp
	return nil
}

func (s *fakeStore) Get(name string) (*Instance, error) {
	inst, ok := s.instances[name]
	if !ok {
		return nil, errors.New("not found in registry")
	}
	cp := *inst
	return &cp, nil
}

func (s *fakeStore) Exists(name string) bool {
	_, ok := s.instances[name]
	return ok
}

func (s *fakeStore) Remove(name string) error {
	delete(s.instances, name)
	return nil
}

func (s *fakeStore) List(filter ListFilter) ([]*Instance, error) {
	var out []*Instance
	for _, inst := range s.instances {
		if inst.Matches(filter) {
			cp := *inst
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) FindByRemoteID(remoteID int64) (*Instance, error) {
	for _, inst := range s.instances {
		if inst.RemoteID == remoteID {
			cp := *inst
			return &cp, nil
		}
	}
	return nil, errors.New("not found in registry")
}

// fakeRemote is a remoteProvisioner that records calls.
type fakeRemote struct {
	waitReadyErr error
	setupErr     error
	injectErr    error

	setupCalls  int
	envContent  string
	envPath     string
	injectedEnv map[string]string
}

func (r *fakeRemote) WaitReady(_ context.Context, _ remote.Target, _ time.Duration) error {
	return r.waitReadyErr
}

func (r *fakeRemote) SetupWorkspace(_ context.Context, _ remote.Target) error {
	r.setupCalls++
	return r.setupErr
}

func (r *fakeRemote) InjectEnvFile(_ context.Context, _ remote.Target, content, path string) error {
	if r.injectErr != nil {
		return r.injectErr
	}
	r.envContent = content
	r.envPath = path
	return nil
}

func (r *fakeRemote) InjectAutoEnv(_ context.Context, _ remote.Target, vars map[string]string) (int, error) {
	if r.injectErr != nil {
		return 0, r.injectErr
	}
	r.injectedEnv = vars
	return len(vars), nil
}

func testManager(api vast.API, store registryStore, runner remoteProvisioner) *Manager {
	return NewManager(api, store, runner, ManagerConfig{
		SSHKeyPath:      "/home/u/.ssh/vast_rsa",
		SSHPublicKey:    "ssh-ed25519 AAAAtest u@host",
		AttachRetry:     retry.Fixed(5, time.Millisecond),
		WorkspaceRetry:  retry.Fixed(3, time.Millisecond),
		InjectRetry:     retry.Fixed(5, time.Millisecond),
		VerifyMutations: true,
	})
}

// happyAPI returns a mock where search, create, and readiness all succeed.
func happyAPI() *mocks.APIMock {
	return &mocks.APIMock{
		SearchOffersFunc: func(ctx context.Context, q vast.OfferQuery) ([]vast.Offer, error) {
			return []vast.Offer{
				{ID: 101, MachineID: 7001, DPHTotal: 1.50, InetDown: 800, Reliability: 0.99},
				{ID: 102, MachineID: 7002, DPHTotal: 1.80, InetDown: 200, Reliability: 0.90},
			}, nil
		},
		CreateInstanceFunc: func(ctx context.Context, offerID int64, req vast.CreateRequest) (*vast.CreateResult, error) {
			return &vast.CreateResult{Success: true, NewContract: 555}, nil
		},
		WaitForRunningFunc: func(ctx context.Context, id int64, timeout time.Duration) (*vast.Instance, error) {
			return &vast.Instance{ID: id, ActualStatus: "running"}, nil
		},
		SSHInfoFunc: func(ctx context.Context, id int64) (*vast.SSHInfo, error) {
			return &vast.SSHInfo{Host: "ssh4.vast.ai", Port: 22022}, nil
		},
		AttachSSHKeyFunc: func(ctx context.Context, id int64, publicKey string) error {
			return nil
		},
		StartInstanceFunc: func(ctx context.Context, id int64) error { return nil },
		ListInstancesFunc: func(ctx context.Context) ([]vast.Instance, error) {
			return nil, nil
		},
	}
}

func baseCreateConfig() CreateConfig {
	return CreateConfig{
		GPUType:  "A100",
		NumGPUs:  2,
		DiskGB:   60,
		Image:    "pytorch/pytorch:2.4.0-cuda12.4-cudnn9-runtime",
		MaxPrice: 3.0,
		Project:  "research",
	}
}

func TestManager_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("full provision flow", func(t *testing.T) {
		api := happyAPI()
		store := newFakeStore()
		runner := &fakeRemote{}
		mgr := testManager(api, store, runner)

		inst, err := mgr.Create(ctx, "trainer", baseCreateConfig())

		require.NoError(t, err)
		assert.Equal(t, "trainer", inst.Name)
		assert.Equal(t, int64(555), inst.RemoteID)
		assert.Equal(t, StatusRunning, inst.Status)
		assert.NotNil(t, inst.StartedAt)
		assert.Equal(t, "ssh4.vast.ai", inst.SSHHost)
		assert.Equal(t, 22022, inst.SSHPort)
		assert.Equal(t, 1.50, inst.PricePerHour)
		assert.Len(t, inst.JupyterToken, 32)

		// The better connected offer ranks first despite equal-ish prices.
		require.Len(t, api.CreateInstanceCalls(), 1)
		call := api.CreateInstanceCalls()[0]
		assert.Equal(t, int64(101), call.OfferID)
		assert.Equal(t, "trainer", call.Req.Label)
		assert.Equal(t, 60, call.Req.DiskGB)
		assert.Contains(t, call.Req.OnStart, inst.JupyterToken)

		assert.Len(t, api.AttachSSHKeyCalls(), 1)
		assert.Equal(t, 1, runner.setupCalls)

		saved, err := store.Get("trainer")
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, saved.Status)
	})

	t.Run("normalizes name", func(t *testing.T) {
		api := happyAPI()
		store := newFakeStore()
		mgr := testManager(api, store, &fakeRemote{})

		inst, err := mgr.Create(ctx, "My Trainer", baseCreateConfig())

		require.NoError(t, err)
		assert.Equal(t, "my-trainer", inst.Name)
		assert.True(t, store.Exists("my-trainer"))
	})

	t.Run("name collision with non-stopped record", func(t *testing.T) {
		store := newFakeStore()
		require.NoError(t, store.Put(&Instance{Name: "trainer", Status: StatusRunning}))
		mgr := testManager(happyAPI(), store, &fakeRemote{})

		_, err := mgr.Create(ctx, "trainer", baseCreateConfig())

		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("no offers is a permanent failure", func(t *testing.T) {
		api := happyAPI()
		api.SearchOffersFunc = func(ctx context.Context, q vast.OfferQuery) ([]vast.Offer, error) {
			return nil, nil
		}
		store := newFakeStore()
		mgr := testManager(api, store, &fakeRemote{})

		_, err := mgr.Create(ctx, "trainer", baseCreateConfig())

		assert.ErrorIs(t, err, ErrNoOffers)
		assert.Empty(t, api.CreateInstanceCalls())
		assert.False(t, store.Exists("trainer"), "no record without an accepted offer")
	})

	t.Run("falls through vanished offers", func(t *testing.T) {
		api := happyAPI()
		api.SearchOffersFunc = func(ctx context.Context, q vast.OfferQuery) ([]vast.Offer, error) {
			return []vast.Offer{
				{ID: 1, DPHTotal: 1.0},
				{ID: 2, DPHTotal: 2.0},
				{ID: 3, DPHTotal: 3.0},
				{ID: 4, DPHTotal: 4.0},
			}, nil
		}
		api.CreateInstanceFunc = func(ctx context.Context, offerID int64, req vast.CreateRequest) (*vast.CreateResult, error) {
			if offerID < 3 {
				return nil, fmt.Errorf("no such ask")
			}
			return &vast.CreateResult{Success: true, NewContract: 556}, nil
		}
		mgr := testManager(api, newFakeStore(), &fakeRemote{})

		inst, err := mgr.Create(ctx, "trainer", baseCreateConfig())

		require.NoError(t, err)
		assert.Equal(t, int64(556), inst.RemoteID)
		assert.Len(t, api.CreateInstanceCalls(), 3)
	})

	t.Run("exhausting available offers is a hard failure", func(t *testing.T) {
		api := happyAPI()
		api.CreateInstanceFunc = func(ctx context.Context, offerID int64, req vast.CreateRequest) (*vast.CreateResult, error) {
			return nil, fmt.Errorf("no such ask")
		}
		store := newFakeStore()
		mgr := testManager(api, store, &fakeRemote{})

		_, err := mgr.Create(ctx, "trainer", baseCreateConfig())

		require.Error(t, err)
		assert.Len(t, api.CreateInstanceCalls(), 2, "only two offers available")
		assert.False(t, store.Exists("trainer"))
	})

	t.Run("boot timeout leaves recoverable record", func(t *testing.T) {
		api := happyAPI()
		api.WaitForRunningFunc = func(ctx context.Context, id int64, timeout time.Duration) (*vast.Instance, error) {
			return nil, vast.ErrTimeout
		}
		store := newFakeStore()
		mgr := testManager(api, store, &fakeRemote{})

		_, err := mgr.Create(ctx, "trainer", baseCreateConfig())

		var provErr *ProvisionError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, int64(555), provErr.RemoteID)

		saved, getErr := store.Get("trainer")
		require.NoError(t, getErr)
		assert.Equal(t, StatusError, saved.Status)
		assert.Equal(t, int64(555), saved.RemoteID, "remote ID kept for reconciliation")
	})

	t.Run("unreachable ssh fails the create", func(t *testing.T) {
		api := happyAPI()
		store := newFakeStore()
		runner := &fakeRemote{waitReadyErr: errors.New("connection refused")}
		mgr := testManager(api, store, runner)

		_, err := mgr.Create(ctx, "trainer", baseCreateConfig())

		var provErr *ProvisionError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, "ssh readiness", provErr.Step)
		assert.Equal(t, 0, runner.setupCalls, "no workspace setup without ssh")

		saved, getErr := store.Get("trainer")
		require.NoError(t, getErr)
		assert.Equal(t, StatusError, saved.Status, "never reported running")
		assert.Equal(t, int64(555), saved.RemoteID, "remote ID kept, machine is billing")
	})

	t.Run("workspace setup failure exhausts retries and fails", func(t *testing.T) {
		api := happyAPI()
		store := newFakeStore()
		runner := &fakeRemote{setupErr: errors.New("mkdir: no space left on device")}
		mgr := testManager(api, store, runner)

		_, err := mgr.Create(ctx, "trainer", baseCreateConfig())

		var provErr *ProvisionError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, "workspace setup", provErr.Step)
		assert.Equal(t, 3, runner.setupCalls)

		saved, getErr := store.Get("trainer")
		require.NoError(t, getErr)
		assert.Equal(t, StatusError, saved.Status)
	})

	t.Run("cpu mode searches cpu offers", func(t *testing.T) {
		api := happyAPI()
		api.SearchCPUOffersFunc = func(ctx context.Context, q vast.CPUQuery) ([]vast.Offer, error) {
			assert.Equal(t, 16, q.MinCPUs)
			assert.Equal(t, 64, q.MinRAMGB)
			return []vast.Offer{{ID: 201, DPHTotal: 0.20}}, nil
		}
		mgr := testManager(api, newFakeStore(), &fakeRemote{})

		cfg := baseCreateConfig()
		cfg.CPUOnly = true
		cfg.MinCPUs = 16
		cfg.MinRAMGB = 64
		inst, err := mgr.Create(ctx, "worker", cfg)

		require.NoError(t, err)
		assert.Equal(t, 16, inst.CPUCores)
		assert.Empty(t, api.SearchOffersCalls())
	})

	t.Run("secret injection failure is non-fatal", func(t *testing.T) {
		api := happyAPI()
		runner := &fakeRemote{injectErr: errors.New("connection reset")}
		mgr := testManager(api, newFakeStore(), runner)

		cfg := baseCreateConfig()
		cfg.EnvFileContent = "HF_TOKEN=hf_abc"
		inst, err := mgr.Create(ctx, "trainer", cfg)

		require.NoError(t, err)
		assert.Equal(t, StatusRunning, inst.Status)
	})

	t.Run("env file shadows auto-detected credentials", func(t *testing.T) {
		runner := &fakeRemote{}
		mgr := testManager(happyAPI(), newFakeStore(), runner)

		cfg := baseCreateConfig()
		cfg.EnvFileContent = "HF_TOKEN=hf_abc"
		cfg.AutoEnv = map[string]string{"AWS_ACCESS_KEY": "AKIA"}
		_, err := mgr.Create(ctx, "trainer", cfg)

		require.NoError(t, err)
		assert.Equal(t, "HF_TOKEN=hf_abc", runner.envContent)
		assert.Nil(t, runner.injectedEnv)
	})

	t.Run("onstart script carries no secrets", func(t *testing.T) {
		api := happyAPI()
		mgr := testManager(api, newFakeStore(), &fakeRemote{})

		cfg := baseCreateConfig()
		cfg.EnvFileContent = "OPENAI_API_KEY=sk-secret"
		_, err := mgr.Create(ctx, "trainer", cfg)

		require.NoError(t, err)
		require.Len(t, api.CreateInstanceCalls(), 1)
		assert.NotContains(t, api.CreateInstanceCalls()[0].Req.OnStart, "sk-secret")
	})
}

func TestManager_attachKey(t *testing.T) {
	ctx := context.Background()

	t.Run("already associated counts as success", func(t *testing.T) {
		api := happyAPI()
		api.AttachSSHKeyFunc = func(ctx context.Context, id int64, publicKey string) error {
			return errors.New("ssh key already associated with this instance")
		}
		mgr := testManager(api, newFakeStore(), &fakeRemote{})

		require.NoError(t, mgr.attachKey(ctx, 555))
		assert.Len(t, api.AttachSSHKeyCalls(), 1)
	})

	t.Run("retries timing race then succeeds", func(t *testing.T) {
		calls := 0
		api := happyAPI()
		api.AttachSSHKeyFunc = func(ctx context.Context, id int64, publicKey string) error {
			calls++
			if calls < 3 {
				return errors.New("key not registered")
			}
			return nil
		}
		mgr := testManager(api, newFakeStore(), &fakeRemote{})

		require.NoError(t, mgr.attachKey(ctx, 555))
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		api := happyAPI()
		api.AttachSSHKeyFunc = func(ctx context.Context, id int64, publicKey string) error {
			return errors.New("key not registered")
		}
		mgr := testManager(api, newFakeStore(), &fakeRemote{})

		require.Error(t, mgr.attachKey(ctx, 555))
		assert.Len(t, api.AttachSSHKeyCalls(), 5)
	})
}

func TestManager_Resume(t *testing.T) {
	ctx := context.Background()

	stoppedRecord := func() *Instance {
		return &Instance{
			Name:         "trainer",
			RemoteID:     555,
			GPUType:      "A100",
			PricePerHour: 1.5,
			Status:       StatusStopped,
		}
	}

	t.Run("resumes by remote id", func(t *testing.T) {
		api := happyAPI()
		api.ListInstancesFunc = func(ctx context.Context) ([]vast.Instance, error) {
			return []vast.Instance{{ID: 555, Label: "trainer", ActualStatus: "exited"}}, nil
		}
		store := newFakeStore()
		require.NoError(t, store.Put(stoppedRecord()))
		mgr := testManager(api, store, &fakeRemote{})

		inst, err := mgr.Resume(ctx, "trainer")

		require.NoError(t, err)
		assert.Equal(t, StatusRunning, inst.Status)
		assert.NotNil(t, inst.StartedAt)
		require.Len(t, api.StartInstanceCalls(), 1)
		assert.Equal(t, int64(555), api.StartInstanceCalls()[0].ID)
	})

	t.Run("matches by label when id was never recorded", func(t *testing.T) {
		api := happyAPI()
		api.ListInstancesFunc = func(ctx context.Context) ([]vast.Instance, error) {
			return []vast.Instance{{ID: 777, Label: "trainer", ActualStatus: "exited"}}, nil
		}
		store := newFakeStore()
		rec := stoppedRecord()
		rec.RemoteID = 0
		require.NoError(t, store.Put(rec))
		mgr := testManager(api, store, &fakeRemote{})

		inst, err := mgr.Resume(ctx, "trainer")

		require.NoError(t, err)
		assert.Equal(t, int64(777), inst.RemoteID)
	})

	t.Run("orphaned record is removed", func(t *testing.T) {
		api := happyAPI()
		store := newFakeStore()
		require.NoError(t, store.Put(stoppedRecord()))
		mgr := testManager(api, store, &fakeRemote{})

		_, err := mgr.Resume(ctx, "trainer")

		assert.ErrorIs(t, err, ErrOrphaned)
		assert.False(t, store.Exists("trainer"))
	})

	t.Run("create on stopped record resumes instead", func(t *testing.T) {
		api := happyAPI()
		api.ListInstancesFunc = func(ctx context.Context) ([]vast.Instance, error) {
			return []vast.Instance{{ID: 555, Label: "trainer", ActualStatus: "exited"}}, nil
		}
		store := newFakeStore()
		require.NoError(t, store.Put(stoppedRecord()))
		mgr := testManager(api, store, &fakeRemote{})

		inst, err := mgr.Create(ctx, "trainer", baseCreateConfig())

		require.NoError(t, err)
		assert.Equal(t, StatusRunning, inst.Status)
		assert.Empty(t, api.SearchOffersCalls(), "resume must not search for new offers")
	})

	t.Run("create on orphaned record falls through to fresh create", func(t *testing.T) {
		api := happyAPI()
		store := newFakeStore()
		require.NoError(t, store.Put(stoppedRecord()))
		mgr := testManager(api, store, &fakeRemote{})

		inst, err := mgr.Create(ctx, "trainer", baseCreateConfig())

		require.NoError(t, err)
		assert.Equal(t, int64(555), inst.RemoteID)
		assert.NotEmpty(t, api.SearchOffersCalls())
		assert.NotEmpty(t, api.CreateInstanceCalls())
	})
}

func TestManager_Stop(t *testing.T) {
	ctx := context.Background()

	runningRecord := func() *Instance {
		started := time.Now().Add(-30 * time.Minute)
		return &Instance{
			Name:         "trainer",
			RemoteID:     555,
			PricePerHour: 2.0,
			Status:       StatusRunning,
			StartedAt:    &started,
		}
	}

	t.Run("verified stop flushes accrued cost", func(t *testing.T) {
		api := happyAPI()
		api.StopInstanceFunc = func(ctx context.Context, id int64) error { return nil }
		api.WaitUntilStoppedFunc = func(ctx context.Context, id int64, timeout time.Duration) error { return nil }
		store := newFakeStore()
		require.NoError(t, store.Put(runningRecord()))
		mgr := testManager(api, store, &fakeRemote{})

		inst, err := mgr.Stop(ctx, "trainer")

		require.NoError(t, err)
		assert.Equal(t, StatusStopped, inst.Status)
		assert.Nil(t, inst.StartedAt)
		assert.InDelta(t, 1.0, inst.TotalCost, 0.01, "30min at $2/hr")
		assert.Len(t, api.WaitUntilStoppedCalls(), 1)

		saved, _ := store.Get("trainer")
		assert.Equal(t, StatusStopped, saved.Status)
	})

	t.Run("verification timeout keeps record in error state", func(t *testing.T) {
		api := happyAPI()
		api.StopInstanceFunc = func(ctx context.Context, id int64) error { return nil }
		api.WaitUntilStoppedFunc = func(ctx context.Context, id int64, timeout time.Duration) error {
			return vast.ErrTimeout
		}
		store := newFakeStore()
		require.NoError(t, store.Put(runningRecord()))
		mgr := testManager(api, store, &fakeRemote{})

		_, err := mgr.Stop(ctx, "trainer")

		require.ErrorIs(t, err, vast.ErrTimeout)
		saved, getErr := store.Get("trainer")
		require.NoError(t, getErr, "record must survive an uncertain stop")
		assert.Equal(t, StatusError, saved.Status)
	})

	t.Run("registry-only record stops locally", func(t *testing.T) {
		api := happyAPI()
		store := newFakeStore()
		rec := runningRecord()
		rec.RemoteID = 0
		require.NoError(t, store.Put(rec))
		mgr := testManager(api, store, &fakeRemote{})

		inst, err := mgr.Stop(ctx, "trainer")

		require.NoError(t, err)
		assert.Equal(t, StatusStopped, inst.Status)
		assert.Empty(t, api.StopInstanceCalls())
	})

	t.Run("unknown instance", func(t *testing.T) {
		mgr := testManager(happyAPI(), newFakeStore(), &fakeRemote{})
		_, err := mgr.Stop(ctx, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestManager_Destroy(t *testing.T) {
	ctx := context.Background()

	t.Run("verified destroy removes record", func(t *testing.T) {
		api := happyAPI()
		api.DestroyInstanceFunc = func(ctx context.Context, id int64) error { return nil }
		api.WaitUntilGoneFunc = func(ctx context.Context, id int64, timeout time.Duration) error { return nil }
		store := newFakeStore()
		require.NoError(t, store.Put(&Instance{Name: "trainer", RemoteID: 555, Status: StatusStopped}))
		mgr := testManager(api, store, &fakeRemote{})

		require.NoError(t, mgr.Destroy(ctx, "trainer", DestroyOptions{}))
		assert.False(t, store.Exists("trainer"))
		assert.Len(t, api.WaitUntilGoneCalls(), 1)
	})

	t.Run("running instance requires force", func(t *testing.T) {
		api := happyAPI()
		store := newFakeStore()
		started := time.Now()
		require.NoError(t, store.Put(&Instance{Name: "trainer", RemoteID: 555, Status: StatusRunning, StartedAt: &started}))
		mgr := testManager(api, store, &fakeRemote{})

		err := mgr.Destroy(ctx, "trainer", DestroyOptions{})
		require.Error(t, err)
		assert.True(t, store.Exists("trainer"))

		api.DestroyInstanceFunc = func(ctx context.Context, id int64) error { return nil }
		api.WaitUntilGoneFunc = func(ctx context.Context, id int64, timeout time.Duration) error { return nil }
		require.NoError(t, mgr.Destroy(ctx, "trainer", DestroyOptions{Force: true}))
		assert.False(t, store.Exists("trainer"))
	})

	t.Run("verification timeout keeps record", func(t *testing.T) {
		api := happyAPI()
		api.DestroyInstanceFunc = func(ctx context.Context, id int64) error { return nil }
		api.WaitUntilGoneFunc = func(ctx context.Context, id int64, timeout time.Duration) error {
			return vast.ErrTimeout
		}
		store := newFakeStore()
		require.NoError(t, store.Put(&Instance{Name: "trainer", RemoteID: 555, Status: StatusStopped}))
		mgr := testManager(api, store, &fakeRemote{})

		err := mgr.Destroy(ctx, "trainer", DestroyOptions{})

		require.ErrorIs(t, err, vast.ErrTimeout)
		assert.True(t, store.Exists("trainer"), "uncertain destroy keeps the record")
	})

	t.Run("registry-only record destroys label match", func(t *testing.T) {
		api := happyAPI()
		api.ListInstancesFunc = func(ctx context.Context) ([]vast.Instance, error) {
			return []vast.Instance{{ID: 888, Label: "trainer", ActualStatus: "exited"}}, nil
		}
		api.DestroyInstanceFunc = func(ctx context.Context, id int64) error { return nil }
		api.WaitUntilGoneFunc = func(ctx context.Context, id int64, timeout time.Duration) error { return nil }
		store := newFakeStore()
		require.NoError(t, store.Put(&Instance{Name: "trainer", Status: StatusStopped}))
		mgr := testManager(api, store, &fakeRemote{})

		require.NoError(t, mgr.Destroy(ctx, "trainer", DestroyOptions{}))
		require.Len(t, api.DestroyInstanceCalls(), 1)
		assert.Equal(t, int64(888), api.DestroyInstanceCalls()[0].ID)
		assert.False(t, store.Exists("trainer"))
	})

	t.Run("registry-only record with no remote match", func(t *testing.T) {
		api := happyAPI()
		store := newFakeStore()
		require.NoError(t, store.Put(&Instance{Name: "trainer", Status: StatusStopped}))
		mgr := testManager(api, store, &fakeRemote{})

		require.NoError(t, mgr.Destroy(ctx, "trainer", DestroyOptions{}))
		assert.Empty(t, api.DestroyInstanceCalls())
		assert.False(t, store.Exists("trainer"))
	})
}

func TestManager_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("maps remote vocabulary and reports drift", func(t *testing.T) {
		api := happyAPI()
		api.ListInstancesFunc = func(ctx context.Context) ([]vast.Instance, error) {
			return []vast.Instance{
				{ID: 555, Label: "trainer", ActualStatus: "exited"},
				{ID: 777, Label: "worker", ActualStatus: "running", StartDate: float64(time.Now().Add(-time.Hour).Unix())},
			}, nil
		}
		store := newFakeStore()
		started := time.Now().Add(-10 * time.Minute)
		require.NoError(t, store.Put(&Instance{Name: "trainer", RemoteID: 555, Status: StatusRunning, StartedAt: &started, PricePerHour: 1.0}))
		require.NoError(t, store.Put(&Instance{Name: "worker", Status: StatusRunning}))
		require.NoError(t, store.Put(&Instance{Name: "ghost", RemoteID: 999, Status: StatusRunning, StartedAt: &started}))
		mgr := testManager(api, store, &fakeRemote{})

		results, err := mgr.Refresh(ctx, ListFilter{})
		require.NoError(t, err)
		require.Len(t, results, 3)

		byName := map[string]RefreshResult{}
		for _, r := range results {
			byName[r.Name] = r
		}

		assert.Equal(t, StatusStopped, byName["trainer"].Status, `"exited" maps to stopped`)
		assert.True(t, byName["trainer"].Matched)

		assert.Equal(t, StatusRunning, byName["worker"].Status)
		worker, _ := store.Get("worker")
		assert.Equal(t, int64(777), worker.RemoteID, "remote id learned from label match")
		require.NotNil(t, worker.StartedAt, "start timestamp backfilled from remote")
		assert.WithinDuration(t, time.Now().Add(-time.Hour), *worker.StartedAt, 5*time.Second)

		assert.False(t, byName["ghost"].Matched)
		assert.True(t, store.Exists("ghost"), "drift is reported, never auto-deleted")
	})

	t.Run("stop observed remotely flushes cost checkpoint", func(t *testing.T) {
		api := happyAPI()
		api.ListInstancesFunc = func(ctx context.Context) ([]vast.Instance, error) {
			return []vast.Instance{{ID: 555, Label: "trainer", ActualStatus: "exited"}}, nil
		}
		store := newFakeStore()
		started := time.Now().Add(-time.Hour)
		require.NoError(t, store.Put(&Instance{Name: "trainer", RemoteID: 555, Status: StatusRunning, StartedAt: &started, PricePerHour: 3.0}))
		mgr := testManager(api, store, &fakeRemote{})

		_, err := mgr.Refresh(ctx, ListFilter{})
		require.NoError(t, err)

		saved, _ := store.Get("trainer")
		assert.Nil(t, saved.StartedAt)
		assert.InDelta(t, 3.0, saved.TotalCost, 0.05, "1h at $3/hr")
	})
}

func TestMapRemoteStatus(t *testing.T) {
	assert.Equal(t, StatusRunning, mapRemoteStatus("running"))
	assert.Equal(t, StatusStopped, mapRemoteStatus("exited"))
	assert.Equal(t, Status("loading"), mapRemoteStatus("loading"))
}
