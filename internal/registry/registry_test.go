package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vastctl/vastctl/internal/instance"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testInstance(name string) *instance.Instance {
	return &instance.Instance{
		Name:      name,
		RemoteID:  1000,
		GPUType:   "RTX5090",
		GPUCount:  1,
		Status:    instance.StatusStopped,
		CreatedAt: time.Now(),
	}
}

func TestStore_PutAndGet(t *testing.T) {
	s := testStore(t)

	inst := testInstance("demo")
	inst.Tags = []string{"nlp"}
	require.NoError(t, s.Put(inst))

	got, err := s.Get("demo")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)
	assert.Equal(t, int64(1000), got.RemoteID)
	assert.Equal(t, []string{"nlp"}, got.Tags)
}

func TestStore_Put_RequiresName(t *testing.T) {
	s := testStore(t)
	err := s.Put(&instance.Instance{})
	require.Error(t, err)
}

func TestStore_Get_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.Get("ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Put_Overwrites(t *testing.T) {
	s := testStore(t)

	inst := testInstance("demo")
	require.NoError(t, s.Put(inst))

	inst.Status = instance.StatusRunning
	require.NoError(t, s.Put(inst))

	got, err := s.Get("demo")
	require.NoError(t, err)
	assert.Equal(t, instance.StatusRunning, got.Status)
}

func TestStore_Remove(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.Put(testInstance("demo")))
	require.NoError(t, s.Remove("demo"))

	_, err := s.Get("demo")
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, s.Remove("demo"), ErrNotFound)
}

func TestStore_Remove_ClearsActivePointer(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.Put(testInstance("demo")))
	require.NoError(t, s.Put(testInstance("other")))
	require.NoError(t, s.SetActive("demo"))

	require.NoError(t, s.Remove("demo"))

	_, err := s.ActiveName()
	require.ErrorIs(t, err, ErrNoActive)
}

func TestStore_Remove_KeepsUnrelatedActivePointer(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.Put(testInstance("demo")))
	require.NoError(t, s.Put(testInstance("other")))
	require.NoError(t, s.SetActive("other"))

	require.NoError(t, s.Remove("demo"))

	name, err := s.ActiveName()
	require.NoError(t, err)
	assert.Equal(t, "other", name)
}

func TestStore_List_FiltersAndOrders(t *testing.T) {
	s := testStore(t)

	old := testInstance("old")
	old.CreatedAt = time.Now().Add(-time.Hour)
	old.Project = "alpha"
	old.Status = instance.StatusRunning

	mid := testInstance("mid")
	mid.CreatedAt = time.Now().Add(-30 * time.Minute)
	mid.Project = "beta"
	mid.Tags = []string{"vision"}

	fresh := testInstance("fresh")
	fresh.Project = "alpha"

	for _, inst := range []*instance.Instance{old, mid, fresh} {
		require.NoError(t, s.Put(inst))
	}

	t.Run("newest first", func(t *testing.T) {
		all, err := s.List(instance.ListFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "fresh", all[0].Name)
		assert.Equal(t, "old", all[2].Name)
	})

	t.Run("by project", func(t *testing.T) {
		got, err := s.List(instance.ListFilter{Project: "alpha"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("by status", func(t *testing.T) {
		got, err := s.List(instance.ListFilter{Status: instance.StatusRunning})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "old", got[0].Name)
	})

	t.Run("by tag", func(t *testing.T) {
		got, err := s.List(instance.ListFilter{Tags: []string{"vision", "absent"}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "mid", got[0].Name)
	})
}

func TestStore_FindByRemoteID(t *testing.T) {
	s := testStore(t)

	inst := testInstance("demo")
	inst.RemoteID = 4242
	require.NoError(t, s.Put(inst))

	got, err := s.FindByRemoteID(4242)
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)

	_, err = s.FindByRemoteID(1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Active(t *testing.T) {
	s := testStore(t)

	t.Run("unset", func(t *testing.T) {
		_, err := s.Active()
		require.ErrorIs(t, err, ErrNoActive)
	})

	t.Run("set requires existing instance", func(t *testing.T) {
		require.ErrorIs(t, s.SetActive("ghost"), ErrNotFound)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, s.Put(testInstance("demo")))
		require.NoError(t, s.SetActive("demo"))

		active, err := s.Active()
		require.NoError(t, err)
		assert.Equal(t, "demo", active.Name)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, s.ClearActive())
		_, err := s.Active()
		require.ErrorIs(t, err, ErrNoActive)

		// clearing twice is fine
		require.NoError(t, s.ClearActive())
	})
}

func TestStore_Projects(t *testing.T) {
	s := testStore(t)

	a := testInstance("a")
	a.Project = "zeta"
	b := testInstance("b")
	b.Project = "alpha"
	c := testInstance("c") // no project -> default

	for _, inst := range []*instance.Instance{a, b, c} {
		require.NoError(t, s.Put(inst))
	}

	projects, err := s.Projects()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "default", "zeta"}, projects)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(testInstance("demo")))
	require.NoError(t, s.SetActive("demo"))
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get("demo")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)

	name, err := s2.ActiveName()
	require.NoError(t, err)
	assert.Equal(t, "demo", name)
}
