package provision

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileStore_LocalLookup(t *testing.T) {
	store := NewProfileStore(map[string]Profile{
		"fast": {Description: "Jupyter only", Provisioning: Config{Torch: TorchConfig{Mode: TorchModeSkip}}},
	}, filepath.Join(t.TempDir(), "cache.json"))

	p, err := store.Get("fast")
	require.NoError(t, err)
	assert.Equal(t, "Jupyter only", p.Description)

	_, err = store.Get("ghost")
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestProfileStore_CacheRoundTrip(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "profiles.json")
	store := NewProfileStore(nil, cachePath)

	require.NoError(t, store.SaveCache(map[string]Profile{
		"team-nlp": {Image: "huggingface/transformers-pytorch-gpu", Provisioning: Config{
			Pip: PipConfig{Packages: []string{"transformers"}},
		}},
	}))

	p, err := store.Get("team-nlp")
	require.NoError(t, err)
	assert.Equal(t, "huggingface/transformers-pytorch-gpu", p.Image)
	assert.Equal(t, []string{"transformers"}, p.Provisioning.Pip.Packages)
}

func TestProfileStore_LocalShadowsCloud(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "profiles.json")
	store := NewProfileStore(map[string]Profile{
		"shared": {Description: "local version"},
	}, cachePath)

	require.NoError(t, store.SaveCache(map[string]Profile{
		"shared": {Description: "cloud version"},
		"extra":  {Description: "cloud only"},
	}))

	p, err := store.Get("shared")
	require.NoError(t, err)
	assert.Equal(t, "local version", p.Description)

	assert.Equal(t, []string{"extra", "shared"}, store.List())
}

func TestProfileStore_CorruptCacheIgnored(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "profiles.json")
	require.NoError(t, os.WriteFile(cachePath, []byte("{not json"), 0o644))

	store := NewProfileStore(map[string]Profile{"local": {}}, cachePath)
	assert.Equal(t, []string{"local"}, store.List())
}

func TestProfileStore_Effective(t *testing.T) {
	base := Config{
		Pip:   PipConfig{Packages: []string{"transformers"}},
		Torch: TorchConfig{Mode: TorchModeAuto},
	}
	store := NewProfileStore(map[string]Profile{
		"fast": {Provisioning: Config{Torch: TorchConfig{Mode: TorchModeSkip}}},
	}, filepath.Join(t.TempDir(), "cache.json"))

	t.Run("empty name returns base", func(t *testing.T) {
		got, err := store.Effective(base, "")
		require.NoError(t, err)
		assert.Equal(t, base, got)
	})

	t.Run("profile overlays base", func(t *testing.T) {
		got, err := store.Effective(base, "fast")
		require.NoError(t, err)
		assert.Equal(t, TorchModeSkip, got.Torch.Mode)
		assert.Equal(t, []string{"transformers"}, got.Pip.Packages)
	})

	t.Run("missing profile errors", func(t *testing.T) {
		_, err := store.Effective(base, "ghost")
		require.ErrorIs(t, err, ErrProfileNotFound)
	})
}

func TestProfileStore_Image(t *testing.T) {
	store := NewProfileStore(map[string]Profile{
		"cuda": {Image: "nvidia/cuda:12.4.0-runtime-ubuntu22.04"},
		"none": {},
	}, filepath.Join(t.TempDir(), "cache.json"))

	img, err := store.Image("cuda")
	require.NoError(t, err)
	assert.Equal(t, "nvidia/cuda:12.4.0-runtime-ubuntu22.04", img)

	img, err = store.Image("none")
	require.NoError(t, err)
	assert.Empty(t, img)

	img, err = store.Image("")
	require.NoError(t, err)
	assert.Empty(t, img)
}
