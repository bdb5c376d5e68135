package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstancePath(t *testing.T) {
	assert.Equal(t, filepath.Join("/data", "logs", "my-trainer.log"), InstancePath("/data", "my-trainer"))
}

func TestEnsureInstancePath(t *testing.T) {
	dataDir := t.TempDir()

	path, err := EnsureInstancePath(dataDir, "worker")
	require.NoError(t, err)
	assert.Equal(t, InstancePath(dataDir, "worker"), path)
	assert.DirExists(t, Dir(dataDir))
}

func TestSaved(t *testing.T) {
	dataDir := t.TempDir()

	t.Run("no log directory", func(t *testing.T) {
		names, err := Saved(dataDir)
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("lists log files only", func(t *testing.T) {
		require.NoError(t, os.MkdirAll(Dir(dataDir), 0o750))
		require.NoError(t, os.WriteFile(InstancePath(dataDir, "alpha"), []byte("hi"), 0o644))
		require.NoError(t, os.WriteFile(InstancePath(dataDir, "beta"), []byte("hi"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(Dir(dataDir), "notes.txt"), []byte("x"), 0o644))

		names, err := Saved(dataDir)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"alpha", "beta"}, names)
	})
}

func TestTeeWriter(t *testing.T) {
	dataDir := t.TempDir()
	path, err := EnsureInstancePath(dataDir, "worker")
	require.NoError(t, err)

	var primary bytes.Buffer
	tee, err := NewTeeWriter(&primary, path)
	require.NoError(t, err)

	_, err = tee.Write([]byte("line one\n"))
	require.NoError(t, err)
	_, err = tee.Write([]byte("line two\n"))
	require.NoError(t, err)
	require.NoError(t, tee.Close())

	assert.Equal(t, "line one\nline two\n", primary.String())

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, primary.String(), string(saved))

	t.Run("appends on reopen", func(t *testing.T) {
		tee, err := NewTeeWriter(&primary, path)
		require.NoError(t, err)
		_, err = tee.Write([]byte("line three\n"))
		require.NoError(t, err)
		require.NoError(t, tee.Close())

		saved, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(saved), "line one\n")
		assert.Contains(t, string(saved), "line three\n")
	})
}
