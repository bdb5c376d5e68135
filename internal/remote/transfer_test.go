package remote

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vastctl/vastctl/internal/exec"
	"github.com/vastctl/vastctl/internal/exec/mocks"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, make([]byte, size), 0o644))
	return p
}

func TestRunner_Push(t *testing.T) {
	ctx := context.Background()

	t.Run("creates remote dir then copies", func(t *testing.T) {
		var names []string
		var mu sync.Mutex
		mockExec := &mocks.ExecutorMock{
			RunFunc: func(ctx context.Context, opts exec.RunOptions) (*exec.Result, error) {
				mu.Lock()
				names = append(names, opts.Name)
				mu.Unlock()
				if opts.Name == "ssh" {
					assert.Contains(t, opts.Args[len(opts.Args)-1], "mkdir -p '/data/models'")
				} else {
					assert.Contains(t, opts.Args, "root@ssh4.example.net:/data/models/weights.pt")
					assert.Contains(t, opts.Args, "-P")
				}
				return &exec.Result{}, nil
			},
		}

		err := NewRunner(mockExec).Push(ctx, testTarget, "./weights.pt", "/data/models/weights.pt")
		require.NoError(t, err)
		assert.Equal(t, []string{"ssh", "scp"}, names)
	})

	t.Run("skips mkdir for root paths", func(t *testing.T) {
		mockExec := &mocks.ExecutorMock{
			RunFunc: func(ctx context.Context, opts exec.RunOptions) (*exec.Result, error) {
				assert.Equal(t, "scp", opts.Name)
				return &exec.Result{}, nil
			},
		}

		err := NewRunner(mockExec).Push(ctx, testTarget, "./f", "/f")
		require.NoError(t, err)
		assert.Len(t, mockExec.RunCalls(), 1)
	})
}

func TestRunner_Pull(t *testing.T) {
	ctx := context.Background()

	t.Run("single file", func(t *testing.T) {
		mockExec := &mocks.ExecutorMock{
			RunFunc: func(ctx context.Context, opts exec.RunOptions) (*exec.Result, error) {
				assert.Equal(t, "scp", opts.Name)
				assert.NotContains(t, opts.Args, "-r")
				assert.Contains(t, opts.Args, "root@ssh4.example.net:/workspace/out.csv")
				return &exec.Result{}, nil
			},
		}

		err := NewRunner(mockExec).Pull(ctx, testTarget, "/workspace/out.csv", "./out.csv", false)
		require.NoError(t, err)
	})

	t.Run("recursive", func(t *testing.T) {
		mockExec := &mocks.ExecutorMock{
			RunFunc: func(ctx context.Context, opts exec.RunOptions) (*exec.Result, error) {
				assert.Contains(t, opts.Args, "-r")
				return &exec.Result{}, nil
			},
		}

		err := NewRunner(mockExec).Pull(ctx, testTarget, "/workspace/outputs", "./outputs", true)
		require.NoError(t, err)
	})
}

func TestRunner_PushDir(t *testing.T) {
	ctx := context.Background()

	newCountingExec := func() (*mocks.ExecutorMock, *[]string) {
		var mu sync.Mutex
		var copied []string
		m := &mocks.ExecutorMock{
			RunFunc: func(ctx context.Context, opts exec.RunOptions) (*exec.Result, error) {
				if opts.Name == "scp" {
					mu.Lock()
					copied = append(copied, opts.Args[len(opts.Args)-1])
					mu.Unlock()
				}
				return &exec.Result{}, nil
			},
		}
		return m, &copied
	}

	t.Run("uploads tree and skips excluded files", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "train.py", 100)
		writeFile(t, dir, "data/config.yaml", 50)
		writeFile(t, dir, "debug.log", 10)
		writeFile(t, dir, ".git/HEAD", 10)
		writeFile(t, dir, "__pycache__/train.pyc", 10)

		mockExec, _ := newCountingExec()
		res, err := NewRunner(mockExec).PushDir(ctx, testTarget, dir, "/workspace/proj", TransferOptions{})

		require.NoError(t, err)
		assert.Equal(t, []string{
			"/workspace/proj/data/config.yaml",
			"/workspace/proj/train.py",
		}, res.Copied)
		assert.Equal(t, int64(150), res.TotalBytes)
		assert.Contains(t, res.Skipped, "debug.log")
		assert.Contains(t, res.Skipped, ".git")
		assert.Contains(t, res.Skipped, "__pycache__")
	})

	t.Run("skips oversize files", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "small.bin", 100)
		writeFile(t, dir, "big.bin", 3<<20)

		mockExec, _ := newCountingExec()
		res, err := NewRunner(mockExec).PushDir(ctx, testTarget, dir, "/dst", TransferOptions{MaxSizeMB: 2})

		require.NoError(t, err)
		assert.Equal(t, []string{"/dst/small.bin"}, res.Copied)
		reason := res.Skipped["big.bin"]
		assert.Contains(t, reason, "too large")
	})

	t.Run("force include bypasses filters", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "debug.log", 10)
		writeFile(t, dir, "big.bin", 3<<20)

		mockExec, _ := newCountingExec()
		res, err := NewRunner(mockExec).PushDir(ctx, testTarget, dir, "/dst", TransferOptions{
			ForceInclude: true,
			MaxSizeMB:    2,
		})

		require.NoError(t, err)
		assert.Len(t, res.Copied, 2)
		assert.Empty(t, res.Skipped)
	})

	t.Run("limit caps file count", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "a.txt", 1)
		writeFile(t, dir, "b.txt", 1)
		writeFile(t, dir, "c.txt", 1)

		mockExec, _ := newCountingExec()
		res, err := NewRunner(mockExec).PushDir(ctx, testTarget, dir, "/dst", TransferOptions{Limit: 2})

		require.NoError(t, err)
		assert.Len(t, res.Copied, 2)
	})

	t.Run("worker count bounds concurrency", func(t *testing.T) {
		dir := t.TempDir()
		for _, n := range []string{"1", "2", "3", "4", "5", "6"} {
			writeFile(t, dir, n+".txt", 1)
		}

		var mu sync.Mutex
		active, peak := 0, 0
		mockExec := &mocks.ExecutorMock{
			RunFunc: func(ctx context.Context, opts exec.RunOptions) (*exec.Result, error) {
				if opts.Name == "scp" {
					mu.Lock()
					active++
					if active > peak {
						peak = active
					}
					mu.Unlock()
					defer func() {
						mu.Lock()
						active--
						mu.Unlock()
					}()
				}
				return &exec.Result{}, nil
			},
		}

		_, err := NewRunner(mockExec).PushDir(ctx, testTarget, dir, "/dst", TransferOptions{Workers: 2})
		require.NoError(t, err)
		assert.LessOrEqual(t, peak, 2)
	})
}

func TestMatchesAny(t *testing.T) {
	patterns := []string{"*.log", "node_modules", ".git"}

	assert.True(t, matchesAny("debug.log", "sub/debug.log", patterns))
	assert.True(t, matchesAny("node_modules", "node_modules", patterns))
	assert.False(t, matchesAny("train.py", "train.py", patterns))
	assert.False(t, matchesAny("login.py", "login.py", patterns), "glob match, not substring")
}

func TestDefaultExcludePatterns(t *testing.T) {
	joined := strings.Join(DefaultExcludePatterns, " ")
	for _, p := range []string{"*.tmp", "__pycache__", ".git", "node_modules", "*.log"} {
		assert.Contains(t, joined, p)
	}
}
