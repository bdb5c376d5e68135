package remote

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vastctl/vastctl/internal/exec"
	"github.com/vastctl/vastctl/internal/exec/mocks"
)

func TestGenerateJupyterToken(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		token, err := GenerateJupyterToken()
		require.NoError(t, err)
		assert.Len(t, token, 32)
		for _, c := range token {
			assert.True(t, (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'), "unexpected char %q", c)
		}
		seen[token] = true
	}
	assert.Greater(t, len(seen), 1, "tokens should not repeat")
}

func TestRunner_CheckJupyter(t *testing.T) {
	ctx := context.Background()

	t.Run("api responds", func(t *testing.T) {
		mockExec := &mocks.ExecutorMock{
			RunFunc: func(ctx context.Context, opts exec.RunOptions) (*exec.Result, error) {
				cmd := opts.Args[len(opts.Args)-1]
				assert.Contains(t, cmd, "curl -s http://localhost:8888/api")
				return &exec.Result{Stdout: []byte(`{"version": "4.2.0"}`)}, nil
			},
		}

		assert.True(t, NewRunner(mockExec).CheckJupyter(ctx, testTarget, 0))
	})

	t.Run("falls back to process check", func(t *testing.T) {
		mockExec := &mocks.ExecutorMock{
			RunFunc: func(ctx context.Context, opts exec.RunOptions) (*exec.Result, error) {
				cmd := opts.Args[len(opts.Args)-1]
				if strings.Contains(cmd, "curl") {
					return &exec.Result{ExitCode: 7}, errors.New("exit status 7")
				}
				assert.Contains(t, cmd, "pgrep -f jupyter-lab")
				return &exec.Result{Stdout: []byte("4312\n")}, nil
			},
		}

		assert.True(t, NewRunner(mockExec).CheckJupyter(ctx, testTarget, 0))
	})

	t.Run("not running", func(t *testing.T) {
		mockExec := &mocks.ExecutorMock{
			RunFunc: func(ctx context.Context, opts exec.RunOptions) (*exec.Result, error) {
				return &exec.Result{ExitCode: 1}, errors.New("exit status 1")
			},
		}

		assert.False(t, NewRunner(mockExec).CheckJupyter(ctx, testTarget, 0))
	})

	t.Run("custom port", func(t *testing.T) {
		mockExec := &mocks.ExecutorMock{
			RunFunc: func(ctx context.Context, opts exec.RunOptions) (*exec.Result, error) {
				cmd := opts.Args[len(opts.Args)-1]
				assert.Contains(t, cmd, "localhost:9999/api")
				return &exec.Result{Stdout: []byte(`{"version": "4.2.0"}`)}, nil
			},
		}

		assert.True(t, NewRunner(mockExec).CheckJupyter(ctx, testTarget, 9999))
	})
}

func TestRunner_RestartJupyter(t *testing.T) {
	ctx := context.Background()

	t.Run("runs restart script", func(t *testing.T) {
		var script string
		mockExec := &mocks.ExecutorMock{
			RunFunc: func(ctx context.Context, opts exec.RunOptions) (*exec.Result, error) {
				script = opts.Args[len(opts.Args)-1]
				return &exec.Result{Stdout: []byte("Jupyter restarted on port 8888\n")}, nil
			},
		}

		err := NewRunner(mockExec).RestartJupyter(ctx, testTarget, "abc123token", 0)
		require.NoError(t, err)

		assert.Contains(t, script, "pkill -f jupyter-lab")
		assert.Contains(t, script, "pip install -q -U jupyterlab notebook ipywidgets")
		assert.Contains(t, script, "--port=8888")
		assert.Contains(t, script, "--NotebookApp.token='abc123token'")
		assert.Contains(t, script, "--allow-root")
		assert.Contains(t, script, "disable_check_xsrf=True")
	})

	t.Run("missing confirmation", func(t *testing.T) {
		mockExec := &mocks.ExecutorMock{
			RunFunc: func(ctx context.Context, opts exec.RunOptions) (*exec.Result, error) {
				return &exec.Result{Stdout: []byte("something else")}, nil
			},
		}

		err := NewRunner(mockExec).RestartJupyter(ctx, testTarget, "tok", 8888)
		assert.Error(t, err)
	})
}
