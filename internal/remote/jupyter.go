package remote

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// DefaultJupyterPort is where instance images run Jupyter Lab.
const DefaultJupyterPort = 8888

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateJupyterToken returns a random 32-character lowercase
// alphanumeric token.
func GenerateJupyterToken() (string, error) {
	var b strings.Builder
	for i := 0; i < 32; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(tokenAlphabet))))
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		b.WriteByte(tokenAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// CheckJupyter reports whether Jupyter Lab is serving on the given port.
// It hits the local API endpoint from inside the instance and falls back
// to a process check when the HTTP probe fails.
func (r *Runner) CheckJupyter(ctx context.Context, t Target, port int) bool {
	if port == 0 {
		port = DefaultJupyterPort
	}

	out, err := r.run(ctx, t, fmt.Sprintf("curl -s http://localhost:%d/api", port), 15*time.Second)
	if err == nil && strings.Contains(out, "version") {
		return true
	}

	_, err = r.run(ctx, t, "pgrep -f jupyter-lab", 10*time.Second)
	return err == nil
}

// RestartJupyter kills any running Jupyter processes and starts a fresh
// Jupyter Lab on the given port with the given token.
func (r *Runner) RestartJupyter(ctx context.Context, t Target, token string, port int) error {
	if port == 0 {
		port = DefaultJupyterPort
	}

	script := fmt.Sprintf(`#!/bin/bash
set -e

pkill -f jupyter-lab || true
pkill -f jupyter || true
sleep 2

if ! command -v unzip >/dev/null 2>&1; then
    apt-get update && apt-get install -y zip unzip
fi

python -m pip install -q -U jupyterlab notebook ipywidgets

cd /workspace 2>/dev/null || cd /tmp/workspace 2>/dev/null || cd /root

nohup jupyter lab \
    --ip=0.0.0.0 \
    --port=%d \
    --no-browser \
    --allow-root \
    --NotebookApp.token='%s' \
    --NotebookApp.password='' \
    --ServerApp.disable_check_xsrf=True \
    --notebook-dir=. \
    > /tmp/jupyter.log 2>&1 &

echo "Jupyter restarted on port %d"
`, port, token, port)

	out, err := r.run(ctx, t, script, 3*time.Minute)
	if err != nil {
		return fmt.Errorf("restart jupyter: %w", err)
	}
	if !strings.Contains(out, "Jupyter restarted") {
		return fmt.Errorf("restart jupyter: unexpected output: %q", strings.TrimSpace(out))
	}
	return nil
}
