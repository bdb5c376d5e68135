package remote

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// workspaceScript locates the largest writable volume on the instance,
// lays out the standard workspace directories there, and links them from
// ~/workspace and /workspace. Hugging Face caches are pointed at the big
// volume so model downloads never fill the root filesystem.
const workspaceScript = `
STORAGE_DIR=""

for dir in /var/lib/docker /home /data /mnt/data /tmp; do
    if [ -d "$dir" ] && [ -w "$dir" ]; then
        avail=$(df -k "$dir" 2>/dev/null | awk 'NR==2 {print $4}')
        if [ -n "$avail" ] && [ "$avail" -gt 10000000 ]; then
            STORAGE_DIR="$dir"
            break
        fi
    fi
done

if [ -z "$STORAGE_DIR" ]; then
    STORAGE_DIR=$(df -k | awk 'NR>1 && $4>10000000 {print $4, $6}' | grep -v -E '(overlay|tmpfs|/dev|/proc|/sys|/etc)' | sort -rn | head -1 | awk '{print $2}')
fi

if [ -z "$STORAGE_DIR" ] || [ ! -w "$STORAGE_DIR" ]; then
    STORAGE_DIR="/tmp"
fi

WORKSPACE_DIR="$STORAGE_DIR/workspace"
mkdir -p "$WORKSPACE_DIR"

mkdir -p "$WORKSPACE_DIR/models"
mkdir -p "$WORKSPACE_DIR/datasets"
mkdir -p "$WORKSPACE_DIR/outputs"
mkdir -p "$WORKSPACE_DIR/checkpoints"
mkdir -p "$WORKSPACE_DIR/logs"
mkdir -p "$WORKSPACE_DIR/notebooks"

rm -f ~/workspace
ln -s "$WORKSPACE_DIR" ~/workspace

if [ -d "/workspace" ] && [ ! -L "/workspace" ]; then
    if [ "$(ls -A /workspace 2>/dev/null)" ]; then
        mv /workspace/* "$WORKSPACE_DIR/" 2>/dev/null || true
    fi
    rm -rf /workspace
fi
ln -sfn "$WORKSPACE_DIR" /workspace

echo "export WORKSPACE=$WORKSPACE_DIR" >> ~/.bashrc
echo "export HF_HOME=$WORKSPACE_DIR/models" >> ~/.bashrc
echo "export TRANSFORMERS_CACHE=$WORKSPACE_DIR/models" >> ~/.bashrc
echo "export HF_DATASETS_CACHE=$WORKSPACE_DIR/datasets" >> ~/.bashrc

echo "SUCCESS: Workspace setup at $WORKSPACE_DIR"
`

// WorkspaceCommand returns a script fragment that cds into the workspace
// on the largest available volume, for embedding in onstart scripts.
func WorkspaceCommand() string {
	return `
STORAGE_DIR=$(df -h | grep -v overlay | grep -v tmpfs | awk 'NR>1 {print $6, $4}' | sort -k2 -hr | head -1 | awk '{print $1}')

if [ -n "$STORAGE_DIR" ] && [ -d "$STORAGE_DIR" ]; then
    mkdir -p $STORAGE_DIR/workspace
    cd $STORAGE_DIR/workspace
    echo "Using storage at: $STORAGE_DIR/workspace"
else
    mkdir -p /tmp/workspace
    cd /tmp/workspace
    echo "Using fallback storage at: /tmp/workspace"
fi
`
}

// SetupWorkspace creates the workspace layout on the target.
func (r *Runner) SetupWorkspace(ctx context.Context, t Target) error {
	out, err := r.run(ctx, t, workspaceScript, 2*time.Minute)
	if err != nil {
		return fmt.Errorf("setup workspace: %w", err)
	}
	if !strings.Contains(out, "SUCCESS:") {
		return fmt.Errorf("setup workspace: unexpected output: %q", strings.TrimSpace(out))
	}
	return nil
}
