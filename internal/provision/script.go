package provision

import (
	"fmt"
	"strings"
)

// The onstart script is assembled in two stages. SecretStage accepts steps
// that may contain credentials and runs before any output capture is set
// up. Calling StartCapture seals it and returns a LoggedStage, which is the
// only type that can append provisioning phases. That makes it impossible
// to emit a logged step ahead of secret injection.

// bootstrapScript runs first on every machine. Even torch images sometimes
// ship without python-is-python3.
const bootstrapScript = `#!/bin/bash
set -e  # Exit on any error - fail fast, don't silently continue

# =============================================================================
# Python Bootstrap (unconditional - required for all provisioning)
# =============================================================================
# This ensures python/pip exist BEFORE any python commands run.
apt-get update
apt-get install -y python3 python3-pip python-is-python3

# Sanity check - fail early if Python is broken
python --version || { echo "FATAL: python not available"; exit 1; }
python -m pip --version || { echo "FATAL: pip not available"; exit 1; }
echo "Python bootstrap complete"
`

// SecretStage is the portion of the script that runs before output capture.
type SecretStage struct {
	parts   []string
	logging LoggingConfig
}

// NewScript starts an onstart script with the shell bootstrap and, when
// logging is enabled, the phase-marker helpers. No capture is active yet.
func NewScript(logging LoggingConfig) *SecretStage {
	s := &SecretStage{logging: logging}
	s.parts = append(s.parts, bootstrapScript)

	if logging.IsEnabled() {
		s.parts = append(s.parts, fmt.Sprintf(`
# Provisioning logging (functions only - capture enabled later)
LOG_FILE=%q
STATUS_FILE=%q

log_phase() {
    local phase="$1"
    local ts=$(date -u +"%%Y-%%m-%%dT%%H:%%M:%%SZ")
    echo "{\"phase\":\"$phase\",\"ts\":\"$ts\"}" > "$STATUS_FILE"
    echo "[$(date)] === Phase: $phase ==="
}
`, logging.logFile(), logging.statusFile()))
	}

	return s
}

// AddSecretStep appends a step that may contain credentials. It runs with
// no output capture active, so nothing it echoes can end up in the log.
func (s *SecretStage) AddSecretStep(cmd string) {
	if cmd = strings.TrimSpace(cmd); cmd != "" {
		s.parts = append(s.parts, cmd)
	}
}

// StartCapture seals the secret stage and turns on output capture. All
// subsequent steps go through the returned LoggedStage and are written to
// the log file on the machine.
func (s *SecretStage) StartCapture() *LoggedStage {
	logged := &LoggedStage{parts: s.parts, logging: s.logging}
	if s.logging.IsEnabled() {
		logged.parts = append(logged.parts, `
# Enable log capture AFTER secret injection steps
exec > >(tee -a "$LOG_FILE") 2>&1
`)
		logged.parts = append(logged.parts, `log_phase "init"`)
	}
	return logged
}

// LoggedStage accepts provisioning phases that run under output capture.
type LoggedStage struct {
	parts   []string
	logging LoggingConfig
}

// AddPhase appends a named provisioning phase. Empty commands are dropped.
func (l *LoggedStage) AddPhase(name, cmd string) {
	if cmd = strings.TrimSpace(cmd); cmd == "" {
		return
	}
	if l.logging.IsEnabled() {
		l.parts = append(l.parts, fmt.Sprintf("log_phase %q", name))
	}
	l.parts = append(l.parts, cmd)
}

// Script renders the final onstart script.
func (l *LoggedStage) Script() string {
	parts := l.parts
	if l.logging.IsEnabled() {
		parts = append(parts, `log_phase "complete"`)
	}
	return strings.Join(parts, "\n")
}

// ScriptOptions collects everything needed to assemble an onstart script.
type ScriptOptions struct {
	Provisioning Config

	// SecretSteps are injected before output capture starts (env files,
	// auto-detected credentials). They never reach the provisioning log.
	SecretSteps []string

	JupyterToken string
	WorkspaceCmd string

	GPUType string
	CPUOnly bool

	// Fast trims installs to the minimal pip set and skips torch.
	Fast bool
	// SkipTorch suppresses torch installation regardless of mode.
	SkipTorch bool
	// CustomPackages replaces the configured pip package list.
	CustomPackages []string
}

// Build assembles the complete onstart script: bootstrap, secret
// injection, then logged provisioning phases ending with Jupyter and
// torch (torch last, it takes longest).
func Build(opts ScriptOptions) string {
	pre := NewScript(opts.Provisioning.Logging)
	for _, step := range opts.SecretSteps {
		pre.AddSecretStep(step)
	}

	script := pre.StartCapture()

	script.AddPhase("apt_packages", AptCommand(opts.Provisioning.Apt))
	script.AddPhase("workspace", opts.WorkspaceCmd)

	pip := PipCommand(opts.Provisioning.Pip, opts.Fast)
	if len(opts.CustomPackages) > 0 {
		pip = pipInstall(opts.CustomPackages)
	}
	script.AddPhase("pip_packages", pip)

	script.AddPhase("jupyter", JupyterCommand(opts.JupyterToken))

	mode := opts.Provisioning.Torch.Mode
	if mode == "" {
		mode = TorchModeAuto
	}
	if opts.Fast || opts.SkipTorch {
		mode = TorchModeSkip
	}
	script.AddPhase("torch", TorchCommand(opts.GPUType, opts.CPUOnly, mode))

	script.AddPhase("custom_commands", strings.Join(opts.Provisioning.Commands, "\n"))

	return script.Script()
}

func pipInstall(packages []string) string {
	if len(packages) == 0 {
		return ""
	}
	return "python -m pip install -q -U " + strings.Join(packages, " ")
}

// PipCommand returns the pip install line for the configured packages.
// Fast mode falls back to a minimal Jupyter-only set when none is
// configured.
func PipCommand(cfg PipConfig, fast bool) string {
	if fast {
		packages := cfg.FastPackages
		if len(packages) == 0 {
			packages = []string{"jupyterlab", "notebook"}
		}
		return pipInstall(packages)
	}
	return pipInstall(cfg.Packages)
}

// AptCommand returns the apt install line for the configured packages.
// dpkg skips already-installed packages on its own, so no existence check.
func AptCommand(cfg AptConfig) string {
	if len(cfg.Packages) == 0 {
		return ""
	}
	return "apt-get update && apt-get install -y " + strings.Join(cfg.Packages, " ")
}

// JupyterCommand returns the Jupyter Lab startup step. The setup marker is
// written first so readiness probes can distinguish "booted" from
// "provisioned".
func JupyterCommand(token string) string {
	return fmt.Sprintf(`echo "setup_complete=true" > /root/.vastctl_setup
jupyter lab --ip=0.0.0.0 --port=8888 --no-browser --allow-root --NotebookApp.token='%s' --NotebookApp.password='' --notebook-dir=. &`, token)
}

const (
	torchCPUInstall     = "python -m pip install -U torch torchvision torchaudio --index-url https://download.pytorch.org/whl/cpu"
	torchCU124Install   = "python -m pip install -U torch torchvision torchaudio --index-url https://download.pytorch.org/whl/cu124"
	torchNightlyInstall = "python -m pip install -U torch torchvision torchaudio --index-url https://download.pytorch.org/whl/nightly/cu128"
)

// TorchCommand returns the PyTorch install step for the given hardware and
// mode. Auto mode probes the image at runtime and skips the install when a
// working torch (with CUDA, for GPU machines) is already present. RTX 5090
// needs the cu128 nightly regardless of mode.
func TorchCommand(gpuType string, cpuOnly bool, mode string) string {
	switch {
	case mode == TorchModeSkip:
		return ""
	case mode == TorchModeAuto:
		if cpuOnly {
			return fmt.Sprintf(`# Auto torch mode (CPU): skip if already installed
if python -c "import torch; print('ok')" 2>/dev/null | grep -q "ok"; then
    echo "PyTorch already installed, skipping upgrade"
else
    echo "Installing PyTorch (CPU)..."
    %s
fi`, rawTorchInstall(gpuType, cpuOnly))
		}
		return fmt.Sprintf(`# Auto torch mode (GPU): skip if installed with CUDA support
if python -c "import torch; print(torch.cuda.is_available())" 2>/dev/null | grep -q "True"; then
    echo "PyTorch already installed with CUDA support, skipping upgrade"
else
    echo "Installing/upgrading PyTorch..."
    %s
fi`, rawTorchInstall(gpuType, cpuOnly))
	case mode == TorchModeCPU || cpuOnly:
		return torchCPUInstall
	case mode == TorchModeCU128Nightly || strings.Contains(strings.ToLower(gpuType), "5090"):
		return torchNightlyInstall
	default:
		return torchCU124Install
	}
}

func rawTorchInstall(gpuType string, cpuOnly bool) string {
	if cpuOnly {
		return torchCPUInstall
	}
	if strings.Contains(strings.ToLower(gpuType), "5090") {
		return torchNightlyInstall
	}
	return torchCU124Install
}
