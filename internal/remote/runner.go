// Package remote runs commands, shells, and file transfers on rented
// instances over SSH. All operations connect as root, which is how
// marketplace hosts expose their containers.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/vastctl/vastctl/internal/exec"
	"github.com/vastctl/vastctl/internal/slogger"
)

const (
	// DefaultCommandTimeout bounds a single remote command.
	DefaultCommandTimeout = 60 * time.Second

	// DefaultReadyTimeout bounds the SSH readiness probe after boot.
	DefaultReadyTimeout = 120 * time.Second

	// SessionName is the tmux session used for persistent shells.
	SessionName = "vastctl"

	readyPollInterval = 5 * time.Second
)

var (
	// ErrNoSSHInfo indicates the target has no host or port.
	ErrNoSSHInfo = errors.New("no ssh connection info")

	// ErrNotReady indicates SSH did not come up within the timeout.
	ErrNotReady = errors.New("ssh connection not ready")
)

// CommandError is returned when a remote command exits non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "no stderr output"
	}
	return fmt.Sprintf("remote command exited %d: %s", e.ExitCode, msg)
}

// Target identifies an SSH endpoint on a rented instance.
type Target struct {
	Host    string
	Port    int
	KeyPath string
}

// Addr returns host:port for display.
func (t Target) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

func (t Target) validate() error {
	if t.Host == "" || t.Port == 0 {
		return ErrNoSSHInfo
	}
	return nil
}

// Runner executes operations on remote instances via the system ssh client.
type Runner struct {
	exec      exec.Executor
	readyPoll time.Duration
}

// NewRunner returns a Runner backed by the given executor.
func NewRunner(executor exec.Executor) *Runner {
	return &Runner{exec: executor, readyPoll: readyPollInterval}
}

// sshArgs builds the common ssh argument list for a target. Host keys are
// not checked because marketplace instances are ephemeral and regenerate
// keys on every rental.
func sshArgs(t Target, extra ...string) []string {
	args := []string{
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "LogLevel=ERROR",
		"-i", t.KeyPath,
		"-p", strconv.Itoa(t.Port),
	}
	args = append(args, extra...)
	return append(args, "root@"+t.Host)
}

// Run executes a command on the target and returns its stdout.
// The command is bounded by DefaultCommandTimeout.
func (r *Runner) Run(ctx context.Context, t Target, command string) (string, error) {
	return r.run(ctx, t, command, DefaultCommandTimeout)
}

// Stream executes a command on the target with stdout and stderr wired to
// out. Unlike Run there is no timeout; it blocks until the command exits
// or the context is cancelled. Used for following remote logs.
func (r *Runner) Stream(ctx context.Context, t Target, command string, out io.Writer) error {
	if err := t.validate(); err != nil {
		return err
	}

	_, err := r.exec.Run(ctx, exec.RunOptions{
		Name:   "ssh",
		Args:   append(sshArgs(t), command),
		Stdout: out,
		Stderr: out,
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream ssh: %w", err)
	}
	return nil
}

func (r *Runner) run(ctx context.Context, t Target, command string, timeout time.Duration) (string, error) {
	if err := t.validate(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := r.exec.Run(ctx, exec.RunOptions{
		Name: "ssh",
		Args: append(sshArgs(t), command),
	})
	if res == nil {
		return "", fmt.Errorf("run ssh: %w", err)
	}
	if err != nil && res.ExitCode != 0 {
		return string(res.Stdout), &CommandError{
			Command:  command,
			ExitCode: res.ExitCode,
			Stderr:   string(res.Stderr),
		}
	}
	if err != nil {
		return string(res.Stdout), fmt.Errorf("run ssh: %w", err)
	}
	return string(res.Stdout), nil
}

// ShellOptions configures an interactive session.
type ShellOptions struct {
	// Tmux attaches to the persistent session, creating it if needed.
	Tmux bool

	// NewWindow opens a fresh window in the persistent session.
	// Implies Tmux.
	NewWindow bool

	// Command, when set, is run instead of an interactive shell.
	Command string
}

// Shell opens an interactive SSH session wired to the current terminal.
func (r *Runner) Shell(ctx context.Context, t Target, opts ShellOptions) error {
	if err := t.validate(); err != nil {
		return err
	}

	var remoteCmd string
	switch {
	case opts.Command != "":
		remoteCmd = opts.Command
	case opts.NewWindow:
		remoteCmd = fmt.Sprintf(
			"tmux new-window -t %[1]s 2>/dev/null; tmux attach -t %[1]s || tmux new-session -s %[1]s",
			SessionName,
		)
	case opts.Tmux:
		remoteCmd = fmt.Sprintf("tmux attach -t %[1]s || tmux new-session -s %[1]s", SessionName)
	default:
		// Plain shell: skip the host's auto-tmux and land in the workspace.
		remoteCmd = "touch ~/.no_auto_tmux; cd ~/workspace 2>/dev/null || cd ~; exec bash"
	}

	return r.exec.RunInteractive(ctx, exec.RunOptions{
		Name: "ssh",
		Args: append(sshArgs(t, "-t"), remoteCmd),
	})
}

// TestConnection verifies the target answers SSH commands.
func (r *Runner) TestConnection(ctx context.Context, t Target) error {
	out, err := r.Run(ctx, t, "echo 'Connection test'")
	if err != nil {
		return err
	}
	if !strings.Contains(out, "Connection test") {
		return fmt.Errorf("unexpected probe output: %q", strings.TrimSpace(out))
	}
	return nil
}

// WaitReady polls until the target accepts SSH commands or the timeout
// elapses. Instances report running before sshd accepts connections, so
// callers should always probe before provisioning.
func (r *Runner) WaitReady(ctx context.Context, t Target, timeout time.Duration) error {
	if err := t.validate(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}

	log := slogger.FromContext(ctx)
	deadline := time.Now().Add(timeout)

	for {
		err := r.TestConnection(ctx, t)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %s: %v", ErrNotReady, timeout, err)
		}

		log.Debug("ssh not ready, retrying", "target", t.Addr(), "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.readyPoll):
		}
	}
}

// TunnelArgs returns the ssh arguments for a background port forward.
// Exposed so callers can show the exact command to the user.
func TunnelArgs(t Target, localPort, remotePort int) []string {
	return sshArgs(t,
		"-N",
		"-L", fmt.Sprintf("%d:localhost:%d", localPort, remotePort),
		"-o", "ServerAliveInterval=60",
		"-o", "ServerAliveCountMax=3",
	)
}

// OpenTunnel forwards localPort to remotePort on the target. It blocks
// until the context is cancelled or the ssh process exits.
func (r *Runner) OpenTunnel(ctx context.Context, t Target, localPort, remotePort int) error {
	if err := t.validate(); err != nil {
		return err
	}

	res, err := r.exec.Run(ctx, exec.RunOptions{
		Name: "ssh",
		Args: TunnelArgs(t, localPort, remotePort),
	})
	if err != nil && ctx.Err() == nil {
		stderr := ""
		if res != nil {
			stderr = strings.TrimSpace(string(res.Stderr))
		}
		return fmt.Errorf("ssh tunnel exited: %w (%s)", err, stderr)
	}
	return nil
}
