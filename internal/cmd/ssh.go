package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vastctl/vastctl/internal/instance"
	"github.com/vastctl/vastctl/internal/names"
	"github.com/vastctl/vastctl/internal/registry"
	"github.com/vastctl/vastctl/internal/remote"
)

var sshCmd = &cobra.Command{
	Use:   "ssh [name]",
	Short: "Open a shell on an instance",
	Long: `Open an interactive SSH session on an instance. With no name, connects
to the active instance.

With --tmux, attaches to a persistent tmux session on the machine, so
long-running work survives disconnects.`,
	Example: `  # Shell on the active instance
  vastctl ssh

  # Persistent tmux session on a named instance
  vastctl ssh my-trainer --tmux

  # Just verify connectivity
  vastctl ssh my-trainer --test`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, closer, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer closer()

		inst, target, err := runningTarget(a, args)
		if err != nil {
			return err
		}

		if test, _ := cmd.Flags().GetBool("test"); test {
			if err := a.runner.TestConnection(ctx, target); err != nil {
				return fmt.Errorf("connection to %s failed: %w", target.Addr(), err)
			}
			fmt.Printf("Connection to %s OK\n", target.Addr())
			return nil
		}

		tmux, _ := cmd.Flags().GetBool("tmux")
		newWindow, _ := cmd.Flags().GetBool("tmux-new")

		// Probe before handing the terminal to ssh so a dead machine gets
		// a useful message instead of a hang.
		if err := a.runner.TestConnection(ctx, target); err != nil {
			return fmt.Errorf("cannot reach %s: %w\nThe machine may have stopped or been reclaimed. Run 'vastctl refresh' to check", target.Addr(), err)
		}

		touchInstance(ctx, a.store, inst)

		return a.runner.Shell(ctx, target, remote.ShellOptions{
			Tmux:      tmux,
			NewWindow: newWindow,
		})
	},
}

// runningTarget looks up an instance expected to be reachable and builds
// its SSH endpoint.
func runningTarget(a *app, args []string) (*instance.Instance, remote.Target, error) {
	name, err := resolveName(a.store, args)
	if err != nil {
		return nil, remote.Target{}, err
	}

	inst, err := a.store.Get(names.Normalize(name))
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return nil, remote.Target{}, fmt.Errorf("no instance named %q (run: vastctl list)", name)
		}
		return nil, remote.Target{}, err
	}

	if !inst.IsRunning() {
		return nil, remote.Target{}, fmt.Errorf("instance %q is %s (start it with: vastctl start %s): %w",
			inst.Name, inst.Status, inst.Name, instance.ErrNotRunning)
	}

	target, err := sshTarget(inst, a.cfg)
	if err != nil {
		return nil, remote.Target{}, err
	}
	return inst, target, nil
}

func init() {
	rootCmd.AddCommand(sshCmd)

	sshCmd.Flags().Bool("test", false, "test connectivity and exit")
	sshCmd.Flags().BoolP("tmux", "t", false, "attach to the persistent tmux session")
	sshCmd.Flags().Bool("tmux-new", false, "open a new window in the persistent tmux session")
}
