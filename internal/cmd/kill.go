package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vastctl/vastctl/internal/instance"
	"github.com/vastctl/vastctl/internal/prompt"
)

var killCmd = &cobra.Command{
	Use:   "kill [name]",
	Short: "Destroy an instance",
	Long: `Destroy an instance on the marketplace and remove it from the registry.
This deletes the machine's disk; all data on it is lost.

Running instances must be stopped first, or pass --force.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, closer, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer closer()

		name, err := resolveName(a.store, args)
		if err != nil {
			return err
		}

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && term.IsTerminal(int(os.Stdin.Fd())) {
			ok, err := prompt.Confirm(
				fmt.Sprintf("Destroy instance %q?", name),
				"The disk and everything on it will be deleted.")
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}

		force, _ := cmd.Flags().GetBool("force")
		if err := a.mgr.Destroy(ctx, name, instance.DestroyOptions{Force: force}); err != nil {
			if errors.Is(err, instance.ErrNotFound) {
				return fmt.Errorf("no instance named %q (run: vastctl list)", name)
			}
			return err
		}

		fmt.Printf("Destroyed %s\n", name)

		syncCloud(ctx, a, a.cfg.Cloud.SyncOn.Kill, "kill", name)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(killCmd)

	killCmd.Flags().BoolP("force", "f", false, "destroy even while running")
	killCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
}
