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

var stopCmd = &cobra.Command{
	Use:   "stop [name]",
	Short: "Stop an instance",
	Long: `Stop a running instance. The machine keeps its disk and can be resumed
with 'vastctl start <name>', but storage still bills while stopped.

With no name, stops the active instance.`,
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
		if a.cfg.UI.ConfirmStop && !yes && term.IsTerminal(int(os.Stdin.Fd())) {
			ok, err := prompt.Confirm(
				fmt.Sprintf("Stop instance %q?", name),
				"Disk storage keeps billing while stopped.")
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}

		inst, err := a.mgr.Stop(ctx, name)
		if err != nil {
			if errors.Is(err, instance.ErrNotFound) {
				return fmt.Errorf("no instance named %q (run: vastctl list)", name)
			}
			return err
		}

		fmt.Printf("Stopped %s\n", inst.Name)
		if a.cfg.UI.ShowCosts && inst.TotalCost > 0 {
			fmt.Printf("  total runtime: %.1fh, cost: $%.2f\n", inst.TotalRuntimeHours, inst.TotalCost)
		}

		syncCloud(ctx, a, a.cfg.Cloud.SyncOn.Stop, "stop", inst.Name)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)

	stopCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
}
