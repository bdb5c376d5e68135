package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vastctl/vastctl/internal/instance"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reconcile the registry with the marketplace",
	Long: `Fetch the actual state of every tracked instance from the marketplace
and update the registry: statuses, SSH endpoints, and remote IDs learned
by label matching.

Records with no matching remote instance are reported but never deleted;
use 'vastctl rm' to drop them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, closer, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer closer()

		all, _ := cmd.Flags().GetBool("all")
		filter := instance.ListFilter{}
		if !all {
			filter.Project = a.cfg.ActiveProject()
		}

		results, err := a.mgr.Refresh(ctx, filter)
		if err != nil {
			return fmt.Errorf("refresh: %w", err)
		}

		if len(results) == 0 {
			fmt.Println("No instances to refresh")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSTATUS\tREMOTE")
		for _, r := range results {
			remoteCol := "matched"
			if !r.Matched {
				remoteCol = "not found"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Status, remoteCol)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush output: %w", err)
		}

		syncCloud(ctx, a, a.cfg.Cloud.SyncOn.Refresh, "refresh", "")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)

	refreshCmd.Flags().BoolP("all", "a", false, "refresh instances across all projects")
}
