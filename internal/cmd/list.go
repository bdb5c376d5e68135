package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vastctl/vastctl/internal/instance"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List instances",
	Long: `List instances tracked in the local registry.

By default, lists instances in the active project only. Use --all to list
every project. Statuses shown are the last known ones; run
'vastctl refresh' to reconcile with the marketplace.`,
	Example: `  # List instances in the active project
  vastctl list

  # Everything, across projects
  vastctl list --all

  # Only running instances
  vastctl list --status running`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, closer, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closer()

		all, _ := cmd.Flags().GetBool("all")
		project, _ := cmd.Flags().GetString("project")
		status, _ := cmd.Flags().GetString("status")

		filter := instance.ListFilter{
			Project: project,
			Status:  instance.Status(status),
		}
		if !all && filter.Project == "" {
			filter.Project = cfg.ActiveProject()
		}

		instances, err := store.List(filter)
		if err != nil {
			return fmt.Errorf("list instances: %w", err)
		}

		if len(instances) == 0 {
			if all {
				fmt.Println("No instances found")
			} else {
				fmt.Println("No instances found (try --all)")
			}
			return nil
		}

		active, _ := store.ActiveName()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		header := "NAME\tSTATUS\tHARDWARE\tPRICE\tUPTIME"
		if cfg.UI.ShowCosts {
			header += "\tCOST"
		}
		fmt.Fprintln(w, header)
		for _, inst := range instances {
			name := inst.Name
			if inst.Name == active {
				name += " *"
			}
			row := fmt.Sprintf("%s\t%s\t%s\t$%.3f/hr\t%s",
				name, inst.Status, hardwareColumn(inst), inst.PricePerHour, uptimeColumn(inst))
			if cfg.UI.ShowCosts {
				row += "\t" + costColumn(inst)
			}
			fmt.Fprintln(w, row)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush output: %w", err)
		}

		return nil
	},
}

func hardwareColumn(inst *instance.Instance) string {
	if inst.GPUType != "" {
		return fmt.Sprintf("%dx %s", inst.GPUCount, inst.GPUType)
	}
	if inst.CPUCores > 0 {
		return fmt.Sprintf("%d CPU", inst.CPUCores)
	}
	return "-"
}

// costColumn shows cost to date. CurrentCost already folds in the accrued
// total, so it is the whole figure, not an increment.
func costColumn(inst *instance.Instance) string {
	return fmt.Sprintf("$%.2f", inst.CurrentCost())
}

func uptimeColumn(inst *instance.Instance) string {
	if !inst.IsRunning() {
		return "-"
	}
	return fmt.Sprintf("%.1fh", inst.RuntimeHours())
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolP("all", "a", false, "list instances across all projects")
	listCmd.Flags().String("project", "", "list instances in a specific project")
	listCmd.Flags().String("status", "", "filter by status (running, stopped, ...)")
}
