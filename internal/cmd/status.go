package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vastctl/vastctl/internal/instance"
	"github.com/vastctl/vastctl/internal/names"
	"github.com/vastctl/vastctl/internal/provision"
	"github.com/vastctl/vastctl/internal/registry"
)

var statusCmd = &cobra.Command{
	Use:   "status [name]",
	Short: "Show details for an instance",
	Long: `Show the tracked state of an instance: hardware, connection info,
runtime, and accrued cost. With no name, shows the active instance.

This reads the local registry only; run 'vastctl refresh' first if the
status looks stale.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, closer, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closer()

		name, err := resolveName(store, args)
		if err != nil {
			return err
		}

		inst, err := store.Get(names.Normalize(name))
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				return fmt.Errorf("no instance named %q (run: vastctl list)", name)
			}
			return err
		}

		showToken, _ := cmd.Flags().GetBool("show-token")
		printStatus(inst, cfg.UI.ShowCosts, showToken)
		return nil
	},
}

func printStatus(inst *instance.Instance, showCosts, showToken bool) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush() //nolint:errcheck

	fmt.Fprintf(w, "Name:\t%s\n", inst.Name)
	fmt.Fprintf(w, "Status:\t%s\n", inst.Status)
	if inst.Project != "" {
		fmt.Fprintf(w, "Project:\t%s\n", inst.Project)
	}
	if len(inst.Tags) > 0 {
		fmt.Fprintf(w, "Tags:\t%s\n", strings.Join(inst.Tags, ", "))
	}
	if inst.RemoteID != 0 {
		fmt.Fprintf(w, "Remote ID:\t%d\n", inst.RemoteID)
	}
	fmt.Fprintf(w, "Hardware:\t%s\n", hardwareColumn(inst))
	if inst.DiskGB > 0 {
		fmt.Fprintf(w, "Disk:\t%d GB\n", inst.DiskGB)
	}
	fmt.Fprintf(w, "Image:\t%s\n", inst.Image)
	if conn := inst.ConnectionString(); conn != "" {
		fmt.Fprintf(w, "SSH:\t%s\n", conn)
	}
	if inst.JupyterToken != "" && showToken {
		fmt.Fprintf(w, "Jupyter:\t%s\n", inst.JupyterURL())
	}
	if inst.BandwidthMbps > 0 {
		fmt.Fprintf(w, "Bandwidth:\t%.0f Mbps\n", inst.BandwidthMbps)
	}

	fmt.Fprintf(w, "Created:\t%s\n", inst.CreatedAt.Format(time.RFC3339))
	if inst.IsRunning() {
		fmt.Fprintf(w, "Uptime:\t%.1fh\n", inst.RuntimeHours())
	}
	if showCosts {
		fmt.Fprintf(w, "Price:\t$%.3f/hr\n", inst.PricePerHour)
		fmt.Fprintf(w, "Total cost:\t%s\n", costColumn(inst))
	}

	if inst.IsRunning() {
		fmt.Fprintf(w, "Setup log:\t%s (on the instance)\n", provision.DefaultLogFile)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().Bool("show-token", false, "include the Jupyter URL with its token")
}
