package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vastctl/vastctl/internal/remote"
)

const defaultJupyterPort = 8888

var connectCmd = &cobra.Command{
	Use:   "connect [name]",
	Short: "Tunnel to the Jupyter server on an instance",
	Long: `Forward a local port to the Jupyter server running on an instance and
print the URL to open. The tunnel stays up until interrupted.

The Jupyter token is hidden from output unless --show-token is given.`,
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
		if inst.JupyterToken == "" {
			return fmt.Errorf("no Jupyter token recorded for %q", inst.Name)
		}

		remotePort := inst.JupyterPort
		if remotePort == 0 {
			remotePort = defaultJupyterPort
		}

		if !a.runner.CheckJupyter(ctx, target, remotePort) {
			fmt.Println("Jupyter is not responding, restarting it...")
			if err := a.runner.RestartJupyter(ctx, target, inst.JupyterToken, remotePort); err != nil {
				return fmt.Errorf("restart jupyter: %w", err)
			}
		}

		localPort, _ := cmd.Flags().GetInt("local-port")
		if localPort == 0 {
			localPort = a.cfg.Defaults.JupyterPort
		}

		url := fmt.Sprintf("http://localhost:%d/lab?token=%s", localPort, inst.JupyterToken)
		if show, _ := cmd.Flags().GetBool("show-token"); !show {
			url = fmt.Sprintf("http://localhost:%d/lab?token=<hidden> (rerun with --show-token)", localPort)
		}
		fmt.Printf("Jupyter at %s\n", url)
		fmt.Println("Tunnel open, press Ctrl-C to close")

		touchInstance(ctx, a.store, inst)

		if err := a.runner.OpenTunnel(ctx, target, localPort, remotePort); err != nil {
			tunnelCmd := "ssh " + strings.Join(remote.TunnelArgs(target, localPort, remotePort), " ")
			return fmt.Errorf("tunnel failed: %w\nRun it manually with:\n  %s", err, tunnelCmd)
		}
		return nil
	},
}

var restartJupyterCmd = &cobra.Command{
	Use:   "restart-jupyter [name]",
	Short: "Restart the Jupyter server on an instance",
	Args:  cobra.MaximumNArgs(1),
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
		if inst.JupyterToken == "" {
			return fmt.Errorf("no Jupyter token recorded for %q", inst.Name)
		}

		port := inst.JupyterPort
		if port == 0 {
			port = defaultJupyterPort
		}

		if err := a.runner.RestartJupyter(ctx, target, inst.JupyterToken, port); err != nil {
			return fmt.Errorf("restart jupyter: %w", err)
		}

		fmt.Printf("Jupyter restarted on %s (connect with: vastctl connect %s)\n", inst.Name, inst.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(restartJupyterCmd)

	connectCmd.Flags().Int("local-port", 0, "local port to forward (default from config)")
	connectCmd.Flags().Bool("show-token", false, "print the URL with the token visible")
}
