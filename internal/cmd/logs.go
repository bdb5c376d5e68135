package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vastctl/vastctl/internal/logging"
	"github.com/vastctl/vastctl/internal/provision"
)

var logsCmd = &cobra.Command{
	Use:   "logs [name]",
	Short: "Show the provisioning log of an instance",
	Long: `Show the onstart provisioning log from an instance. Useful to check
whether package installs finished or why they failed.

With --follow the log is streamed until interrupted. With --save a copy
is appended under the local data directory, so it survives the instance.`,
	Example: `  # Last 100 lines from the active instance
  vastctl logs

  # Stream and keep a local copy
  vastctl logs my-trainer --follow --save`,
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

		lines, _ := cmd.Flags().GetInt("lines")
		follow, _ := cmd.Flags().GetBool("follow")

		logFile := provision.DefaultLogFile
		command := fmt.Sprintf("tail -n %d %s", lines, logFile)
		if follow {
			command = fmt.Sprintf("tail -n %d -f %s", lines, logFile)
		}

		var out io.Writer = os.Stdout
		if save, _ := cmd.Flags().GetBool("save"); save {
			loader := LoaderFromContext(ctx)
			if loader == nil {
				return fmt.Errorf("configuration not loaded")
			}
			path, err := logging.EnsureInstancePath(loader.DataDir(), inst.Name)
			if err != nil {
				return err
			}
			tee, err := logging.NewTeeWriter(os.Stdout, path)
			if err != nil {
				return err
			}
			defer tee.Close() //nolint:errcheck
			out = tee
		}

		return a.runner.Stream(ctx, target, command, out)
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntP("lines", "n", 100, "number of lines to show")
	logsCmd.Flags().BoolP("follow", "f", false, "keep streaming new lines")
	logsCmd.Flags().Bool("save", false, "append a copy to the local data directory")
}
