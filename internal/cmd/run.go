package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vastctl/vastctl/internal/names"
	"github.com/vastctl/vastctl/internal/remote"
)

var runCmd = &cobra.Command{
	Use:   "run [name] <command>...",
	Short: "Run a command on an instance",
	Long: `Run a command on an instance, streaming output to the terminal.

The first argument is treated as an instance name when it matches a
registry entry; otherwise the whole argument list is the command and it
runs on the active instance. Commands run in the workspace directory by
default.`,
	Example: `  # On the active instance
  vastctl run nvidia-smi

  # On a named instance, in a subdirectory
  vastctl run my-trainer --cd /workspace/repo -- python train.py`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, closer, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer closer()

		nameArgs := []string{}
		cmdArgs := args
		if len(args) > 1 && a.store.Exists(names.Normalize(args[0])) {
			nameArgs = args[:1]
			cmdArgs = args[1:]
		}

		inst, target, err := runningTarget(a, nameArgs)
		if err != nil {
			return err
		}

		command := strings.Join(cmdArgs, " ")

		dir, _ := cmd.Flags().GetString("cd")
		if dir != "" {
			command = fmt.Sprintf("cd %s && %s", dir, command)
		}

		env, _ := cmd.Flags().GetStringArray("env")
		if len(env) > 0 {
			exports := make([]string, 0, len(env))
			for _, kv := range env {
				if !strings.Contains(kv, "=") {
					return fmt.Errorf("invalid --env %q (expected KEY=VALUE)", kv)
				}
				exports = append(exports, "export "+kv)
			}
			command = strings.Join(exports, " && ") + " && " + command
		}

		touchInstance(ctx, a.store, inst)

		return a.runner.Shell(ctx, target, remote.ShellOptions{Command: command})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("cd", "/workspace", "remote working directory")
	runCmd.Flags().StringArray("env", nil, "environment variable KEY=VALUE (repeatable)")
}
