package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vastctl/vastctl/internal/envdetect"
	"github.com/vastctl/vastctl/internal/remote"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Inspect and inject environment variables",
	Long: `Inspect the runtime environment of an instance, show which local
credentials would be forwarded, and inject variables into a running
instance after the fact.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEnvDetect(cmd, args)
	},
}

var envDetectCmd = &cobra.Command{
	Use:   "detect [name]",
	Short: "Detect the runtime environment of an instance",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEnvDetect,
}

// envProbes run over SSH, each best-effort. A probe that fails shows "-"
// rather than failing the command; a bare image legitimately lacks most
// of these.
var envProbes = []struct {
	label   string
	command string
}{
	{"OS", `. /etc/os-release 2>/dev/null && echo "$PRETTY_NAME"`},
	{"GPU", "nvidia-smi --query-gpu=name,memory.total --format=csv,noheader 2>/dev/null"},
	{"CUDA", `nvcc --version 2>/dev/null | sed -n 's/.*release \([0-9.]*\).*/\1/p'`},
	{"Python", "python --version 2>&1"},
	{"Torch", `python -c "import torch; print(torch.__version__)" 2>/dev/null`},
	{"Disk free", "df -h /workspace 2>/dev/null | awk 'NR==2 {print $4}'"},
}

func runEnvDetect(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("Environment of %s:\n\n", inst.Name)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, probe := range envProbes {
		out, err := a.runner.Run(ctx, target, probe.command)
		value := strings.TrimSpace(out)
		if err != nil || value == "" {
			value = "-"
		}
		fmt.Fprintf(w, "%s:\t%s\n", probe.label, value)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

var envLocalCmd = &cobra.Command{
	Use:   "local",
	Short: "Show local credentials that would be auto-forwarded",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		vars := envdetect.Scrape()
		if len(vars) == 0 {
			fmt.Println("No credential variables detected in the local environment")
			fmt.Println("(set AWS_*, WANDB_*, HF_*, OPENAI_*, ... in your shell)")
			return nil
		}

		keys := make([]string, 0, len(vars))
		for k := range vars {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VARIABLE\tVALUE")
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%s\n", k, envdetect.Redact(vars[k]))
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush output: %w", err)
		}

		fmt.Println("\nThese are injected automatically when starting an instance (see --no-auto-env)")
		return nil
	},
}

var envInjectCmd = &cobra.Command{
	Use:   "inject [name]",
	Short: "Inject environment variables into a running instance",
	Long: `Inject environment variables into a running instance over SSH, for
machines provisioned before the variables existed locally or whose
injection failed during start.`,
	Example: `  # Push an env file to the active instance
  vastctl env inject --env-file .vastenv

  # Forward auto-detected credentials to a named instance
  vastctl env inject my-trainer --auto`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		envFile, _ := cmd.Flags().GetString("env-file")
		auto, _ := cmd.Flags().GetBool("auto")
		if envFile == "" && !auto {
			return fmt.Errorf("nothing to inject (use --env-file or --auto)")
		}

		a, closer, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer closer()

		inst, target, err := runningTarget(a, args)
		if err != nil {
			return err
		}

		if envFile != "" {
			content, err := os.ReadFile(envFile)
			if err != nil {
				return fmt.Errorf("read env file: %w", err)
			}
			if err := a.runner.InjectEnvFile(ctx, target, string(content), ""); err != nil {
				return err
			}
			fmt.Printf("Injected %s into %s (%s)\n", envFile, inst.Name, remote.DefaultEnvFile)
		}

		if auto {
			vars := envdetect.Scrape()
			if len(vars) == 0 {
				fmt.Println("No credentials detected in the local environment")
			} else {
				n, err := a.runner.InjectAutoEnv(ctx, target, vars)
				if err != nil {
					return err
				}
				fmt.Printf("Injected %d auto-detected credential(s) into %s\n", n, inst.Name)
			}
		}

		touchInstance(ctx, a.store, inst)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(envCmd)
	envCmd.AddCommand(envDetectCmd)
	envCmd.AddCommand(envLocalCmd)
	envCmd.AddCommand(envInjectCmd)

	envInjectCmd.Flags().StringP("env-file", "e", "", "env file to push to the instance")
	envInjectCmd.Flags().BoolP("auto", "a", false, "inject auto-detected local credentials")
}
