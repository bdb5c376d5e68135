package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vastctl/vastctl/internal/remote"
	"github.com/vastctl/vastctl/internal/train"
)

var trainCmd = &cobra.Command{
	Use:   "train [script] [-- script-args...]",
	Short: "Run a training script on an instance",
	Long: `Run a training script on an instance: upload the project directory,
install its dependencies, inject W&B credentials from the local
environment, and launch the script in a detached tmux session so it
survives disconnects.

The job can also be described in a train.yaml file (--config). Use '--'
to pass flags through to the script.`,
	Example: `  # Train on the active instance
  vastctl train train.py -- --epochs 10 --lr 0.001

  # On a named instance, skipping re-upload
  vastctl train train.py --instance big-llm --no-upload

  # From a job file, then watch it
  vastctl train --config train.yaml --attach`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		attach, _ := cmd.Flags().GetBool("attach")

		// Bare --attach reattaches to a session started earlier.
		attachOnly := attach && len(args) == 0 && !cmd.Flags().Changed("config")

		var job *train.Job
		if !attachOnly {
			built, err := buildTrainJob(cmd, args)
			if err != nil {
				return err
			}
			job = built
		}

		a, closer, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer closer()

		var nameArgs []string
		if name, _ := cmd.Flags().GetString("instance"); name != "" {
			nameArgs = []string{name}
		}
		inst, target, err := runningTarget(a, nameArgs)
		if err != nil {
			return err
		}
		touchInstance(ctx, a.store, inst)

		if attachOnly {
			return a.runner.Shell(ctx, target, remote.ShellOptions{
				Command: "tmux attach -t " + train.DefaultSession,
			})
		}

		if !job.NoUpload {
			fmt.Printf("Uploading %s to %s:%s\n", job.SyncDir, inst.Name, job.RemoteDir())
			exclude := append([]string{}, a.cfg.Transfer.ExcludePatterns...)
			exclude = append(exclude, job.SyncExclude...)
			res, err := a.runner.PushDir(ctx, target, job.SyncDir, job.RemoteDir(), remote.TransferOptions{
				MaxSizeMB: a.cfg.Transfer.MaxFileSizeMB,
				Workers:   a.cfg.Transfer.MaxWorkers,
				Exclude:   exclude,
			})
			if err != nil {
				return fmt.Errorf("upload project: %w", err)
			}
			fmt.Printf("Uploaded %d files\n", len(res.Copied))
		}

		if !job.NoDeps {
			if install := train.DetectDeps(job.SyncDir).InstallCommand(); install != "" {
				fmt.Printf("Installing dependencies: %s\n", install)
				command := fmt.Sprintf("cd %s && %s", job.RemoteDir(), install)
				if err := a.runner.Stream(ctx, target, command, os.Stdout); err != nil {
					return fmt.Errorf("install dependencies: %w", err)
				}
			}
		}

		if key := os.Getenv("WANDB_API_KEY"); key != "" {
			vars := map[string]string{"WANDB_API_KEY": key}
			if job.WandbProject != "" {
				vars["WANDB_PROJECT"] = job.WandbProject
			}
			if _, err := a.runner.InjectAutoEnv(ctx, target, vars); err != nil {
				return fmt.Errorf("inject W&B credentials: %w", err)
			}
		}

		if _, err := a.runner.Run(ctx, target, job.SessionCommand()); err != nil {
			return fmt.Errorf("start training session: %w", err)
		}

		fmt.Printf("\nTraining started on %s\n", inst.Name)
		fmt.Printf("  script:   %s\n", job.Command())
		fmt.Printf("  session:  tmux %q\n", job.Session)
		if job.WandbProject != "" {
			fmt.Printf("  wandb:    https://wandb.ai/%s\n", job.WandbProject)
		}
		fmt.Printf("\nWatch it:    vastctl train --attach --instance %s\n", inst.Name)
		fmt.Printf("Afterwards:  %s\n", job.DownloadCommand(inst.Name))

		if attach {
			return a.runner.Shell(ctx, target, remote.ShellOptions{
				Command: "tmux attach -t " + job.Session,
			})
		}
		return nil
	},
}

// buildTrainJob assembles the job from a config file, flags, or both.
// Flags override file values.
func buildTrainJob(cmd *cobra.Command, args []string) (*train.Job, error) {
	flags := cmd.Flags()

	var job *train.Job
	if configPath, _ := flags.GetString("config"); configPath != "" {
		loaded, err := train.LoadJob(configPath)
		if err != nil {
			return nil, err
		}
		job = loaded
	} else if len(args) > 0 {
		job = &train.Job{Script: args[0], Args: args[1:]}
	} else {
		return nil, fmt.Errorf("a script or --config is required (try: vastctl train train.py)")
	}

	if flags.Changed("sync-dir") {
		job.SyncDir, _ = flags.GetString("sync-dir")
	}
	if flags.Changed("outputs") {
		job.RemoteOutputs, _ = flags.GetString("outputs")
	}
	if flags.Changed("wandb-project") {
		job.WandbProject, _ = flags.GetString("wandb-project")
	}
	if noUpload, _ := flags.GetBool("no-upload"); noUpload {
		job.NoUpload = true
	}
	if noDeps, _ := flags.GetBool("no-deps"); noDeps {
		job.NoDeps = true
	}
	job.ApplyDefaults()
	return job, nil
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().StringP("config", "c", "", "job file (train.yaml)")
	trainCmd.Flags().String("instance", "", "instance to train on (default: active)")
	trainCmd.Flags().String("sync-dir", "", "project directory to upload (default: current)")
	trainCmd.Flags().StringP("outputs", "o", train.DefaultOutputsDir, "remote artifact directory")
	trainCmd.Flags().String("wandb-project", "", "W&B project to log under")
	trainCmd.Flags().Bool("no-upload", false, "skip uploading the project directory")
	trainCmd.Flags().Bool("no-deps", false, "skip dependency installation")
	trainCmd.Flags().Bool("attach", false, "attach to the tmux session after starting")
}
