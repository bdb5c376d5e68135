package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vastctl/vastctl/internal/remote"
)

var cpCmd = &cobra.Command{
	Use:   "cp <src> <dst>",
	Short: "Copy files to or from an instance",
	Long: `Copy files between the local machine and an instance over scp.

Remote paths use the form name:path, or :path for the active instance.
Copying a local directory uploads it recursively, skipping files over the
configured size limit and anything matching the exclude patterns
(checkpoints, caches, and the like). Use --force to include everything.`,
	Example: `  # Upload a script to the active instance
  vastctl cp train.py :/workspace/

  # Upload a project directory
  vastctl cp ./myproject my-trainer:/workspace/myproject

  # Download results
  vastctl cp my-trainer:/workspace/outputs ./outputs`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, closer, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer closer()

		srcName, srcPath, srcRemote := splitRemotePath(args[0])
		dstName, dstPath, dstRemote := splitRemotePath(args[1])

		switch {
		case srcRemote && dstRemote:
			return fmt.Errorf("copying between two instances is not supported")
		case !srcRemote && !dstRemote:
			return fmt.Errorf("neither path is remote (use name:path or :path)")
		}

		var nameArgs []string
		if srcRemote && srcName != "" {
			nameArgs = []string{srcName}
		} else if dstRemote && dstName != "" {
			nameArgs = []string{dstName}
		}

		inst, target, err := runningTarget(a, nameArgs)
		if err != nil {
			return err
		}

		touchInstance(ctx, a.store, inst)

		if srcRemote {
			return pull(cmd, a, target, srcPath, dstPath)
		}
		return push(cmd, a, target, srcPath, dstPath)
	},
}

func pull(cmd *cobra.Command, a *app, target remote.Target, remotePath, localPath string) error {
	recursive, _ := cmd.Flags().GetBool("recursive")
	if err := a.runner.Pull(cmd.Context(), target, remotePath, localPath, recursive); err != nil {
		return fmt.Errorf("pull %s: %w", remotePath, err)
	}
	fmt.Printf("Pulled %s from %s\n", remotePath, target.Addr())
	return nil
}

func push(cmd *cobra.Command, a *app, target remote.Target, localPath, remotePath string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}

	if !info.IsDir() {
		if err := a.runner.Push(cmd.Context(), target, localPath, remotePath); err != nil {
			return fmt.Errorf("push %s: %w", localPath, err)
		}
		fmt.Printf("Pushed %s to %s\n", localPath, target.Addr())
		return nil
	}

	force, _ := cmd.Flags().GetBool("force")
	opts := remote.TransferOptions{
		ForceInclude: force,
		MaxSizeMB:    a.cfg.Transfer.MaxFileSizeMB,
		Workers:      a.cfg.Transfer.MaxWorkers,
		Exclude:      a.cfg.Transfer.ExcludePatterns,
	}

	result, err := a.runner.PushDir(cmd.Context(), target, localPath, remotePath, opts)
	if err != nil {
		return fmt.Errorf("push %s: %w", localPath, err)
	}

	fmt.Printf("Pushed %d files (%.1f MB) to %s\n",
		len(result.Copied), float64(result.TotalBytes)/(1024*1024), target.Addr())
	for path, reason := range result.Skipped {
		fmt.Printf("  skipped %s: %s\n", path, reason)
	}
	return nil
}

// splitRemotePath parses name:path syntax. A lone leading colon targets
// the active instance.
func splitRemotePath(arg string) (name, path string, isRemote bool) {
	idx := strings.Index(arg, ":")
	if idx < 0 {
		return "", arg, false
	}
	// Windows drive letters and URL-ish args are local paths.
	if idx == 1 || strings.Contains(arg[:idx], "/") {
		return "", arg, false
	}
	return arg[:idx], arg[idx+1:], true
}

func init() {
	rootCmd.AddCommand(cpCmd)

	cpCmd.Flags().BoolP("recursive", "r", false, "pull directories recursively")
	cpCmd.Flags().BoolP("force", "f", false, "include files past the size limit and exclude patterns")
}
