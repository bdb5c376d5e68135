package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/vastctl/vastctl/internal/config"
	"github.com/vastctl/vastctl/internal/envdetect"
	"github.com/vastctl/vastctl/internal/image"
	"github.com/vastctl/vastctl/internal/instance"
	"github.com/vastctl/vastctl/internal/names"
	"github.com/vastctl/vastctl/internal/prompt"
	"github.com/vastctl/vastctl/internal/provision"
	"github.com/vastctl/vastctl/internal/slogger"
	"github.com/vastctl/vastctl/internal/spinner"
	"github.com/vastctl/vastctl/internal/vast"
)

// localEnvFile is picked up from the working directory when present.
const localEnvFile = ".vastenv"

var startCmd = &cobra.Command{
	Use:   "start [name]",
	Short: "Rent and provision a new instance",
	Long: `Rent a machine matching the requested hardware, provision it, and track
it under a name. With no name, a random one is generated.

The best offer is chosen by price adjusted for bandwidth and host
reliability. After boot, the workspace is set up and any secrets from an
env file (or scraped API keys, see --no-auto-env) are injected over SSH.

Starting a stopped instance by name resumes it instead of renting again.`,
	Example: `  # Rent the default GPU with a generated name
  vastctl start

  # A named 2x A100 box with a bigger disk
  vastctl start my-trainer --gpu-type A100 --num-gpus 2 --disk 100

  # CPU-only instance for preprocessing
  vastctl start prep --cpu --cpus 32 --ram 128

  # Use a provisioning profile
  vastctl start llm-lab --profile llm`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, closer, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer closer()

		if err := ensureSSHKey(ctx, a.executor, a.cfg); err != nil {
			return err
		}

		name := ""
		if len(args) > 0 {
			name = args[0]
		} else {
			name, err = names.GenerateUnique(a.store.Exists, 0)
			if err != nil {
				return err
			}
		}

		cc, err := buildCreateConfig(cmd, a.cfg)
		if err != nil {
			return err
		}

		fmt.Printf("Searching for %s offers...\n", describeHardware(cc))

		inst, err := createWithProgress(ctx, a, name, cc)
		if err != nil {
			return createError(err, name)
		}

		if err := a.store.SetActive(inst.Name); err != nil {
			return fmt.Errorf("set active instance: %w", err)
		}

		showToken, _ := cmd.Flags().GetBool("show-token")
		printInstanceReady(inst, showToken)

		syncCloud(ctx, a, a.cfg.Cloud.SyncOn.Start, "start", inst.Name)

		return nil
	},
}

// createWithProgress runs Create behind a terminal spinner fed by the
// manager's progress logs. Falls back to a plain call when output is not
// a terminal or the user asked for verbose logging.
func createWithProgress(ctx context.Context, a *app, name string, cc instance.CreateConfig) (*instance.Instance, error) {
	if verbosity > 0 || !term.IsTerminal(int(os.Stderr.Fd())) {
		return a.mgr.Create(ctx, name, cc)
	}

	spin := spinner.New(os.Stderr)
	go func() {
		_ = spin.Start()
	}()
	defer spin.Stop()

	logger := slogger.New(slogger.Config{Verbosity: 1, Output: spin.Writer()})
	return a.mgr.Create(slogger.WithLogger(ctx, logger), name, cc)
}

// buildCreateConfig resolves flags, profile, and config defaults into the
// hardware and software request. Precedence is flag > profile > config.
func buildCreateConfig(cmd *cobra.Command, cfg *config.Config) (instance.CreateConfig, error) {
	flags := cmd.Flags()

	profileName, _ := flags.GetString("profile")
	if profileName == "" {
		profileName = cfg.DefaultProfile
	}

	profiles := provision.NewProfileStore(cfg.Profiles, cfg.Cloud.ProfileCachePath)
	provCfg, err := profiles.Effective(cfg.Provisioning, profileName)
	if err != nil {
		return instance.CreateConfig{}, fmt.Errorf("resolve profile %q: %w (run: vastctl profiles list)", profileName, err)
	}

	img, _ := flags.GetString("image")
	if img == "" {
		img, err = profiles.Image(profileName)
		if err != nil {
			return instance.CreateConfig{}, err
		}
	}
	if img == "" {
		img = cfg.DefaultImage
	}
	img, err = image.Normalize(img)
	if err != nil {
		return instance.CreateConfig{}, fmt.Errorf("invalid image: %w", err)
	}

	cc := instance.CreateConfig{
		Image:        img,
		Provisioning: provCfg,
	}

	cc.DiskGB, _ = flags.GetInt("disk")
	if cc.DiskGB == 0 {
		cc.DiskGB = cfg.DefaultDiskGB
	}
	cc.MaxPrice, _ = flags.GetFloat64("price-max")
	if cc.MaxPrice == 0 {
		cc.MaxPrice = cfg.Defaults.PriceMax
	}
	cc.MinBandwidth, _ = flags.GetFloat64("bandwidth-min")
	if cc.MinBandwidth == 0 {
		cc.MinBandwidth = cfg.Defaults.BandwidthMin
	}
	cc.MinReliability, _ = flags.GetFloat64("reliability-min")
	if cc.MinReliability == 0 {
		cc.MinReliability = cfg.Defaults.ReliabilityMin
	}
	cc.Project, _ = flags.GetString("project")
	if cc.Project == "" {
		cc.Project = cfg.ActiveProject()
	}
	cc.Fast, _ = flags.GetBool("fast")

	cc.CPUOnly, _ = flags.GetBool("cpu")
	if cc.CPUOnly {
		cc.MinCPUs, _ = flags.GetInt("cpus")
		cc.MinRAMGB, _ = flags.GetInt("ram")
	} else {
		gpuFlag, _ := flags.GetString("gpu-type")
		cc.GPUType, err = resolveGPUType(gpuFlag, cfg)
		if err != nil {
			return instance.CreateConfig{}, err
		}
		cc.NumGPUs, _ = flags.GetInt("num-gpus")
	}

	if err := resolveSecrets(cmd, cfg, &cc); err != nil {
		return instance.CreateConfig{}, err
	}

	return cc, nil
}

// resolveGPUType applies flag and config precedence, falling back to an
// interactive picker when nothing is configured.
func resolveGPUType(flagValue string, cfg *config.Config) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if cfg.DefaultGPUType != "" {
		return cfg.DefaultGPUType, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("no GPU type given (use --gpu-type or set default_gpu_type)")
	}

	types := vast.KnownGPUTypes()
	idx, err := prompt.Choice("Select GPU type", types)
	if err != nil {
		if errors.Is(err, prompt.ErrCanceled) {
			return "", err
		}
		return "", fmt.Errorf("select gpu type: %w", err)
	}
	return types[idx], nil
}

// resolveSecrets collects the env file content and scraped environment
// variables that will be injected over SSH after boot.
func resolveSecrets(cmd *cobra.Command, cfg *config.Config, cc *instance.CreateConfig) error {
	path, _ := cmd.Flags().GetString("env-file")
	explicit := path != ""
	if path == "" {
		if _, err := os.Stat(localEnvFile); err == nil {
			path = localEnvFile
		} else {
			path = cfg.EnvFile
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if explicit {
				return fmt.Errorf("read env file: %w", err)
			}
		} else {
			cc.EnvFileContent = string(data)
		}
	}

	if noAuto, _ := cmd.Flags().GetBool("no-auto-env"); !noAuto {
		cc.AutoEnv = envdetect.Scrape()
	}

	return nil
}

func describeHardware(cc instance.CreateConfig) string {
	if cc.CPUOnly {
		return fmt.Sprintf("CPU (%d cores, %d GB RAM)", cc.MinCPUs, cc.MinRAMGB)
	}
	if cc.NumGPUs > 1 {
		return fmt.Sprintf("%dx %s", cc.NumGPUs, cc.GPUType)
	}
	return cc.GPUType
}

// createError translates lifecycle errors into actionable messages.
func createError(err error, name string) error {
	switch {
	case errors.Is(err, instance.ErrAlreadyExists):
		return fmt.Errorf("instance %q already exists (use 'vastctl ssh %s' to connect, or pick another name)", name, name)
	case errors.Is(err, instance.ErrNoOffers):
		return fmt.Errorf("%w (try raising --price-max or lowering --bandwidth-min)", err)
	}

	var provErr *instance.ProvisionError
	if errors.As(err, &provErr) {
		return fmt.Errorf("%w\nThe machine is still rented and accrues cost. Run 'vastctl refresh' to check it, or 'vastctl kill %s' to destroy it", err, name)
	}
	return err
}

func printInstanceReady(inst *instance.Instance, showToken bool) {
	fmt.Printf("\nInstance %s is ready\n", inst.Name)
	fmt.Printf("  remote ID:  %d\n", inst.RemoteID)
	if inst.GPUType != "" {
		fmt.Printf("  hardware:   %dx %s\n", inst.GPUCount, inst.GPUType)
	}
	fmt.Printf("  price:      $%.3f/hr\n", inst.PricePerHour)
	if conn := inst.ConnectionString(); conn != "" {
		fmt.Printf("  ssh:        %s (vastctl ssh %s)\n", conn, inst.Name)
	}
	if inst.JupyterToken != "" {
		if showToken {
			fmt.Printf("  jupyter:    %s\n", inst.JupyterURL())
		} else {
			url := inst.JupyterURL()
			masked := url[:strings.Index(url, "token=")+len("token=")] + "<hidden>"
			fmt.Printf("  jupyter:    %s (vastctl connect %s --show-token)\n", masked, inst.Name)
		}
	}
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().StringP("gpu-type", "g", "", "GPU type to rent (e.g. A100, RTX4090)")
	startCmd.Flags().IntP("num-gpus", "n", 1, "number of GPUs")
	startCmd.Flags().Bool("cpu", false, "rent a CPU-only instance")
	startCmd.Flags().Int("cpus", 16, "minimum CPU cores (with --cpu)")
	startCmd.Flags().Int("ram", 64, "minimum RAM in GB (with --cpu)")
	startCmd.Flags().IntP("disk", "d", 0, "disk size in GB")
	startCmd.Flags().StringP("image", "i", "", "Docker image to run")
	startCmd.Flags().StringP("profile", "p", "", "provisioning profile")
	// The original tool called profiles templates; accept the old spelling.
	startCmd.Flags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "template" {
			name = "profile"
		}
		return pflag.NormalizedName(name)
	})
	startCmd.Flags().Float64("price-max", 0, "maximum hourly price in dollars")
	startCmd.Flags().Float64("bandwidth-min", 0, "minimum download bandwidth in Mbps")
	startCmd.Flags().Float64("reliability-min", 0, "minimum host reliability (0..1)")
	startCmd.Flags().String("project", "", "project to file the instance under")
	startCmd.Flags().String("env-file", "", "env file with secrets to inject over SSH")
	startCmd.Flags().Bool("no-auto-env", false, "do not scrape API keys from the local environment")
	startCmd.Flags().Bool("fast", false, "minimal provisioning for quick startup")
	startCmd.Flags().Bool("show-token", false, "print the Jupyter URL with the token visible")
}
