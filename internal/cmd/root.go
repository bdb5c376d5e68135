// Package cmd implements the vastctl CLI commands using Cobra.
// It provides commands for renting GPU and CPU instances on the
// marketplace, connecting to them over SSH, and managing their lifecycle.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vastctl/vastctl/internal/config"
	"github.com/vastctl/vastctl/internal/slogger"
)

// verbosity counts -v flags: 0 warn, 1 info, 2+ debug.
var verbosity int

// appConfig holds the loaded application configuration.
var appConfig *config.Config

// configLoader is used to read and write individual config keys.
var configLoader *config.Loader

var rootCmd = &cobra.Command{
	Use:   "vastctl",
	Short: "Rent and manage GPU instances on the vast.ai marketplace",
	Long: `vastctl rents GPU and CPU machines on the vast.ai marketplace, provisions
them with your Python stack, and manages their lifecycle.

Instances are tracked in a local registry, so names like "my-trainer" work
across start, ssh, stop, and kill. Secrets are injected over SSH after boot
and never pass through the marketplace API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger := slogger.New(slogger.Config{Verbosity: verbosity})

		ctx := slogger.WithLogger(cmd.Context(), logger)
		if appConfig != nil {
			ctx = WithConfig(ctx, appConfig)
		}
		if configLoader != nil {
			ctx = WithLoader(ctx, configLoader)
		}
		cmd.SetContext(ctx)

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug)")
}

func initConfig() {
	loader, err := config.NewLoader()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
		return
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		configLoader = loader
		return
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config validation failed: %v\n", err)
	}

	appConfig = cfg
	configLoader = loader
}
