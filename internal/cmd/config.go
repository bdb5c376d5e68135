package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vastctl/vastctl/internal/config"
)

var errNoEditor = errors.New("$EDITOR is not set")

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "View and modify configuration",
	Long: `View and modify vastctl configuration.

With no arguments, displays all configuration.
With one argument, displays the value for the specified key.
With two arguments, sets the value for the specified key.`,
	Example: `  # Show all config
  vastctl config

  # Show one key
  vastctl config defaults.price_max

  # Set a key
  vastctl config default_gpu_type RTX4090

  # Open the config file in $EDITOR
  vastctl config --edit`,
	Args: cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := LoaderFromContext(cmd.Context())
		if loader == nil {
			var err error
			loader, err = config.NewLoader()
			if err != nil {
				return fmt.Errorf("init config loader: %w", err)
			}
		}

		if editFlag, _ := cmd.Flags().GetBool("edit"); editFlag {
			return runEdit(loader)
		}
		if pathFlag, _ := cmd.Flags().GetBool("path"); pathFlag {
			fmt.Println(loader.Path())
			return nil
		}

		switch len(args) {
		case 0:
			return runShowAll(loader)
		case 1:
			return runShowKey(loader, args[0])
		case 2:
			return runSetKey(loader, args[0], args[1])
		}

		return nil
	},
}

func runEdit(loader *config.Loader) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return errNoEditor
	}

	// Ensure the config file exists (Load creates it if missing).
	if _, err := loader.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	editorCmd := exec.Command(editor, loader.Path())
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	return editorCmd.Run()
}

func runShowAll(loader *config.Loader) error {
	settings := loader.All()

	// The API key is a secret; show only whether it is set.
	if v, ok := settings["api_key"].(string); ok && v != "" {
		settings["api_key"] = "<set>"
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func runShowKey(loader *config.Loader, key string) error {
	value, err := loader.Get(key)
	if err != nil {
		return err
	}
	if value == nil {
		fmt.Println("(not set)")
		return nil
	}
	if key == "api_key" {
		value = "<set>"
	}
	fmt.Printf("%v\n", value)
	return nil
}

func runSetKey(loader *config.Loader, key, value string) error {
	if err := loader.Set(key, value); err != nil {
		return err
	}
	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().Bool("edit", false, "open the config file in $EDITOR")
	configCmd.Flags().Bool("path", false, "print the config file path")
}
