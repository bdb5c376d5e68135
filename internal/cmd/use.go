package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vastctl/vastctl/internal/names"
	"github.com/vastctl/vastctl/internal/registry"
)

var useCmd = &cobra.Command{
	Use:   "use [name]",
	Short: "Set the active instance",
	Long: `Set the instance that commands operate on when no name is given.
With no argument, prints the current active instance.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, closer, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closer()

		if clear, _ := cmd.Flags().GetBool("clear"); clear {
			if err := store.ClearActive(); err != nil {
				return err
			}
			fmt.Println("Cleared active instance")
			return nil
		}

		if len(args) == 0 {
			name, err := store.ActiveName()
			if err != nil {
				if errors.Is(err, registry.ErrNoActive) {
					fmt.Println("No active instance set")
					return nil
				}
				return err
			}
			fmt.Println(name)
			return nil
		}

		name := names.Normalize(args[0])
		if err := store.SetActive(name); err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				return fmt.Errorf("no instance named %q (run: vastctl list)", name)
			}
			return err
		}

		fmt.Printf("Active instance: %s\n", name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(useCmd)

	useCmd.Flags().Bool("clear", false, "clear the active instance")
}
