package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vastctl/vastctl/internal/names"
	"github.com/vastctl/vastctl/internal/registry"
)

var rmCmd = &cobra.Command{
	Use:     "rm <name>",
	Aliases: []string{"remove"},
	Short:   "Remove an instance from the registry only",
	Long: `Remove an instance record from the local registry without touching the
marketplace. Useful for cleaning up records of machines destroyed through
the web console.

A record the registry believes is running is kept unless --force is given,
since dropping it would hide a machine that may still be billing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, closer, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closer()

		name := names.Normalize(args[0])

		inst, err := store.Get(name)
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				return fmt.Errorf("no instance named %q (run: vastctl list)", name)
			}
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		if inst.IsRunning() && !force {
			return fmt.Errorf("instance %q is marked running; use 'vastctl kill %s' to destroy it, or --force to drop the record anyway", name, name)
		}

		if err := store.Remove(name); err != nil {
			return fmt.Errorf("remove record: %w", err)
		}

		fmt.Printf("Removed %s from the registry (the marketplace was not touched)\n", name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)

	rmCmd.Flags().BoolP("force", "f", false, "remove even if the record says running")
}
