package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vastctl/vastctl/internal/provision"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage provisioning profiles",
	Long: `Provisioning profiles are named bundles of image and package choices
used with 'vastctl start --profile'. Profiles come from three places:
built-in defaults, the [profiles] section of the config file, and the
cloud cache populated by 'vastctl profiles pull'. Local profiles shadow
cloud ones with the same name.`,
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig(cmd.Context())
		if err != nil {
			return err
		}

		store := provision.NewProfileStore(cfg.Profiles, cfg.Cloud.ProfileCachePath)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tIMAGE\tDESCRIPTION")
		for _, name := range store.List() {
			profile, err := store.Get(name)
			if err != nil {
				continue
			}
			img := profile.Image
			if img == "" {
				img = "(default)"
			}
			marker := ""
			if name == cfg.DefaultProfile {
				marker = " *"
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\n", name, marker, img, profile.Description)
		}
		return w.Flush()
	},
}

var profilesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a profile's full configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig(cmd.Context())
		if err != nil {
			return err
		}

		store := provision.NewProfileStore(cfg.Profiles, cfg.Cloud.ProfileCachePath)
		profile, err := store.Get(args[0])
		if err != nil {
			if errors.Is(err, provision.ErrProfileNotFound) {
				return fmt.Errorf("no profile named %q (run: vastctl profiles list)", args[0])
			}
			return err
		}

		out, err := yaml.Marshal(profile)
		if err != nil {
			return fmt.Errorf("render profile: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

var profilesPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download profiles from the cloud service",
	Long: `Fetch the team's shared profiles from the cloud service and cache them
locally. Requires 'vastctl login' and cloud.enabled in the config.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig(cmd.Context())
		if err != nil {
			return err
		}

		client := cloudClient(cfg)
		if !client.Enabled() {
			return errors.New("cloud sync is disabled (run: vastctl config cloud.enabled true)")
		}

		profiles, err := client.FetchProfiles(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetch profiles: %w", err)
		}

		store := provision.NewProfileStore(cfg.Profiles, cfg.Cloud.ProfileCachePath)
		if err := store.SaveCache(profiles); err != nil {
			return fmt.Errorf("cache profiles: %w", err)
		}

		fmt.Printf("Pulled %d profiles\n", len(profiles))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesShowCmd)
	profilesCmd.AddCommand(profilesPullCmd)
}
