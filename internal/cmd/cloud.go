package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vastctl/vastctl/internal/cloud"
	"github.com/vastctl/vastctl/internal/instance"
	"github.com/vastctl/vastctl/internal/prompt"
)

var loginCmd = &cobra.Command{
	Use:   "login [token]",
	Short: "Log in to the cloud service",
	Long: `Store a cloud access token and verify it. The token is kept in the
system keyring when available, falling back to a user-only file.

Get a token from your team's vastctl cloud dashboard.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := requireConfig(ctx)
		if err != nil {
			return err
		}

		tokens := cloud.NewTokenStore(cfg.Cloud.TokenFile)

		if tokens.LoggedIn() {
			ok, err := prompt.Confirm("Already logged in", "Replace the stored token?")
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}

		token := ""
		if len(args) > 0 {
			token = args[0]
		} else {
			token, err = prompt.Secret("Cloud access token")
			if err != nil {
				return err
			}
		}
		token = strings.TrimSpace(token)

		if err := tokens.Save(token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}

		client := cloud.NewClient(cloud.ClientOptions{
			BaseURL: cfg.Cloud.BaseURL,
			Enabled: true,
			Tokens:  tokens,
		})

		user, err := client.VerifyToken(ctx)
		if err != nil {
			// An unverifiable token is worse than no token.
			if delErr := tokens.Delete(); delErr != nil {
				return fmt.Errorf("token rejected (%v) and could not be removed: %w", err, delErr)
			}
			return fmt.Errorf("token rejected: %w", err)
		}

		fmt.Printf("Logged in as %s\n", user.Email)
		if !cfg.Cloud.Enabled {
			fmt.Println("Note: cloud sync is off; enable it with: vastctl config cloud.enabled true")
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored cloud token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig(cmd.Context())
		if err != nil {
			return err
		}

		tokens := cloud.NewTokenStore(cfg.Cloud.TokenFile)
		if !tokens.LoggedIn() {
			fmt.Println("Not logged in")
			return nil
		}

		if err := tokens.Delete(); err != nil {
			return fmt.Errorf("remove token: %w", err)
		}

		fmt.Println("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in cloud identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := requireConfig(ctx)
		if err != nil {
			return err
		}

		tokens := cloud.NewTokenStore(cfg.Cloud.TokenFile)
		source, ok := tokens.Source()
		if !ok {
			return errors.New("not logged in (run: vastctl login)")
		}

		client := cloud.NewClient(cloud.ClientOptions{
			BaseURL: cfg.Cloud.BaseURL,
			Enabled: true,
			Tokens:  tokens,
		})

		user, err := client.VerifyToken(ctx)
		if err != nil {
			return fmt.Errorf("verify token: %w", err)
		}

		fmt.Printf("Email:  %s\n", user.Email)
		if user.Name != "" {
			fmt.Printf("Name:   %s\n", user.Name)
		}
		if user.Organization != "" {
			fmt.Printf("Org:    %s\n", user.Organization)
		}
		fmt.Printf("Token:  from %s\n", source)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push an instance snapshot to the cloud service",
	Long: `Push a snapshot of all tracked instances to the cloud service now.
Snapshots carry names, hardware, status, and cost figures; SSH endpoints
and Jupyter tokens are never included.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, store, closer, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closer()

		loader := LoaderFromContext(ctx)
		if loader == nil {
			return errors.New("configuration not loaded")
		}

		client := cloudClient(cfg)
		if !client.Enabled() {
			return errors.New("cloud sync is disabled (run: vastctl config cloud.enabled true)")
		}
		if !client.LoggedIn() {
			return errors.New("not logged in (run: vastctl login)")
		}

		instances, err := store.List(instance.ListFilter{})
		if err != nil {
			return fmt.Errorf("list instances: %w", err)
		}

		installationID, err := cloud.InstallationID(loader.ConfigDir())
		if err != nil {
			return fmt.Errorf("installation id: %w", err)
		}

		snap := cloud.BuildSnapshot(installationID, instances)
		if err := client.PushSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("push snapshot: %w", err)
		}

		fmt.Printf("Synced %d instances\n", len(instances))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(syncCmd)
}
