// File: cmd/auth.go
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot-cli/internal/authgate"
	"github.com/xkilldash9x/formpilot-cli/internal/browser"
	"github.com/xkilldash9x/formpilot-cli/internal/config"
	"github.com/xkilldash9x/formpilot-cli/internal/observability"
)

// newAuthCmd groups the session cache management commands.
func newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the cached login session",
	}
	authCmd.AddCommand(newAuthLoginCmd())
	authCmd.AddCommand(newAuthStatusCmd())
	authCmd.AddCommand(newAuthLogoutCmd())
	return authCmd
}

func newGate(cfg config.Interface, logger *zap.Logger) (*authgate.Gate, error) {
	cache, err := authgate.NewSessionCache(cfg.Auth().CacheDir, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open session cache: %w", err)
	}
	return authgate.New(cache, cfg.Auth(), logger), nil
}

func newAuthLoginCmd() *cobra.Command {
	loginCmd := &cobra.Command{
		Use:   "login <url>",
		Short: "Opens the login page and caches the session once you sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			// Manual login needs a visible browser unless explicitly overridden.
			if !cmd.Flags().Changed("headless") {
				cfg.SetBrowserHeadless(false)
			} else {
				headless, _ := cmd.Flags().GetBool("headless")
				cfg.SetBrowserHeadless(headless)
			}

			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			if username != "" || password != "" {
				cfg.SetAuthCredentials(username, password)
			}

			gate, err := newGate(cfg, logger)
			if err != nil {
				return err
			}

			driver, err := browser.NewDriver(ctx, cfg.Browser(), cfg.Network(), logger)
			if err != nil {
				return fmt.Errorf("failed to launch browser: %w", err)
			}
			defer driver.Close(context.Background())

			target := normalizeTargets(args)[0]
			fmt.Printf("Waiting for login at %s ...\n", target)
			if err := gate.EnsureAuthenticated(ctx, driver, target); err != nil {
				return err
			}
			fmt.Println("Login detected; session cached.")
			return nil
		},
	}
	loginCmd.Flags().Bool("headless", false, "Run the login browser headless.")
	loginCmd.Flags().String("username", "", "Username to submit on the login form; omit for a fully manual login.")
	loginCmd.Flags().String("password", "", "Password to submit on the login form; omit for a fully manual login.")
	return loginCmd
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Prints the cached session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			gate, err := newGate(cfg, observability.GetLogger())
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(gate.Status(), "", "  ")
			if err != nil {
				return fmt.Errorf("encoding session status: %w", err)
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clears the cached session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			gate, err := newGate(cfg, observability.GetLogger())
			if err != nil {
				return err
			}
			if err := gate.Logout(); err != nil {
				return err
			}
			fmt.Println("Cached session cleared.")
			return nil
		},
	}
}
