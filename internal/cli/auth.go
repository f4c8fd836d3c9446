package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/inbox/internal/credential"
	"github.com/nhle/inbox/internal/identity"
	"github.com/nhle/inbox/internal/model"
	"github.com/nhle/inbox/internal/ui/login"
)

func newLoginCommand(rt *runtime) *cobra.Command {
	var cf clientFlags

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API token in the system keyring",
		Long: `login saves the API token in the system keyring and the server URL in
the config file. Without --token an interactive form asks for both.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL := cf.server
			if baseURL == "" {
				baseURL = rt.cfg.Server.BaseURL
			}
			token := strings.TrimSpace(cf.token)

			if token == "" {
				form := login.New(baseURL, 80, 24)
				if err := form.Form().Run(); err != nil {
					return fmt.Errorf("login form: %w", err)
				}
				res := form.Result()
				baseURL, token = res.BaseURL, res.Token
			}

			if err := login.ValidateURL(baseURL); err != nil {
				return err
			}
			if err := login.ValidateToken(token); err != nil {
				return err
			}
			userID, err := identity.UserIDFromToken(token)
			if err != nil {
				return err
			}

			if err := rt.opts.Keyring.Set(credential.TokenKey(rt.cfg.Server.Profile), token); err != nil {
				return err
			}
			rt.cfg.Server.BaseURL = strings.TrimRight(baseURL, "/")
			if err := model.SaveConfig(rt.cfgPath, rt.cfg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s at %s\n", userID, rt.cfg.Server.BaseURL)
			return nil
		},
	}
	cf.register(cmd)
	return cmd
}

func newLogoutCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.opts.Keyring.Delete(credential.TokenKey(rt.cfg.Server.Profile)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newTokenCommand(rt *runtime) *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint an API token for the reference server",
		Example: `  inbox token alice --ttl 720h
  inbox login --token "$(inbox token alice)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = rt.cfg.Serve.JWTSecret
			}
			if secret == "" {
				return errors.New("no signing secret: set serve.jwt_secret or pass --secret")
			}

			token, err := identity.IssueToken(secret, args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default serve.jwt_secret)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime; zero never expires")
	return cmd
}
