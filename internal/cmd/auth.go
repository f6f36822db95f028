package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/zfogg/nearby/cli/pkg/api"
	"github.com/zfogg/nearby/cli/pkg/formatter"
	"github.com/zfogg/nearby/cli/pkg/output"
	"github.com/zfogg/nearby/cli/pkg/prompter"
	"github.com/zfogg/nearby/cli/pkg/service"
)

var (
	loginEmail    string
	loginProvider string
	loginToken    string
	loginNonce    string

	registerEmail       string
	registerUsername    string
	registerDisplayName string
)

var identityProviders = []string{"apple", "google"}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  "Manage your Nearby session",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to Nearby",
	Long: `Log in with email and password, or with an identity token from a
sign-in provider (--provider apple|google --token <id-token> --nonce <nonce>).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			svc := service.NewAuthService(a.api, a.creds)

			if creds, _ := svc.Status(); creds != nil && creds.IsValid() {
				formatter.PrintWarning("Already logged in as %s", creds.Username)
				confirm, err := prompter.PromptConfirm("Continue with new login?")
				if err != nil || !confirm {
					return err
				}
			}

			if loginProvider != "" || loginToken != "" {
				return identityLogin(ctx, svc)
			}

			email := loginEmail
			if email == "" {
				var err error
				if email, err = prompter.PromptString("Email: "); err != nil {
					return err
				}
			}
			password, err := prompter.PromptPassword("Password: ")
			if err != nil {
				return err
			}

			creds, err := svc.Login(ctx, email, password)
			if err != nil {
				return err
			}
			formatter.PrintSuccess("✓ Logged in as %s", creds.Username)
			return nil
		})
	},
}

func identityLogin(ctx context.Context, svc *service.AuthService) error {
	provider := loginProvider
	if provider == "" {
		idx, err := prompter.PromptSelect("Sign in with:", identityProviders)
		if err != nil {
			return err
		}
		provider = identityProviders[idx]
	}
	token := loginToken
	if token == "" {
		var err error
		if token, err = prompter.PromptString("Identity token: "); err != nil {
			return err
		}
	}

	creds, err := svc.SignInWithIdentity(ctx, provider, token, loginNonce)
	if err != nil {
		return err
	}
	formatter.PrintSuccess("✓ Signed in with %s as %s", creds.Provider, creds.Username)
	return nil
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new Nearby account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			req := api.RegisterRequest{Email: registerEmail, Username: registerUsername, DisplayName: registerDisplayName}
			var err error
			if req.Email == "" {
				if req.Email, err = prompter.PromptString("Email: "); err != nil {
					return err
				}
			}
			if req.Username == "" {
				if req.Username, err = prompter.PromptString("Username: "); err != nil {
					return err
				}
			}
			if req.Password, err = prompter.PromptPassword("Password: "); err != nil {
				return err
			}

			creds, err := service.NewAuthService(a.api, a.creds).Register(ctx, req)
			if err != nil {
				return err
			}
			formatter.PrintSuccess("✓ Welcome to Nearby, %s", creds.Username)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out of Nearby",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			if err := service.NewAuthService(a.api, a.creds).Logout(); err != nil {
				return err
			}
			formatter.PrintSuccess("✓ Logged out")
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			creds, err := service.NewAuthService(a.api, a.creds).Status()
			if err != nil {
				return err
			}
			if creds == nil {
				formatter.PrintInfo("Not logged in")
				return nil
			}
			state := "valid"
			if creds.IsExpired() {
				state = "expired"
			}
			return output.PrintRecord("Session", map[string]interface{}{
				"username": creds.Username,
				"email":    creds.Email,
				"provider": creds.Provider,
				"expires":  creds.ExpiresAt.Format(time.RFC3339),
				"status":   state,
			})
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Fetch the current user from the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			me, err := a.api.Me(ctx)
			if err != nil {
				return err
			}
			return output.PrintRecord("", map[string]interface{}{
				"id":        me.ID,
				"username":  me.Username,
				"name":      me.Name(),
				"followers": me.FollowerCount,
				"following": me.FollowingCount,
				"bio":       me.Bio,
			})
		})
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginProvider, "provider", "", "Identity provider: apple or google")
	loginCmd.Flags().StringVar(&loginToken, "token", "", "Identity token issued by the provider")
	loginCmd.Flags().StringVar(&loginNonce, "nonce", "", "Nonce the identity token was issued for")

	registerCmd.Flags().StringVar(&registerEmail, "email", "", "Account email")
	registerCmd.Flags().StringVar(&registerUsername, "username", "", "Username, 3-30 letters or digits")
	registerCmd.Flags().StringVar(&registerDisplayName, "display-name", "", "Name shown to others")

	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(registerCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
	authCmd.AddCommand(whoamiCmd)
}
