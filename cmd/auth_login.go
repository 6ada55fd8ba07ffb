package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"scrdeskctl/internal/client"
	"scrdeskctl/internal/oauthflow"
	"scrdeskctl/pkg/auth"
)

// twoFactorAttempts bounds the interactive 2FA re-prompt loop.
const twoFactorAttempts = 3

var (
	loginEmail    string
	loginProvider string
	loginNoOpen   bool
)

// authLoginCmd represents the auth login command.
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the ScrDesk console",
	Long: `Sign in with email and password, or with an OAuth provider.

Password login prompts for credentials and, if the account has two-factor
authentication enabled, for a TOTP code. OAuth login opens the provider's
sign-in page in your browser and waits for the redirect on a local port.

Examples:
  scrdeskctl auth login                         # Password login
  scrdeskctl auth login --email me@example.com  # Skip the email prompt
  scrdeskctl auth login --provider google       # OAuth via Google
  scrdeskctl auth login --provider apple        # OAuth via Apple`,
	RunE: runAuthLogin,
}

func init() {
	authLoginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	authLoginCmd.Flags().StringVar(&loginProvider, "provider", "", "OAuth provider: google or apple")
	authLoginCmd.Flags().BoolVar(&loginNoOpen, "no-browser", false, "print the authorization URL instead of opening a browser")
	authCmd.AddCommand(authLoginCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}

	if loginProvider != "" {
		return runOAuthLogin(cmd.Context(), a, auth.Provider(loginProvider))
	}
	return runPasswordLogin(cmd.Context(), a)
}

func runPasswordLogin(ctx context.Context, a *app) error {
	email := loginEmail
	if email == "" {
		var err error
		email, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}
	if email == "" {
		return fmt.Errorf("email must not be empty")
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	creds := client.Credentials{Email: email, Password: password}

	// A two-factor challenge keeps the entered credentials and only asks for
	// the code.
	for attempt := 0; ; attempt++ {
		user, err := a.broadcaster.Login(ctx, creds)
		if err == nil {
			printSignedIn(user.Email, user.Role)
			return nil
		}

		if client.IsKind(err, client.KindTwoFactorRequired) && attempt < twoFactorAttempts {
			if creds.TwoFactorCode != "" {
				fmt.Println(text.FgYellow.Sprint("Invalid 2FA code, try again."))
			}
			code, perr := promptLine("2FA code: ")
			if perr != nil {
				return perr
			}
			creds.TwoFactorCode = code
			continue
		}

		if client.IsKind(err, client.KindInvalidCredentials) ||
			client.IsKind(err, client.KindTwoFactorRequired) ||
			client.IsKind(err, client.KindRateLimited) {
			return &AuthFailedError{Reason: err}
		}
		return err
	}
}

func runOAuthLogin(ctx context.Context, a *app, provider auth.Provider) error {
	if !provider.Valid() {
		return fmt.Errorf("unknown provider %q (expected google or apple)", provider)
	}

	flowCtx, cancel := context.WithTimeout(ctx, oauthflow.FlowTimeout)
	defer cancel()

	server := oauthflow.NewCallbackServer(a.cfg.CallbackPort)
	if _, err := server.Start(flowCtx); err != nil {
		return err
	}
	defer server.Stop()

	authURL, err := a.broadcaster.BeginOAuth(flowCtx, provider)
	if err != nil {
		return &AuthFailedError{Reason: err}
	}

	if loginNoOpen {
		fmt.Printf("Open this URL in your browser to sign in:\n\n  %s\n\n", authURL)
	} else {
		oauthflow.LaunchOrPrint(authURL, os.Stdout)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = fmt.Sprintf(" Waiting for %s sign-in to complete...", provider)
	s.Start()

	cb, err := server.Wait(flowCtx)
	s.Stop()
	if err != nil {
		return &AuthFailedError{Reason: fmt.Errorf("no callback received: %w", err)}
	}
	if cb.Denied() {
		return &AuthFailedError{Reason: fmt.Errorf("%w: %s (%s)",
			oauthflow.ErrProviderDenied, cb.ErrorCode, cb.ErrorDescription)}
	}

	user, err := a.broadcaster.CompleteOAuth(flowCtx, cb.Code, cb.State)
	if err != nil {
		return &AuthFailedError{Reason: err}
	}

	printSignedIn(user.Email, user.Role)
	return nil
}

func printSignedIn(email string, role auth.Role) {
	fmt.Printf("%s Signed in as %s (%s)\n", text.FgGreen.Sprint("✓"), email, role)
}
