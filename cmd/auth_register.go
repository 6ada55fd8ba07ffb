package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"scrdeskctl/internal/client"
	"scrdeskctl/pkg/auth"
)

var (
	registerEmail    string
	registerFullName string
	registerRole     string
)

// authRegisterCmd represents the auth register command.
var authRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new ScrDesk account",
	Long: `Create a new account and sign in with it.

Examples:
  scrdeskctl auth register
  scrdeskctl auth register --email me@example.com --full-name "Jane Admin"`,
	RunE: runAuthRegister,
}

func init() {
	authRegisterCmd.Flags().StringVar(&registerEmail, "email", "", "account email")
	authRegisterCmd.Flags().StringVar(&registerFullName, "full-name", "", "display name")
	authRegisterCmd.Flags().StringVar(&registerRole, "role", string(auth.RoleUser), "account role")
	authCmd.AddCommand(authRegisterCmd)
}

func runAuthRegister(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}

	email := registerEmail
	if email == "" {
		if email, err = promptLine("Email: "); err != nil {
			return err
		}
	}
	fullName := registerFullName
	if fullName == "" {
		if fullName, err = promptLine("Full name: "); err != nil {
			return err
		}
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	role := auth.Role(registerRole)
	if !role.Known() {
		return fmt.Errorf("unknown role %q", registerRole)
	}

	ctx := cmd.Context()
	if err := a.api.Register(ctx, email, password, fullName, role); err != nil {
		if client.IsKind(err, client.KindRegistrationConflict) {
			return fmt.Errorf("an account with email %s already exists", email)
		}
		return err
	}

	fmt.Printf("%s Account created for %s\n", text.FgGreen.Sprint("✓"), email)

	// Registration does not return a session; sign in right away.
	user, err := a.broadcaster.Login(ctx, client.Credentials{Email: email, Password: password})
	if err != nil {
		return &AuthFailedError{Reason: err}
	}
	printSignedIn(user.Email, user.Role)
	return nil
}
