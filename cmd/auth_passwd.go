package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"scrdeskctl/internal/guard"
)

var (
	passwdResetEmail   string
	passwdConfirmToken string
)

// authPasswdCmd represents the auth passwd command.
var authPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change or reset the account password",
	Long: `Change the current account's password, or run the email reset flow.

Changing the password revokes all refresh tokens; you will be asked to sign
in again afterwards.

Examples:
  scrdeskctl auth passwd                             # Change password
  scrdeskctl auth passwd --request-reset me@x.com    # Send a reset email
  scrdeskctl auth passwd --confirm-reset <token>     # Complete a reset`,
	RunE: runAuthPasswd,
}

func init() {
	authPasswdCmd.Flags().StringVar(&passwdResetEmail, "request-reset", "", "send a password reset email to this address")
	authPasswdCmd.Flags().StringVar(&passwdConfirmToken, "confirm-reset", "", "complete a reset with the emailed token")
	authCmd.AddCommand(authPasswdCmd)
}

func runAuthPasswd(cmd *cobra.Command, args []string) error {
	if passwdResetEmail != "" {
		return runPasswdRequestReset(cmd)
	}
	if passwdConfirmToken != "" {
		return runPasswdConfirmReset(cmd)
	}
	return runPasswdChange(cmd)
}

func runPasswdChange(cmd *cobra.Command) error {
	a, state, err := initializedApp(cmd.Context())
	if err != nil {
		return err
	}
	if err := guard.Require(state, ""); err != nil {
		return &AuthRequiredError{}
	}

	oldPassword, err := promptPassword("Current password: ")
	if err != nil {
		return err
	}
	newPassword, err := promptPassword("New password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm new password: ")
	if err != nil {
		return err
	}
	if newPassword != confirm {
		return fmt.Errorf("passwords do not match")
	}

	if err := a.api.ChangePassword(cmd.Context(), oldPassword, newPassword); err != nil {
		return err
	}

	fmt.Printf("%s Password changed. All sessions were revoked; sign in again.\n",
		text.FgGreen.Sprint("✓"))
	return nil
}

func runPasswdRequestReset(cmd *cobra.Command) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	if err := a.api.RequestPasswordReset(cmd.Context(), passwdResetEmail); err != nil {
		return err
	}
	fmt.Printf("If an account exists for %s, a reset email is on its way.\n", passwdResetEmail)
	return nil
}

func runPasswdConfirmReset(cmd *cobra.Command) error {
	a, err := buildApp()
	if err != nil {
		return err
	}

	newPassword, err := promptPassword("New password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm new password: ")
	if err != nil {
		return err
	}
	if newPassword != confirm {
		return fmt.Errorf("passwords do not match")
	}

	if err := a.api.ConfirmPasswordReset(cmd.Context(), passwdConfirmToken, newPassword); err != nil {
		return err
	}

	fmt.Printf("%s Password reset. Sign in with your new password.\n", text.FgGreen.Sprint("✓"))
	return nil
}
