package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"scrdeskctl/internal/guard"
)

// authTwoFactorCmd groups the two-factor authentication subcommands.
var authTwoFactorCmd = &cobra.Command{
	Use:   "2fa",
	Short: "Manage two-factor authentication",
	Long: `Enroll in, verify, or disable two-factor authentication.

Enrollment returns a TOTP secret and backup codes. They are shown once and
never stored locally; save the backup codes somewhere safe.`,
}

var authTwoFactorEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Begin two-factor enrollment",
	RunE:  runTwoFactorEnable,
}

var authTwoFactorDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Turn off two-factor authentication",
	RunE:  runTwoFactorDisable,
}

func init() {
	authTwoFactorCmd.AddCommand(authTwoFactorEnableCmd)
	authTwoFactorCmd.AddCommand(authTwoFactorDisableCmd)
	authCmd.AddCommand(authTwoFactorCmd)
}

func runTwoFactorEnable(cmd *cobra.Command, args []string) error {
	a, state, err := initializedApp(cmd.Context())
	if err != nil {
		return err
	}
	if err := guard.Require(state, ""); err != nil {
		return &AuthRequiredError{}
	}

	enrollment, err := a.api.Enable2FA(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println("Scan this secret into your authenticator app:")
	fmt.Printf("\n  Secret: %s\n", enrollment.Secret)
	if enrollment.QRCode != "" {
		fmt.Printf("  QR:     %s\n", enrollment.QRCode)
	}
	if len(enrollment.BackupCodes) > 0 {
		fmt.Println("\nBackup codes (shown once, store them safely):")
		for _, code := range enrollment.BackupCodes {
			fmt.Printf("  %s\n", code)
		}
	}

	code, err := promptLine("\nEnter a code from your authenticator to confirm: ")
	if err != nil {
		return err
	}
	if err := a.api.Verify2FA(cmd.Context(), code); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	fmt.Printf("\n%s Two-factor authentication enabled.\n", text.FgGreen.Sprint("✓"))
	return nil
}

func runTwoFactorDisable(cmd *cobra.Command, args []string) error {
	a, state, err := initializedApp(cmd.Context())
	if err != nil {
		return err
	}
	if err := guard.Require(state, ""); err != nil {
		return &AuthRequiredError{}
	}

	code, err := promptLine("Enter a code from your authenticator: ")
	if err != nil {
		return err
	}
	if err := a.api.Disable2FA(cmd.Context(), code); err != nil {
		return err
	}

	fmt.Printf("%s Two-factor authentication disabled.\n", text.FgGreen.Sprint("✓"))
	return nil
}
