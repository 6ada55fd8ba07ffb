package cmd

import (
	"github.com/spf13/cobra"
)

// authCmd represents the auth command group.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication for scrdeskctl",
	Long: `Manage authentication for the ScrDesk console.

The auth command group provides subcommands to sign in with a password or an
OAuth provider, register an account, inspect the current session, and manage
two-factor authentication.

Examples:
  scrdeskctl auth login                      # Password login
  scrdeskctl auth login --provider google    # OAuth login via Google
  scrdeskctl auth status                     # Show session status
  scrdeskctl auth whoami                     # Show current identity
  scrdeskctl auth logout                     # Clear the session
  scrdeskctl auth refresh                    # Renew the access token
  scrdeskctl auth 2fa enable                 # Enroll in two-factor auth`,
}

func init() {
	rootCmd.AddCommand(authCmd)
}
