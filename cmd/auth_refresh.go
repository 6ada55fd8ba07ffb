package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"scrdeskctl/internal/client"
)

// authRefreshCmd represents the auth refresh command.
var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Renew the access token",
	Long: `Trade the stored refresh token for a fresh access token.

Useful when the access token has expired but the session itself is still
valid.`,
	RunE: runAuthRefresh,
}

func init() {
	authCmd.AddCommand(authRefreshCmd)
}

func runAuthRefresh(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}

	if err := a.broadcaster.Refresh(cmd.Context()); err != nil {
		if client.IsUnauthenticated(err) {
			return &AuthRequiredError{}
		}
		return err
	}

	fmt.Printf("%s Access token renewed.\n", text.FgGreen.Sprint("✓"))
	printTokenExpiry(a)
	return nil
}
