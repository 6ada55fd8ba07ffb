package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// authLogoutCmd represents the auth logout command.
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the stored session",
	Long: `Sign out of the ScrDesk console.

The stored session is removed even when the backend cannot be reached, so a
logout always leaves you logged out locally.`,
	RunE: runAuthLogout,
}

func init() {
	authCmd.AddCommand(authLogoutCmd)
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}

	if _, ok, _ := a.store.Get(); !ok {
		fmt.Println("Not logged in.")
		return nil
	}

	if err := a.broadcaster.Logout(cmd.Context()); err != nil {
		fmt.Printf("%s Backend logout failed (%v); local session cleared anyway.\n",
			text.FgYellow.Sprint("!"), err)
		return nil
	}

	fmt.Printf("%s Signed out.\n", text.FgGreen.Sprint("✓"))
	return nil
}
