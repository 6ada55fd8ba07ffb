package cmd

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"scrdeskctl/internal/guard"
)

// authWhoamiCmd represents the auth whoami command.
var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current authenticated identity",
	RunE:  runAuthWhoami,
}

func init() {
	authCmd.AddCommand(authWhoamiCmd)
}

func runAuthWhoami(cmd *cobra.Command, args []string) error {
	a, state, err := initializedApp(cmd.Context())
	if err != nil {
		return err
	}

	if err := guard.Require(state, ""); err != nil {
		return &AuthRequiredError{}
	}

	user := state.User
	fmt.Printf("ID:         %s\n", user.ID)
	fmt.Printf("Email:      %s\n", user.Email)
	if user.FullName != "" {
		fmt.Printf("Name:       %s\n", user.FullName)
	}
	fmt.Printf("Role:       %s\n", user.Role)
	if user.TenantID != "" {
		fmt.Printf("Tenant:     %s\n", user.TenantID)
	}
	fmt.Printf("2FA:        %v\n", user.TwoFactorEnabled)
	if user.LastLoginAt != nil {
		fmt.Printf("Last login: %s\n", user.LastLoginAt.Local().Format(time.RFC1123))
	}

	printTokenClaims(a)
	return nil
}

// printTokenClaims shows the access token's validity window. The claims are
// parsed without signature verification: the backend already authenticated
// us, this is purely informational.
func printTokenClaims(a *app) {
	pair, ok, err := a.store.Get()
	if err != nil || !ok {
		return
	}

	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(pair.AccessToken, jwt.MapClaims{})
	if err != nil {
		return
	}

	if exp, err := token.Claims.GetExpirationTime(); err == nil && exp != nil {
		fmt.Printf("Token exp:  %s\n", exp.Local().Format(time.RFC1123))
	}
	if iat, err := token.Claims.GetIssuedAt(); err == nil && iat != nil {
		fmt.Printf("Token iat:  %s\n", iat.Local().Format(time.RFC1123))
	}
}
