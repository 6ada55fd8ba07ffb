package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"scrdeskctl/internal/authstate"
)

var statusWatch bool

// authStatusCmd represents the auth status command.
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session status",
	Long: `Show whether a session exists and when the access token expires.

The stored token is verified against the backend, so a session revoked
server-side shows up as signed out here. With --watch, the command keeps
running and reports session changes made by other invocations.`,
	RunE: runAuthStatus,
}

func init() {
	authStatusCmd.Flags().BoolVar(&statusWatch, "watch", false, "keep running and report session changes")
	authCmd.AddCommand(authStatusCmd)
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	a, state, err := initializedApp(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println("ScrDesk Console")
	fmt.Printf("  Endpoint:  %s\n", a.cfg.ServerURL)

	switch state.Status {
	case authstate.StatusAuthenticated:
		fmt.Printf("  Status:    %s\n", text.FgGreen.Sprint("Authenticated"))
		fmt.Printf("  User:      %s (%s)\n", state.User.Email, state.User.Role)
		printTokenExpiry(a)
	case authstate.StatusError:
		fmt.Printf("  Status:    %s\n", text.FgYellow.Sprint("Unverified"))
		fmt.Printf("             Backend unreachable: %v\n", state.Err)
		printTokenExpiry(a)
	default:
		fmt.Printf("  Status:    %s\n", text.FgRed.Sprint("Not logged in"))
		fmt.Println("             Run: scrdeskctl auth login")
	}

	if statusWatch {
		return watchStatus(cmd.Context(), a)
	}
	return nil
}

// watchStatus follows the session file and prints every state transition
// until the command is interrupted.
func watchStatus(ctx context.Context, a *app) error {
	watcher, err := authstate.NewSessionWatcher(a.broadcaster, a.store.SessionPath())
	if err != nil {
		return err
	}
	go watcher.Run(ctx)

	updates, cancel := a.broadcaster.Subscribe()
	defer cancel()

	fmt.Println("\nWatching for session changes (Ctrl-C to stop)...")
	for {
		select {
		case <-ctx.Done():
			return nil
		case state, ok := <-updates:
			if !ok {
				return nil
			}
			fmt.Printf("  %s  %s\n", time.Now().Format("15:04:05"), state)
		}
	}
}

func printTokenExpiry(a *app) {
	pair, ok, err := a.store.Get()
	if err != nil || !ok {
		return
	}
	expiry := pair.Expiry()
	if expiry.IsZero() {
		return
	}
	remaining := time.Until(expiry).Round(time.Second)
	if remaining > 0 {
		fmt.Printf("  Token:     expires in %s\n", remaining)
	} else {
		fmt.Printf("  Token:     %s\n", text.FgYellow.Sprint("expired"))
	}
}
