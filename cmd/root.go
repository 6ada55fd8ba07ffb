package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"scrdeskctl/internal/client"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates a login or OAuth flow failed.
	ExitCodeAuthFailed = 3
)

// rootCmd represents the base command for the scrdeskctl application.
var rootCmd = &cobra.Command{
	Use:   "scrdeskctl",
	Short: "Manage your ScrDesk console session",
	Long: `scrdeskctl is the command-line client for the ScrDesk remote-desktop
management console. It handles password and OAuth sign-in, two-factor
challenges, and keeps the session available to subsequent invocations.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// handled by the application.
	SilenceUsage: true,
}

var (
	configPathFlag string
	logLevelFlag   string
)

// SetVersion sets the version for the root command. Called from main to
// inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "scrdeskctl version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the exit code based on the error type, so scripts
// can tell "not logged in" apart from "login failed".
func getExitCode(err error) int {
	var authRequired *AuthRequiredError
	if errors.As(err, &authRequired) {
		return ExitCodeAuthRequired
	}
	if client.IsUnauthenticated(err) {
		return ExitCodeAuthRequired
	}

	var authFailed *AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config-path", "",
		"config directory (default is $HOME/.config/scrdeskctl)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(newVersionCmd())
}
