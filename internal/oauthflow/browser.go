package oauthflow

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

// browserCommand builds the platform command that opens url in the default
// browser.
func browserCommand(goos, url string) (*exec.Cmd, error) {
	switch goos {
	case "linux":
		return exec.Command("xdg-open", url), nil
	case "darwin":
		return exec.Command("open", url), nil
	case "windows":
		return exec.Command("cmd", "/c", "start", url), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

// OpenBrowser opens the URL in the system's default browser. The command is
// started and not waited on.
func OpenBrowser(url string) error {
	cmd, err := browserCommand(runtime.GOOS, url)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// LaunchOrPrint opens the URL in a browser, falling back to printing it on
// out for manual opening. Headless environments land on the fallback.
func LaunchOrPrint(url string, out io.Writer) {
	if err := OpenBrowser(url); err != nil {
		printManualURL(out, err, url)
	}
}

func printManualURL(out io.Writer, cause error, url string) {
	fmt.Fprintf(out, "Could not open a browser (%v).\nOpen this URL manually:\n\n  %s\n\n", cause, url)
}
