package cmd

import "fmt"

// AuthRequiredError indicates a command needs a session that does not exist.
type AuthRequiredError struct {
	// Hint names the command that establishes the session.
	Hint string
}

func (e *AuthRequiredError) Error() string {
	hint := e.Hint
	if hint == "" {
		hint = "scrdeskctl auth login"
	}
	return fmt.Sprintf(`Not logged in.

To authenticate, run:
  %s`, hint)
}

// Is allows errors.Is() to match any AuthRequiredError.
func (e *AuthRequiredError) Is(target error) bool {
	_, ok := target.(*AuthRequiredError)
	return ok
}

// AuthFailedError indicates a login or OAuth flow failed.
type AuthFailedError struct {
	Reason error
}

func (e *AuthFailedError) Error() string {
	return fmt.Sprintf("Authentication failed: %v", e.Reason)
}

// Unwrap returns the underlying error.
func (e *AuthFailedError) Unwrap() error {
	return e.Reason
}

// Is allows errors.Is() to match any AuthFailedError.
func (e *AuthFailedError) Is(target error) bool {
	_, ok := target.(*AuthFailedError)
	return ok
}
