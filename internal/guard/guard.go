// Package guard gates access to protected operations based on the current
// authentication state. Decisions are pure: no I/O, no state of their own.
package guard

import (
	"fmt"

	"scrdeskctl/internal/authstate"
	"scrdeskctl/pkg/auth"
)

// Decision is the outcome of an access check.
type Decision int

const (
	// DecisionWait means the startup identity check has not resolved yet;
	// callers must not render or proceed.
	DecisionWait Decision = iota

	// DecisionSignIn means no usable session exists and the user must be
	// sent to the sign-in entry point.
	DecisionSignIn

	// DecisionDenied means the user is authenticated but not authorized.
	DecisionDenied

	// DecisionAllow grants access.
	DecisionAllow
)

func (d Decision) String() string {
	switch d {
	case DecisionWait:
		return "wait"
	case DecisionSignIn:
		return "sign_in"
	case DecisionDenied:
		return "denied"
	case DecisionAllow:
		return "allow"
	default:
		return "unknown"
	}
}

// Check decides whether the holder of state may access an operation that
// requires the given role. An empty required role admits any authenticated
// user.
func Check(state authstate.State, required auth.Role) Decision {
	switch state.Status {
	case authstate.StatusLoading, authstate.StatusAuthenticating, authstate.StatusOAuthPending:
		return DecisionWait
	case authstate.StatusAnonymous, authstate.StatusError:
		return DecisionSignIn
	case authstate.StatusAuthenticated:
		// fall through to the role check below
	default:
		return DecisionSignIn
	}

	user := state.User
	if user == nil || !user.IsActive {
		return DecisionSignIn
	}
	if required == "" {
		return DecisionAllow
	}
	if !user.Role.AtLeast(required) {
		return DecisionDenied
	}
	return DecisionAllow
}

// Require is a convenience wrapper that turns a non-allow decision into an
// error suitable for CLI surfacing.
func Require(state authstate.State, required auth.Role) error {
	switch Check(state, required) {
	case DecisionAllow:
		return nil
	case DecisionWait:
		return fmt.Errorf("session check still in progress, try again")
	case DecisionDenied:
		return fmt.Errorf("requires %s role or higher", required)
	default:
		return fmt.Errorf("not logged in, run 'scrdeskctl auth login' first")
	}
}
