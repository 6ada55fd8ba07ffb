package authstate

import (
	"fmt"

	"scrdeskctl/pkg/auth"
)

// Status is the coarse authentication status.
type Status int

const (
	// StatusLoading means the startup identity check has not finished yet.
	// Dependent views must not render until it resolves.
	StatusLoading Status = iota

	// StatusAnonymous means no session exists.
	StatusAnonymous

	// StatusAuthenticating means a password login is in flight.
	StatusAuthenticating

	// StatusOAuthPending means an OAuth flow is awaiting its return leg.
	StatusOAuthPending

	// StatusAuthenticated means a session exists and the identity is known.
	StatusAuthenticated

	// StatusError means the last auth-affecting operation failed in a way
	// that left no usable session, but the stored tokens were not discarded.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAnonymous:
		return "anonymous"
	case StatusAuthenticating:
		return "authenticating"
	case StatusOAuthPending:
		return "oauth_pending"
	case StatusAuthenticated:
		return "authenticated"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is the single source of truth for "who is the current user". It is
// owned by the Broadcaster; all other components observe it via subscription
// and never mutate it directly.
type State struct {
	Status Status

	// User is set when Status is StatusAuthenticated.
	User *auth.Identity

	// Provider is set when Status is StatusOAuthPending.
	Provider auth.Provider

	// Err is set when Status is StatusError.
	Err error

	// Generation increases with every committed transition. In-flight
	// operations tagged with an older generation are discarded on
	// completion.
	Generation uint64
}

func (s State) String() string {
	switch s.Status {
	case StatusAuthenticated:
		if s.User != nil {
			return fmt.Sprintf("authenticated(%s)", s.User.Email)
		}
		return "authenticated"
	case StatusOAuthPending:
		return fmt.Sprintf("oauth_pending(%s)", s.Provider)
	case StatusError:
		return fmt.Sprintf("error(%v)", s.Err)
	default:
		return s.Status.String()
	}
}
