package client

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of an auth backend call. Domain kinds are carried
// to the user verbatim; KindNetwork means the backend never produced a
// recognizable response and the operation may simply be retried.
type Kind int

const (
	// KindNetwork is a transport failure: no response, or a response with
	// no recognizable error body.
	KindNetwork Kind = iota

	// KindInvalidCredentials means the email/password combination was
	// rejected.
	KindInvalidCredentials

	// KindTwoFactorRequired means the password was accepted but a two-factor
	// code is missing or wrong. The caller should re-prompt and retry with
	// the code set; in-progress form data must be preserved.
	KindTwoFactorRequired

	// KindRegistrationConflict means the email is already registered.
	KindRegistrationConflict

	// KindValidation is a request rejected by backend input validation.
	KindValidation

	// KindRateLimited means the backend throttled the request.
	KindRateLimited

	// KindUnauthenticated means the attached token was missing, expired, or
	// revoked. Fatal to the session: the caller must tear down local state.
	KindUnauthenticated

	// KindProviderUnavailable means the OAuth provider could not be reached
	// to build an authorization URL.
	KindProviderUnavailable

	// KindOAuthExchangeFailed means trading the authorization code for a
	// token pair failed.
	KindOAuthExchangeFailed

	// KindServer is any other backend rejection.
	KindServer
)

// String returns the wire-ish name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network_error"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindTwoFactorRequired:
		return "two_factor_required"
	case KindRegistrationConflict:
		return "registration_conflict"
	case KindValidation:
		return "validation_error"
	case KindRateLimited:
		return "rate_limited"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindProviderUnavailable:
		return "provider_unavailable"
	case KindOAuthExchangeFailed:
		return "oauth_exchange_failed"
	case KindServer:
		return "server_error"
	default:
		return "unknown"
	}
}

// Error is a typed failure from the auth backend. Message carries the
// backend-supplied text so forms can surface it verbatim.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return e.Kind.String()
}

// Unwrap returns the underlying transport error, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// IsKind reports whether err is a client Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}

// IsNetwork reports whether err is a transport failure. Network failures are
// retryable and must never demote an authenticated session.
func IsNetwork(err error) bool {
	return IsKind(err, KindNetwork)
}

// IsUnauthenticated reports whether err means the session token was rejected.
func IsUnauthenticated(err error) bool {
	return IsKind(err, KindUnauthenticated)
}
