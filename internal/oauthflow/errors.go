package oauthflow

import "errors"

var (
	// ErrMissingCallbackParameters means the return leg arrived without a
	// code or state parameter. The backend is never contacted in this case.
	ErrMissingCallbackParameters = errors.New("oauth callback is missing code or state parameter")

	// ErrNoPendingFlow means a callback arrived with no flow awaiting it.
	// Duplicate deliveries of the same callback land here and are a no-op.
	ErrNoPendingFlow = errors.New("no pending oauth flow")

	// ErrStateMismatch means the state parameter did not match the persisted
	// nonce. The nonce is consumed either way; the user must restart the flow
	// from provider selection.
	ErrStateMismatch = errors.New("oauth state parameter does not match pending flow")

	// ErrProviderDenied means the provider reported an authorization error
	// instead of issuing a code.
	ErrProviderDenied = errors.New("oauth provider denied authorization")
)
