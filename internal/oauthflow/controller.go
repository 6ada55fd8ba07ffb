// Package oauthflow drives the navigation-spanning OAuth handshake: it asks
// the backend for an authorization URL, persists the anti-forgery nonce before
// the browser hand-off, and validates the return leg against it. Because no
// in-memory state survives the hand-off, the return leg may run in a fresh
// process that rehydrates the pending flow from durable storage.
package oauthflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scrdeskctl/internal/client"
	"scrdeskctl/internal/session"
	"scrdeskctl/pkg/auth"
	"scrdeskctl/pkg/logging"
)

// Phase is the controller's position in the handshake.
type Phase int

const (
	// PhaseIdle means no flow is in progress.
	PhaseIdle Phase = iota

	// PhaseInitiating means the authorization URL is being requested.
	PhaseInitiating

	// PhaseAwaitingReturn means the nonce is persisted and the user has been
	// handed off to the provider.
	PhaseAwaitingReturn

	// PhaseValidating means a callback arrived and is being checked against
	// the persisted nonce.
	PhaseValidating

	// PhaseSucceeded means the code exchange completed.
	PhaseSucceeded

	// PhaseFailed means the flow ended in an error. The pending nonce, if
	// any, has been discarded.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInitiating:
		return "initiating"
	case PhaseAwaitingReturn:
		return "awaiting_return"
	case PhaseValidating:
		return "validating"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Exchanger is the slice of the auth client the controller needs.
type Exchanger interface {
	InitiateOAuth(ctx context.Context, provider auth.Provider) (authURL, state string, err error)
	ExchangeOAuthCode(ctx context.Context, provider auth.Provider, code, state string) (*client.AuthResult, error)
}

// Controller is the OAuth flow state machine. It persists the pending nonce
// through the session store and validates callbacks against it. It never
// writes the token pair itself; the exchanged result is handed back to the
// caller, which commits it through the state broadcaster.
type Controller struct {
	mu       sync.Mutex
	client   Exchanger
	store    session.Store
	phase    Phase
	provider auth.Provider
	lastErr  error
}

// NewController creates a controller in the idle phase.
func NewController(exchanger Exchanger, store session.Store) *Controller {
	return &Controller{
		client: exchanger,
		store:  store,
		phase:  PhaseIdle,
	}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Err returns the error that moved the controller into PhaseFailed, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Begin requests an authorization URL for the provider and persists the
// anti-forgery nonce. It must complete before the user navigates away:
// the hand-off destroys in-memory state, so the nonce has to be durable
// first. Beginning a new flow overwrites any previously pending nonce.
func (c *Controller) Begin(ctx context.Context, provider auth.Provider) (string, error) {
	if !provider.Valid() {
		return "", fmt.Errorf("unknown oauth provider %q", provider)
	}

	c.setPhase(PhaseInitiating, provider, nil)

	authURL, state, err := c.client.InitiateOAuth(ctx, provider)
	if err != nil {
		c.setPhase(PhaseFailed, provider, err)
		return "", err
	}

	flow := session.PendingFlow{
		Provider:    provider,
		Nonce:       state,
		RequestedAt: time.Now(),
	}
	if err := c.store.PutPending(flow); err != nil {
		err = fmt.Errorf("failed to persist oauth state: %w", err)
		c.setPhase(PhaseFailed, provider, err)
		return "", err
	}

	logging.Debug("OAuthFlow", "flow started for provider %s", provider)
	c.setPhase(PhaseAwaitingReturn, provider, nil)
	return authURL, nil
}

// HandleCallback validates the return leg and exchanges the authorization
// code. The persisted nonce is consumed before the exchange, so a second
// delivery of the same callback finds no pending flow and returns
// ErrNoPendingFlow without side effects. A state mismatch is fatal to the
// flow: the nonce is already consumed and the flow must be restarted.
func (c *Controller) HandleCallback(ctx context.Context, code, state string) (*client.AuthResult, error) {
	if code == "" || state == "" {
		// A malformed callback still ends the attempt: the nonce is
		// consumed and the flow must be restarted from provider selection.
		if _, _, err := c.store.TakePending(); err != nil {
			logging.Warn("OAuthFlow", "failed to discard oauth state: %v", err)
		}
		c.setPhase(PhaseFailed, c.pendingProvider(), ErrMissingCallbackParameters)
		return nil, ErrMissingCallbackParameters
	}

	flow, ok, err := c.store.TakePending()
	if err != nil {
		err = fmt.Errorf("failed to read oauth state: %w", err)
		c.setPhase(PhaseFailed, "", err)
		return nil, err
	}
	if !ok {
		logging.Debug("OAuthFlow", "callback with no pending flow, ignoring")
		return nil, ErrNoPendingFlow
	}

	c.setPhase(PhaseValidating, flow.Provider, nil)

	if state != flow.Nonce {
		logging.Warn("OAuthFlow", "state mismatch on callback for provider %s", flow.Provider)
		c.setPhase(PhaseFailed, flow.Provider, ErrStateMismatch)
		return nil, ErrStateMismatch
	}

	result, err := c.client.ExchangeOAuthCode(ctx, flow.Provider, code, state)
	if err != nil {
		c.setPhase(PhaseFailed, flow.Provider, err)
		return nil, err
	}

	logging.Info("OAuthFlow", "flow completed for provider %s", flow.Provider)
	c.setPhase(PhaseSucceeded, flow.Provider, nil)
	return result, nil
}

// Resume rehydrates a pending flow from durable storage into a fresh
// controller, for the case where the return leg runs in a new process. It
// reports whether a flow was pending. The pending entry stays in place;
// HandleCallback still consumes it.
func (c *Controller) Resume() (auth.Provider, bool, error) {
	flow, ok, err := c.store.TakePending()
	if err != nil {
		return "", false, fmt.Errorf("failed to read oauth state: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	if err := c.store.PutPending(flow); err != nil {
		return "", false, fmt.Errorf("failed to restore oauth state: %w", err)
	}
	c.setPhase(PhaseAwaitingReturn, flow.Provider, nil)
	return flow.Provider, true, nil
}

func (c *Controller) setPhase(phase Phase, provider auth.Provider, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = phase
	if provider != "" {
		c.provider = provider
	}
	c.lastErr = err
}

func (c *Controller) pendingProvider() auth.Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider
}
