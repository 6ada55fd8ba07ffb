package oauthflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrdeskctl/internal/client"
	"scrdeskctl/internal/session"
	"scrdeskctl/pkg/auth"
)

type fakeExchanger struct {
	authURL      string
	state        string
	initiateErr  error
	exchangeErr  error
	exchanged    []string // codes seen by ExchangeOAuthCode
	result       *client.AuthResult
	lastProvider auth.Provider
}

func (f *fakeExchanger) InitiateOAuth(ctx context.Context, provider auth.Provider) (string, string, error) {
	f.lastProvider = provider
	if f.initiateErr != nil {
		return "", "", f.initiateErr
	}
	return f.authURL, f.state, nil
}

func (f *fakeExchanger) ExchangeOAuthCode(ctx context.Context, provider auth.Provider, code, state string) (*client.AuthResult, error) {
	f.exchanged = append(f.exchanged, code)
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.result, nil
}

func successResult() *client.AuthResult {
	return &client.AuthResult{
		Pair: session.TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 900},
		User: auth.Identity{ID: "u-1", Email: "user@example.com", Role: auth.RoleUser},
	}
}

func TestController_FullFlow(t *testing.T) {
	store := session.NewMemoryStore()
	exchanger := &fakeExchanger{
		authURL: "https://provider.example.com/authorize?state=nonce-1",
		state:   "nonce-1",
		result:  successResult(),
	}
	ctrl := NewController(exchanger, store)

	authURL, err := ctrl.Begin(context.Background(), auth.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, exchanger.authURL, authURL)
	assert.Equal(t, PhaseAwaitingReturn, ctrl.Phase())

	// The nonce must be durable before the hand-off.
	flow, ok, err := store.TakePending()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "nonce-1", flow.Nonce)
	assert.Equal(t, auth.ProviderGoogle, flow.Provider)
	require.NoError(t, store.PutPending(flow))

	result, err := ctrl.HandleCallback(context.Background(), "code-1", "nonce-1")
	require.NoError(t, err)
	assert.Equal(t, "a", result.Pair.AccessToken)
	assert.Equal(t, PhaseSucceeded, ctrl.Phase())

	// The nonce is consumed.
	_, ok, _ = store.TakePending()
	assert.False(t, ok)
}

func TestController_CallbackIsIdempotent(t *testing.T) {
	store := session.NewMemoryStore()
	exchanger := &fakeExchanger{authURL: "https://p/authorize", state: "n", result: successResult()}
	ctrl := NewController(exchanger, store)

	_, err := ctrl.Begin(context.Background(), auth.ProviderGoogle)
	require.NoError(t, err)

	_, err = ctrl.HandleCallback(context.Background(), "code-1", "n")
	require.NoError(t, err)

	// Second delivery of the same callback: no pending flow, no exchange.
	_, err = ctrl.HandleCallback(context.Background(), "code-1", "n")
	assert.ErrorIs(t, err, ErrNoPendingFlow)
	assert.Len(t, exchanger.exchanged, 1)
}

func TestController_StateMismatchConsumesNonce(t *testing.T) {
	store := session.NewMemoryStore()
	exchanger := &fakeExchanger{authURL: "https://p/authorize", state: "expected", result: successResult()}
	ctrl := NewController(exchanger, store)

	_, err := ctrl.Begin(context.Background(), auth.ProviderApple)
	require.NoError(t, err)

	_, err = ctrl.HandleCallback(context.Background(), "code-1", "forged")
	assert.ErrorIs(t, err, ErrStateMismatch)
	assert.Equal(t, PhaseFailed, ctrl.Phase())
	assert.Empty(t, exchanger.exchanged, "mismatched state must not reach the backend")

	// The nonce is single-use: retrying with the correct state now fails too.
	_, err = ctrl.HandleCallback(context.Background(), "code-1", "expected")
	assert.ErrorIs(t, err, ErrNoPendingFlow)
}

func TestController_MissingParameters(t *testing.T) {
	store := session.NewMemoryStore()
	exchanger := &fakeExchanger{authURL: "https://p/authorize", state: "n"}
	ctrl := NewController(exchanger, store)

	_, err := ctrl.Begin(context.Background(), auth.ProviderGoogle)
	require.NoError(t, err)

	_, err = ctrl.HandleCallback(context.Background(), "", "n")
	assert.ErrorIs(t, err, ErrMissingCallbackParameters)
	assert.Empty(t, exchanger.exchanged)
	assert.Equal(t, PhaseFailed, ctrl.Phase())

	// The attempt is over and the nonce consumed: a later callback with
	// full parameters finds no pending flow.
	_, err = ctrl.HandleCallback(context.Background(), "code-1", "n")
	assert.ErrorIs(t, err, ErrNoPendingFlow)
	assert.Empty(t, exchanger.exchanged)

	_, ok, _ := store.TakePending()
	assert.False(t, ok)
}

func TestController_NewFlowOverwritesPending(t *testing.T) {
	store := session.NewMemoryStore()
	exchanger := &fakeExchanger{authURL: "https://p/authorize", state: "first"}
	ctrl := NewController(exchanger, store)

	_, err := ctrl.Begin(context.Background(), auth.ProviderGoogle)
	require.NoError(t, err)

	exchanger.state = "second"
	_, err = ctrl.Begin(context.Background(), auth.ProviderApple)
	require.NoError(t, err)

	flow, ok, err := store.TakePending()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", flow.Nonce, "new flow must invalidate the previous nonce")
	assert.Equal(t, auth.ProviderApple, flow.Provider)
}

func TestController_InitiateFailure(t *testing.T) {
	store := session.NewMemoryStore()
	exchanger := &fakeExchanger{initiateErr: errors.New("provider unreachable")}
	ctrl := NewController(exchanger, store)

	_, err := ctrl.Begin(context.Background(), auth.ProviderGoogle)
	require.Error(t, err)
	assert.Equal(t, PhaseFailed, ctrl.Phase())

	// Nothing was persisted.
	_, ok, _ := store.TakePending()
	assert.False(t, ok)
}

func TestController_ExchangeFailure(t *testing.T) {
	store := session.NewMemoryStore()
	exchanger := &fakeExchanger{
		authURL:     "https://p/authorize",
		state:       "n",
		exchangeErr: errors.New("invalid code"),
	}
	ctrl := NewController(exchanger, store)

	_, err := ctrl.Begin(context.Background(), auth.ProviderGoogle)
	require.NoError(t, err)

	_, err = ctrl.HandleCallback(context.Background(), "bad-code", "n")
	require.Error(t, err)
	assert.Equal(t, PhaseFailed, ctrl.Phase())
	assert.Error(t, ctrl.Err())
}

func TestController_UnknownProvider(t *testing.T) {
	ctrl := NewController(&fakeExchanger{}, session.NewMemoryStore())

	_, err := ctrl.Begin(context.Background(), auth.Provider("github"))
	require.Error(t, err)
}

func TestController_ResumeFromFreshProcess(t *testing.T) {
	store := session.NewMemoryStore()
	exchanger := &fakeExchanger{authURL: "https://p/authorize", state: "n", result: successResult()}

	first := NewController(exchanger, store)
	_, err := first.Begin(context.Background(), auth.ProviderGoogle)
	require.NoError(t, err)

	// A fresh controller over the same store models the return leg arriving
	// in a new process.
	second := NewController(exchanger, store)
	provider, ok, err := second.Resume()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, auth.ProviderGoogle, provider)
	assert.Equal(t, PhaseAwaitingReturn, second.Phase())

	result, err := second.HandleCallback(context.Background(), "code-1", "n")
	require.NoError(t, err)
	assert.Equal(t, "u-1", result.User.ID)
}
