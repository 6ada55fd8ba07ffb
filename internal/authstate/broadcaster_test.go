package authstate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrdeskctl/internal/client"
	"scrdeskctl/internal/oauthflow"
	"scrdeskctl/internal/session"
	"scrdeskctl/pkg/auth"
)

// fakeAPI implements AuthAPI and oauthflow.Exchanger with per-operation
// function hooks.
type fakeAPI struct {
	loginFn    func(client.Credentials) (*client.AuthResult, error)
	logoutFn   func() error
	currentFn  func() (*auth.Identity, error)
	refreshFn  func() (*client.AuthResult, error)
	initiateFn func(auth.Provider) (string, string, error)
	exchangeFn func(auth.Provider, string, string) (*client.AuthResult, error)
}

func (f *fakeAPI) Login(ctx context.Context, creds client.Credentials) (*client.AuthResult, error) {
	return f.loginFn(creds)
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	if f.logoutFn == nil {
		return nil
	}
	return f.logoutFn()
}

func (f *fakeAPI) CurrentUser(ctx context.Context) (*auth.Identity, error) {
	return f.currentFn()
}

func (f *fakeAPI) Refresh(ctx context.Context) (*client.AuthResult, error) {
	if f.refreshFn == nil {
		return nil, &client.Error{Kind: client.KindUnauthenticated, Message: "no refresh token"}
	}
	return f.refreshFn()
}

func (f *fakeAPI) InitiateOAuth(ctx context.Context, provider auth.Provider) (string, string, error) {
	return f.initiateFn(provider)
}

func (f *fakeAPI) ExchangeOAuthCode(ctx context.Context, provider auth.Provider, code, state string) (*client.AuthResult, error) {
	return f.exchangeFn(provider, code, state)
}

func testIdentity() *auth.Identity {
	return &auth.Identity{ID: "u-1", Email: "admin@example.com", Role: auth.RoleAdmin, IsActive: true}
}

func testResult() *client.AuthResult {
	return &client.AuthResult{
		Pair: session.TokenPair{AccessToken: "a-1", RefreshToken: "r-1", ExpiresIn: 900, IssuedAt: time.Now()},
		User: *testIdentity(),
	}
}

func newBroadcaster(api *fakeAPI, store session.Store) *Broadcaster {
	return New(api, store, oauthflow.NewController(api, store))
}

func TestInitialize_EmptyStore(t *testing.T) {
	store := session.NewMemoryStore()
	b := newBroadcaster(&fakeAPI{}, store)

	assert.Equal(t, StatusLoading, b.Current().Status)

	state := b.Initialize(context.Background())
	assert.Equal(t, StatusAnonymous, state.Status)
}

func TestInitialize_ValidStoredSession(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Put(session.TokenPair{AccessToken: "a", RefreshToken: "r"}))

	api := &fakeAPI{currentFn: func() (*auth.Identity, error) { return testIdentity(), nil }}
	b := newBroadcaster(api, store)

	state := b.Initialize(context.Background())
	require.Equal(t, StatusAuthenticated, state.Status)
	assert.Equal(t, "admin@example.com", state.User.Email)
}

func TestInitialize_RejectedTokenClearsStore(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Put(session.TokenPair{AccessToken: "stale", RefreshToken: "r"}))

	api := &fakeAPI{
		currentFn: func() (*auth.Identity, error) {
			return nil, &client.Error{Kind: client.KindUnauthenticated, Message: "Token expired"}
		},
		refreshFn: func() (*client.AuthResult, error) {
			return nil, &client.Error{Kind: client.KindUnauthenticated, Message: "Refresh token revoked"}
		},
	}
	b := newBroadcaster(api, store)

	state := b.Initialize(context.Background())
	assert.Equal(t, StatusAnonymous, state.Status)

	_, ok, _ := store.Get()
	assert.False(t, ok, "rejected session must be cleared")
}

func TestInitialize_RefreshRecoversRejectedToken(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Put(session.TokenPair{AccessToken: "stale", RefreshToken: "r-1"}))

	var calls int
	api := &fakeAPI{
		currentFn: func() (*auth.Identity, error) {
			calls++
			if calls == 1 {
				return nil, &client.Error{Kind: client.KindUnauthenticated, Message: "Token expired"}
			}
			return testIdentity(), nil
		},
		refreshFn: func() (*client.AuthResult, error) {
			return &client.AuthResult{
				Pair: session.TokenPair{AccessToken: "a-new", RefreshToken: "r-1", ExpiresIn: 900},
			}, nil
		},
	}
	b := newBroadcaster(api, store)

	state := b.Initialize(context.Background())
	require.Equal(t, StatusAuthenticated, state.Status)

	pair, ok, _ := store.Get()
	require.True(t, ok)
	assert.Equal(t, "a-new", pair.AccessToken)
	assert.Equal(t, "r-1", pair.RefreshToken)
}

func TestInitialize_NetworkFailureKeepsTokens(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Put(session.TokenPair{AccessToken: "a", RefreshToken: "r"}))

	api := &fakeAPI{
		currentFn: func() (*auth.Identity, error) {
			return nil, &client.Error{Kind: client.KindNetwork, Message: "backend unreachable"}
		},
	}
	b := newBroadcaster(api, store)

	state := b.Initialize(context.Background())
	assert.Equal(t, StatusError, state.Status)

	// Being offline must not log the user out.
	_, ok, _ := store.Get()
	assert.True(t, ok)
}

func TestLogin_Success(t *testing.T) {
	store := session.NewMemoryStore()
	api := &fakeAPI{loginFn: func(client.Credentials) (*client.AuthResult, error) { return testResult(), nil }}
	b := newBroadcaster(api, store)
	b.Initialize(context.Background())

	user, err := b.Login(context.Background(), client.Credentials{Email: "admin@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, StatusAuthenticated, b.Current().Status)

	pair, ok, _ := store.Get()
	require.True(t, ok)
	assert.Equal(t, "a-1", pair.AccessToken)
}

func TestLogin_FailureLeavesAnonymous(t *testing.T) {
	store := session.NewMemoryStore()
	api := &fakeAPI{loginFn: func(client.Credentials) (*client.AuthResult, error) {
		return nil, &client.Error{Kind: client.KindInvalidCredentials, Message: "Invalid credentials"}
	}}
	b := newBroadcaster(api, store)
	b.Initialize(context.Background())

	_, err := b.Login(context.Background(), client.Credentials{Email: "x@example.com", Password: "bad"})
	assert.True(t, client.IsKind(err, client.KindInvalidCredentials))
	assert.Equal(t, StatusAnonymous, b.Current().Status)

	_, ok, _ := store.Get()
	assert.False(t, ok)
}

func TestStaleLoginAfterLogoutIsDiscarded(t *testing.T) {
	store := session.NewMemoryStore()
	gate := make(chan struct{})
	api := &fakeAPI{
		loginFn: func(client.Credentials) (*client.AuthResult, error) {
			<-gate
			return testResult(), nil
		},
	}
	b := newBroadcaster(api, store)
	b.Initialize(context.Background())

	var wg sync.WaitGroup
	var loginErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, loginErr = b.Login(context.Background(), client.Credentials{Email: "admin@example.com", Password: "pw"})
	}()

	// Wait until the login is in flight, then log out.
	require.Eventually(t, func() bool {
		return b.Current().Status == StatusAuthenticating
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, b.Logout(context.Background()))

	// Now let the stale login response arrive.
	close(gate)
	wg.Wait()

	assert.ErrorIs(t, loginErr, ErrSuperseded)
	assert.Equal(t, StatusAnonymous, b.Current().Status)

	_, ok, _ := store.Get()
	assert.False(t, ok, "stale login must not resurrect the session")
}

func TestLogout_ClearsLocalStateOnBackendFailure(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Put(session.TokenPair{AccessToken: "a", RefreshToken: "r"}))

	api := &fakeAPI{
		currentFn: func() (*auth.Identity, error) { return testIdentity(), nil },
		logoutFn: func() error {
			return &client.Error{Kind: client.KindServer, Message: "session service down", StatusCode: 500}
		},
	}
	b := newBroadcaster(api, store)
	b.Initialize(context.Background())

	err := b.Logout(context.Background())
	assert.Error(t, err, "backend failure is reported")
	assert.Equal(t, StatusAnonymous, b.Current().Status)

	_, ok, _ := store.Get()
	assert.False(t, ok, "local session is cleared regardless")
}

func TestOAuth_CompleteCommitsSession(t *testing.T) {
	store := session.NewMemoryStore()
	api := &fakeAPI{
		initiateFn: func(auth.Provider) (string, string, error) {
			return "https://provider/authorize?state=n", "n", nil
		},
		exchangeFn: func(auth.Provider, string, string) (*client.AuthResult, error) {
			return testResult(), nil
		},
	}
	b := newBroadcaster(api, store)
	b.Initialize(context.Background())

	authURL, err := b.BeginOAuth(context.Background(), auth.ProviderGoogle)
	require.NoError(t, err)
	assert.NotEmpty(t, authURL)
	assert.Equal(t, StatusOAuthPending, b.Current().Status)

	user, err := b.CompleteOAuth(context.Background(), "code-1", "n")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, StatusAuthenticated, b.Current().Status)

	pair, ok, _ := store.Get()
	require.True(t, ok)
	assert.Equal(t, "a-1", pair.AccessToken)
}

func TestOAuth_CompletionAfterLogoutIsDiscarded(t *testing.T) {
	store := session.NewMemoryStore()
	gate := make(chan struct{})
	api := &fakeAPI{
		initiateFn: func(auth.Provider) (string, string, error) {
			return "https://provider/authorize", "n", nil
		},
		exchangeFn: func(auth.Provider, string, string) (*client.AuthResult, error) {
			<-gate
			return testResult(), nil
		},
	}
	b := newBroadcaster(api, store)
	b.Initialize(context.Background())

	_, err := b.BeginOAuth(context.Background(), auth.ProviderGoogle)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var completeErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, completeErr = b.CompleteOAuth(context.Background(), "code-1", "n")
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, b.Logout(context.Background()))
	close(gate)
	wg.Wait()

	assert.ErrorIs(t, completeErr, ErrSuperseded)
	assert.Equal(t, StatusAnonymous, b.Current().Status)

	_, ok, _ := store.Get()
	assert.False(t, ok)
}

func TestHandleSessionError(t *testing.T) {
	t.Run("network error keeps session", func(t *testing.T) {
		store := session.NewMemoryStore()
		require.NoError(t, store.Put(session.TokenPair{AccessToken: "a", RefreshToken: "r"}))

		api := &fakeAPI{currentFn: func() (*auth.Identity, error) { return testIdentity(), nil }}
		b := newBroadcaster(api, store)
		b.Initialize(context.Background())

		survived := b.HandleSessionError(context.Background(),
			&client.Error{Kind: client.KindNetwork, Message: "backend unreachable"})
		assert.True(t, survived)
		assert.Equal(t, StatusAuthenticated, b.Current().Status)
	})

	t.Run("unauthenticated with failed refresh tears down", func(t *testing.T) {
		store := session.NewMemoryStore()
		require.NoError(t, store.Put(session.TokenPair{AccessToken: "a", RefreshToken: "r"}))

		api := &fakeAPI{
			currentFn: func() (*auth.Identity, error) { return testIdentity(), nil },
			refreshFn: func() (*client.AuthResult, error) {
				return nil, &client.Error{Kind: client.KindUnauthenticated, Message: "Refresh token revoked"}
			},
		}
		b := newBroadcaster(api, store)
		b.Initialize(context.Background())

		survived := b.HandleSessionError(context.Background(),
			&client.Error{Kind: client.KindUnauthenticated, Message: "Token expired"})
		assert.False(t, survived)
		assert.Equal(t, StatusAnonymous, b.Current().Status)

		_, ok, _ := store.Get()
		assert.False(t, ok)
	})

	t.Run("unauthenticated with successful refresh recovers", func(t *testing.T) {
		store := session.NewMemoryStore()
		require.NoError(t, store.Put(session.TokenPair{AccessToken: "a", RefreshToken: "r"}))

		api := &fakeAPI{
			currentFn: func() (*auth.Identity, error) { return testIdentity(), nil },
			refreshFn: func() (*client.AuthResult, error) {
				return &client.AuthResult{
					Pair: session.TokenPair{AccessToken: "a-new", RefreshToken: "r", ExpiresIn: 900},
				}, nil
			},
		}
		b := newBroadcaster(api, store)
		b.Initialize(context.Background())

		survived := b.HandleSessionError(context.Background(),
			&client.Error{Kind: client.KindUnauthenticated, Message: "Token expired"})
		assert.True(t, survived)
		assert.Equal(t, StatusAuthenticated, b.Current().Status)

		pair, ok, _ := store.Get()
		require.True(t, ok)
		assert.Equal(t, "a-new", pair.AccessToken)
	})
}

func TestRefresh_Singleflight(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Put(session.TokenPair{AccessToken: "a", RefreshToken: "r"}))

	var calls int32
	entered := make(chan struct{}, 2)
	gate := make(chan struct{})
	api := &fakeAPI{
		currentFn: func() (*auth.Identity, error) { return testIdentity(), nil },
		refreshFn: func() (*client.AuthResult, error) {
			atomic.AddInt32(&calls, 1)
			entered <- struct{}{}
			<-gate
			return &client.AuthResult{
				Pair: session.TokenPair{AccessToken: "a-new", RefreshToken: "r", ExpiresIn: 900},
			}, nil
		},
	}
	b := newBroadcaster(api, store)
	b.Initialize(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Refresh(context.Background())
		}()
	}

	// Wait for the first call to be in flight, give the second time to join
	// the same singleflight key, then release.
	<-entered
	time.Sleep(200 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent refreshes must collapse into one call")
}

func TestSubscribe(t *testing.T) {
	store := session.NewMemoryStore()
	api := &fakeAPI{loginFn: func(client.Credentials) (*client.AuthResult, error) { return testResult(), nil }}
	b := newBroadcaster(api, store)

	ch, cancel := b.Subscribe()
	defer cancel()

	b.Initialize(context.Background())

	select {
	case state := <-ch:
		assert.Equal(t, StatusAnonymous, state.Status)
	case <-time.After(time.Second):
		t.Fatal("Expected a state update after Initialize")
	}

	_, err := b.Login(context.Background(), client.Credentials{Email: "admin@example.com", Password: "pw"})
	require.NoError(t, err)

	var last State
	deadline := time.After(time.Second)
	for done := false; !done; {
		select {
		case state := <-ch:
			last = state
			if state.Status == StatusAuthenticated {
				done = true
			}
		case <-deadline:
			t.Fatal("Expected an authenticated state update")
		}
	}
	assert.Equal(t, "u-1", last.User.ID)
}
