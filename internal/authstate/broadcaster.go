// Package authstate owns the current authentication state and fans it out to
// subscribers. Every transition of the global state and every write of the
// persisted token pair goes through the Broadcaster; no other component
// mutates either.
package authstate

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"scrdeskctl/internal/client"
	"scrdeskctl/internal/oauthflow"
	"scrdeskctl/internal/session"
	"scrdeskctl/pkg/auth"
	"scrdeskctl/pkg/logging"
)

// ErrSuperseded means an operation completed after a later transition (such
// as a logout) had already advanced the state, so its result was discarded.
var ErrSuperseded = errors.New("operation superseded by a later state transition")

// AuthAPI is the slice of the auth client the broadcaster drives.
type AuthAPI interface {
	Login(ctx context.Context, creds client.Credentials) (*client.AuthResult, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*auth.Identity, error)
	Refresh(ctx context.Context) (*client.AuthResult, error)
}

// Broadcaster holds the single AuthState and applies transitions in the
// order their triggering operations complete. Each auth-affecting operation
// is tagged with the generation it was issued against; a completion against
// a newer generation is discarded, so a stale login resolving after a logout
// can never resurrect an authenticated state.
type Broadcaster struct {
	mu          sync.Mutex
	client      AuthAPI
	store       session.Store
	flow        *oauthflow.Controller
	state       State
	subscribers map[uint64]chan State
	nextSubID   uint64

	// refreshGroup collapses concurrent on-401 refresh attempts into one
	// backend call.
	refreshGroup singleflight.Group
}

// New creates a Broadcaster in the loading state. Initialize must be called
// before the state is meaningful.
func New(api AuthAPI, store session.Store, flow *oauthflow.Controller) *Broadcaster {
	return &Broadcaster{
		client:      api,
		store:       store,
		flow:        flow,
		state:       State{Status: StatusLoading},
		subscribers: make(map[uint64]chan State),
	}
}

// Current returns the current state.
func (b *Broadcaster) Current() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Subscribe registers an observer. The returned channel receives every
// committed transition; cancel unregisters it. A slow subscriber misses
// intermediate states but can always read Current.
func (b *Broadcaster) Subscribe() (<-chan State, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSubID
	b.nextSubID++
	ch := make(chan State, 8)
	b.subscribers[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Initialize performs the startup identity check: if the store holds a token
// pair, the identity is resolved via the backend. It runs once per process
// start; until it returns, the state is StatusLoading and dependent views
// must wait. A rejected token is retried once through the refresh path
// before the session is torn down. A network failure keeps the stored
// tokens: being offline must not log the user out.
func (b *Broadcaster) Initialize(ctx context.Context) State {
	pair, ok, err := b.store.Get()
	if err != nil {
		logging.Warn("AuthState", "failed to read stored session: %v", err)
		b.transition(State{Status: StatusAnonymous})
		return b.Current()
	}
	if !ok || pair.AccessToken == "" {
		b.transition(State{Status: StatusAnonymous})
		return b.Current()
	}

	user, err := b.client.CurrentUser(ctx)
	if err == nil {
		b.transition(State{Status: StatusAuthenticated, User: user})
		return b.Current()
	}

	switch {
	case client.IsUnauthenticated(err):
		if user, rerr := b.refreshAndRetry(ctx); rerr == nil {
			b.transition(State{Status: StatusAuthenticated, User: user})
			return b.Current()
		}
		logging.Info("AuthState", "stored session rejected, clearing")
		b.teardown()
	case client.IsNetwork(err):
		logging.Warn("AuthState", "backend unreachable during startup check: %v", err)
		b.transition(State{Status: StatusError, Err: err})
	default:
		b.teardown()
	}
	return b.Current()
}

// Login runs a password login. Domain failures are returned to the caller
// verbatim for display; a two-factor challenge is returned as
// KindTwoFactorRequired and the caller retries with the code set. A login
// completing after a newer transition is discarded and reported as
// ErrSuperseded.
func (b *Broadcaster) Login(ctx context.Context, creds client.Credentials) (*auth.Identity, error) {
	gen := b.beginOperation(State{Status: StatusAuthenticating})

	result, err := b.client.Login(ctx, creds)
	if err != nil {
		b.revertIfCurrent(gen, State{Status: StatusAnonymous})
		return nil, err
	}

	if err := b.commit(gen, result.Pair, State{Status: StatusAuthenticated, User: &result.User}); err != nil {
		if errors.Is(err, ErrSuperseded) {
			logging.Info("AuthState", "discarding stale login completion")
		}
		return nil, err
	}
	return &result.User, nil
}

// Logout tears the session down. Local state is cleared unconditionally,
// even when the backend call fails: the user asked to be logged out and
// stays logged out. The generation advances before the backend call, so any
// in-flight operation issued earlier is already stale.
func (b *Broadcaster) Logout(ctx context.Context) error {
	b.mu.Lock()
	b.state.Generation++
	b.mu.Unlock()

	err := b.client.Logout(ctx)
	if err != nil {
		logging.Warn("AuthState", "backend logout failed, clearing local session anyway: %v", err)
	}

	b.teardown()
	return err
}

// BeginOAuth starts an OAuth flow and returns the provider authorization URL
// to open. The anti-forgery nonce is durable before this returns.
func (b *Broadcaster) BeginOAuth(ctx context.Context, provider auth.Provider) (string, error) {
	authURL, err := b.flow.Begin(ctx, provider)
	if err != nil {
		return "", err
	}
	b.transition(State{Status: StatusOAuthPending, Provider: provider})
	return authURL, nil
}

// CompleteOAuth handles the return leg of a pending OAuth flow and, on
// success, commits the exchanged token pair. A completion that lost the race
// against a logout is discarded.
func (b *Broadcaster) CompleteOAuth(ctx context.Context, code, state string) (*auth.Identity, error) {
	gen := b.currentGeneration()

	result, err := b.flow.HandleCallback(ctx, code, state)
	if err != nil {
		if errors.Is(err, oauthflow.ErrNoPendingFlow) {
			return nil, err
		}
		b.revertIfCurrent(gen, State{Status: StatusError, Err: err})
		return nil, err
	}

	if err := b.commit(gen, result.Pair, State{Status: StatusAuthenticated, User: &result.User}); err != nil {
		if errors.Is(err, ErrSuperseded) {
			logging.Info("AuthState", "discarding stale oauth completion")
		}
		return nil, err
	}
	return &result.User, nil
}

// Refresh renews the access token through the singleflight group and commits
// the new pair if no newer transition happened meanwhile.
func (b *Broadcaster) Refresh(ctx context.Context) error {
	gen := b.currentGeneration()

	result, err := b.doRefresh(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.Generation != gen {
		return ErrSuperseded
	}
	if err := b.store.Put(result.Pair); err != nil {
		return err
	}
	return nil
}

// HandleSessionError reacts to an error from any authenticated call made
// elsewhere in the application. An Unauthenticated error is fatal to the
// session unless a refresh recovers it; network errors never demote an
// authenticated state. It reports whether the session survived.
func (b *Broadcaster) HandleSessionError(ctx context.Context, err error) bool {
	if !client.IsUnauthenticated(err) {
		return true
	}

	if user, rerr := b.refreshAndRetry(ctx); rerr == nil {
		b.transition(State{Status: StatusAuthenticated, User: user})
		return true
	}

	logging.Info("AuthState", "session token rejected, tearing down")
	b.teardown()
	return false
}

// refreshAndRetry refreshes the access token and re-resolves the identity.
func (b *Broadcaster) refreshAndRetry(ctx context.Context) (*auth.Identity, error) {
	result, err := b.doRefresh(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.store.Put(result.Pair); err != nil {
		return nil, err
	}
	return b.client.CurrentUser(ctx)
}

func (b *Broadcaster) doRefresh(ctx context.Context) (*client.AuthResult, error) {
	v, err, _ := b.refreshGroup.Do("refresh", func() (interface{}, error) {
		return b.client.Refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*client.AuthResult), nil
}

// teardown clears the persisted session and sets Anonymous. Used by logout
// and by fatal session errors.
func (b *Broadcaster) teardown() {
	if err := b.store.Clear(); err != nil {
		logging.Warn("AuthState", "failed to clear stored session: %v", err)
	}
	b.transition(State{Status: StatusAnonymous})
}

// beginOperation publishes an intermediate state and returns the generation
// the operation was issued against.
func (b *Broadcaster) beginOperation(next State) uint64 {
	b.mu.Lock()
	gen := b.state.Generation
	next.Generation = gen
	b.state = next
	b.publishLocked()
	b.mu.Unlock()
	return gen
}

func (b *Broadcaster) currentGeneration() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Generation
}

// commit persists the pair and applies the transition. It returns
// ErrSuperseded when a newer generation was committed since the operation
// was issued.
func (b *Broadcaster) commit(gen uint64, pair session.TokenPair, next State) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.Generation != gen {
		return ErrSuperseded
	}
	if err := b.store.Put(pair); err != nil {
		logging.Error("AuthState", err, "failed to persist session")
		b.state = State{Status: StatusError, Err: err, Generation: gen + 1}
		b.publishLocked()
		return err
	}
	next.Generation = gen + 1
	b.state = next
	b.publishLocked()
	return nil
}

// revertIfCurrent applies a failure state only if no newer transition has
// happened meanwhile.
func (b *Broadcaster) revertIfCurrent(gen uint64, next State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.Generation != gen {
		return
	}
	next.Generation = gen
	b.state = next
	b.publishLocked()
}

// transition unconditionally applies a committed state.
func (b *Broadcaster) transition(next State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next.Generation = b.state.Generation + 1
	b.state = next
	b.publishLocked()
}

// publishLocked fans the current state out. Sends never block; a full
// subscriber channel drops the update.
func (b *Broadcaster) publishLocked() {
	for _, ch := range b.subscribers {
		select {
		case ch <- b.state:
		default:
		}
	}
}
