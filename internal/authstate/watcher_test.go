package authstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scrdeskctl/internal/session"
	"scrdeskctl/pkg/auth"
)

func TestSessionWatcher_ExternalLoginIsPickedUp(t *testing.T) {
	dir := t.TempDir()
	store, err := session.NewFileStore(dir)
	require.NoError(t, err)

	api := &fakeAPI{currentFn: func() (*auth.Identity, error) { return testIdentity(), nil }}
	b := newBroadcaster(api, store)
	b.Initialize(context.Background())
	require.Equal(t, StatusAnonymous, b.Current().Status)

	watcher, err := NewSessionWatcher(b, store.SessionPath())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	// Another process logs in: a second store over the same directory writes
	// the session file.
	other, err := session.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, other.Put(session.TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 900}))

	require.Eventually(t, func() bool {
		return b.Current().Status == StatusAuthenticated
	}, 5*time.Second, 50*time.Millisecond, "watcher should pick up the external login")
}

func TestSessionWatcher_ExternalLogoutIsPickedUp(t *testing.T) {
	dir := t.TempDir()
	store, err := session.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put(session.TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 900}))

	api := &fakeAPI{currentFn: func() (*auth.Identity, error) { return testIdentity(), nil }}
	b := newBroadcaster(api, store)
	b.Initialize(context.Background())
	require.Equal(t, StatusAuthenticated, b.Current().Status)

	watcher, err := NewSessionWatcher(b, store.SessionPath())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	other, err := session.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, other.Clear())

	require.Eventually(t, func() bool {
		return b.Current().Status == StatusAnonymous
	}, 5*time.Second, 50*time.Millisecond, "watcher should pick up the external logout")
}
