package authstate

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"scrdeskctl/pkg/logging"
)

// watchDebounce coalesces the rename-then-write bursts atomic session
// updates produce into one reload.
const watchDebounce = 200 * time.Millisecond

// SessionWatcher observes the session file for changes made by other
// processes (a second invocation logging in or out) and re-runs the identity
// check so the broadcast state follows.
type SessionWatcher struct {
	broadcaster *Broadcaster
	path        string
	watcher     *fsnotify.Watcher
}

// NewSessionWatcher creates a watcher over the session file at path.
func NewSessionWatcher(b *Broadcaster, path string) (*SessionWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: the session file is replaced by rename, which a
	// watch on the file itself would lose.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	return &SessionWatcher{
		broadcaster: b,
		path:        path,
		watcher:     watcher,
	}, nil
}

// Run processes events until the context is done.
func (w *SessionWatcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("AuthState", "session watcher error: %v", err)

		case <-reload:
			logging.Debug("AuthState", "session file changed externally, reloading")
			w.broadcaster.Initialize(ctx)
		}
	}
}
