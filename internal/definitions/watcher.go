package definitions

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the bundle directory when its files change and swaps the
// provider's snapshot atomically. A failed reload keeps the previous snapshot;
// correctness never depends on the watcher firing.
type Watcher struct {
	dir      string
	provider *Provider
	logger   *slog.Logger
	debounce time.Duration
}

// NewWatcher builds a watcher over one bundle directory.
func NewWatcher(dir string, provider *Provider, logger *slog.Logger) *Watcher {
	return &Watcher{
		dir:      dir,
		provider: provider,
		logger:   logger,
		debounce: 500 * time.Millisecond,
	}
}

// Run blocks until ctx is done, reloading on file system changes. Editors
// produce bursts of events, so reloads are debounced.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return err
	}

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("definitions watcher error", "error", err)
		case <-timerCh:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	snapshot, err := LoadBundleDir(w.dir)
	if err != nil {
		w.logger.Error("definitions reload failed, keeping previous snapshot",
			"dir", w.dir,
			"error", err,
		)
		return
	}
	w.provider.Replace(snapshot)
	w.logger.Info("definitions reloaded",
		"dir", w.dir,
		"rules", len(snapshot.Rules),
		"regulations", len(snapshot.Regulations),
		"tiers", len(snapshot.Tiers),
		"workflows", len(snapshot.Workflows),
	)
}
