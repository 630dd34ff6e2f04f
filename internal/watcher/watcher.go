package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/blackwell-systems/swinv/internal/history"
)

// debounceDelay groups the bursts of writes one package-manager
// transaction produces into a single synchronization run.
const debounceDelay = 2 * time.Second

// Watcher triggers history synchronization on log activity and on a
// periodic fallback ticker.
type Watcher struct {
	sync     *history.Sync
	path     string
	interval time.Duration
	log      logrus.FieldLogger

	fsw    *fsnotify.Watcher
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Watcher for the history log at path. interval is the
// fallback scan period; zero selects five minutes.
func New(sync *history.Sync, path string, interval time.Duration, log logrus.FieldLogger) (*Watcher, error) {
	if sync == nil {
		return nil, fmt.Errorf("synchronizer cannot be nil")
	}
	if path == "" {
		return nil, fmt.Errorf("history log path cannot be empty")
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Watcher{
		sync:     sync,
		path:     filepath.Clean(path),
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start runs one synchronization immediately, then begins watching.
// The initial run surfaces configuration problems (missing schema,
// unreadable log) before the process detaches.
func (w *Watcher) Start() error {
	if _, err := w.sync.Run(w.path, 0); err != nil {
		return fmt.Errorf("initial synchronization failed: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory, not the file: rotation replaces the file
	// and would silently detach a file-level watch.
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.run()

	return nil
}

// run serializes all synchronization triggers onto one goroutine.
func (w *Watcher) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	debounce := time.NewTimer(debounceDelay)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) {
				debounce.Reset(debounceDelay)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("file watcher error")

		case <-debounce.C:
			w.runSync()

		case <-ticker.C:
			w.runSync()

		case <-w.stopCh:
			// Final scan so entries written during shutdown are not
			// lost until the next start.
			w.runSync()
			return
		}
	}
}

func (w *Watcher) runSync() {
	stats, err := w.sync.Run(w.path, 0)
	if err != nil {
		w.log.WithError(err).Warn("synchronization failed")
		return
	}
	if stats.Transactions > 0 {
		w.log.WithFields(logrus.Fields{
			"transactions": stats.Transactions,
			"last_time":    stats.LastTime,
		}).Info("synchronized history log")
	}
}

// Stop halts the watcher after a final synchronization.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	w.wg.Wait()

	if w.fsw != nil {
		if err := w.fsw.Close(); err != nil {
			return fmt.Errorf("failed to close file watcher: %w", err)
		}
	}
	return nil
}
