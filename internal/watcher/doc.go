// Package watcher keeps the inventory database current by running the
// history synchronizer whenever the package manager writes to its log.
//
// The log's parent directory is watched with fsnotify so that log
// rotation (which replaces the file) is picked up as well. Events are
// debounced because apt writes a transaction in several bursts; a
// periodic fallback scan covers missed events. Runs are serialized on
// one goroutine since the database has a single writer.
//
// Key features:
//   - fsnotify on the log directory (rotation-safe)
//   - Debounced reaction to write bursts
//   - Periodic fallback synchronization
//   - Daemon mode support with PID file management
//   - Graceful shutdown with SIGTERM/SIGINT handling
//
// Example usage:
//
//	w, err := watcher.New(sync, "/var/log/apt/history.log", 5*time.Minute, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Start watching in foreground
//	if err := w.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer w.Stop()
//
//	// Or detach as a daemon
//	if err := watcher.StartDaemon("/run/swinv.pid", "/var/log/swinv.log", "watch", "--daemon-child"); err != nil {
//		log.Fatal(err)
//	}
package watcher
