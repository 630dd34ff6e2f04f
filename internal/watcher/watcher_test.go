package watcher

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blackwell-systems/swinv/internal/history"
	"github.com/blackwell-systems/swinv/internal/store"
	"github.com/blackwell-systems/swinv/internal/swid"
)

const firstEntry = `Start-Date: 2017-07-05  15:24:37
Install: cowsay:amd64 (3.03+dfsg2-3)
End-Date: 2017-07-05  15:24:38
`

const secondEntry = `
Start-Date: 2017-07-05  16:17:01
Install: fortune-mod:amd64 (1:1.99.1-7)
End-Date: 2017-07-05  16:17:09
`

// newTestWatcher wires a synchronizer over an in-memory store with a
// seeded baseline transaction and a log containing one entry.
func newTestWatcher(t *testing.T, interval time.Duration) (*Watcher, *store.Store, string) {
	t.Helper()

	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.CreateSchema(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	tx, err := st.Begin()
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	if _, err := st.AddEvent(tx, "2017-07-05T00:00:00Z", 1); err != nil {
		t.Fatalf("AddEvent() failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "history.log")
	if err := os.WriteFile(path, []byte(firstEntry), 0o644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	src, err := history.NewSource("apt")
	if err != nil {
		t.Fatalf("NewSource() failed: %v", err)
	}
	namer := swid.NewNamer("example.com", "Example Project", "debian_9.0-x86_64")
	sync := history.NewSync(st, src, namer, logger)

	w, err := New(sync, path, interval, logger)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return w, st, path
}

// waitForTransactions polls until the store holds want transactions or
// the deadline passes.
func waitForTransactions(t *testing.T, st *store.Store, want int, deadline time.Duration) {
	t.Helper()

	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		n, err := st.CountTransactions()
		if err != nil {
			t.Fatalf("CountTransactions() failed: %v", err)
		}
		if n >= want {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	n, _ := st.CountTransactions()
	t.Fatalf("store has %d transactions after %v, want %d", n, deadline, want)
}

func TestNew_Validation(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if _, err := New(nil, "/var/log/apt/history.log", 0, logger); err == nil {
		t.Error("New() should reject a nil synchronizer")
	}

	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	defer st.Close()
	src, _ := history.NewSource("apt")
	sync := history.NewSync(st, src, swid.NewNamer("example.com", "Example", "debian_9.0-x86_64"), logger)

	if _, err := New(sync, "", 0, logger); err == nil {
		t.Error("New() should reject an empty log path")
	}
}

func TestStart_FailsWithoutSchema(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	defer st.Close()

	path := filepath.Join(t.TempDir(), "history.log")
	if err := os.WriteFile(path, []byte(firstEntry), 0o644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}

	src, _ := history.NewSource("apt")
	sync := history.NewSync(st, src, swid.NewNamer("example.com", "Example", "debian_9.0-x86_64"), logger)
	w, err := New(sync, path, 0, logger)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := w.Start(); err == nil {
		w.Stop()
		t.Fatal("Start() should fail when the database is not initialized")
	}
}

func TestStart_RunsInitialSync(t *testing.T) {
	w, st, _ := newTestWatcher(t, time.Hour)

	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer w.Stop()

	// Baseline plus the entry already in the log.
	n, err := st.CountTransactions()
	if err != nil {
		t.Fatalf("CountTransactions() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("transactions after Start() = %d, want 2", n)
	}
}

func TestWatcher_SyncsOnLogWrite(t *testing.T) {
	// A long fallback interval isolates the file-event path.
	w, st, path := newTestWatcher(t, time.Hour)

	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer w.Stop()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("failed to reopen log: %v", err)
	}
	if _, err := f.WriteString(secondEntry); err != nil {
		t.Fatalf("failed to append to log: %v", err)
	}
	f.Close()

	// Debounce delay plus margin.
	waitForTransactions(t, st, 3, 10*time.Second)
}

func TestWatcher_FallbackTickerSyncs(t *testing.T) {
	w, st, path := newTestWatcher(t, 100*time.Millisecond)

	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer w.Stop()

	// Replace the file wholesale, as log rotation would; the ticker
	// picks it up even if the directory watch misses the swap.
	if err := os.WriteFile(path, []byte(firstEntry+secondEntry), 0o644); err != nil {
		t.Fatalf("failed to rewrite log: %v", err)
	}

	waitForTransactions(t, st, 3, 10*time.Second)
}

func TestStop_RunsFinalSync(t *testing.T) {
	w, st, path := newTestWatcher(t, time.Hour)

	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("failed to reopen log: %v", err)
	}
	if _, err := f.WriteString(secondEntry); err != nil {
		t.Fatalf("failed to append to log: %v", err)
	}
	f.Close()

	// Stop without waiting out the debounce; the final scan catches
	// the appended entry.
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	n, err := st.CountTransactions()
	if err != nil {
		t.Fatalf("CountTransactions() failed: %v", err)
	}
	if n != 3 {
		t.Errorf("transactions after Stop() = %d, want 3", n)
	}
}
