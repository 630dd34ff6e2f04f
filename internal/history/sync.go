package history

import (
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/blackwell-systems/swinv/internal/store"
	"github.com/blackwell-systems/swinv/internal/swid"
)

// Entry markers of apt-style history logs.
const (
	startMarker = "Start-Date"
	endMarker   = "End-Date"
)

// Stats summarizes one synchronization run.
type Stats struct {
	Transactions int // transactions committed by this run
	Skipped      int // start markers at or before the cursor
	Installs     int
	Upgrades     int
	Removes      int
	Merged       int // package events replayed into the inventory
	LastID       int64
	LastTime     string
}

// Sync drives synchronization runs: scan the history log, commit newly
// discovered transactions and reconcile the inventory. One Sync may be
// reused across runs; it holds no cross-run scan state, the cursor is
// re-read from the store every run.
type Sync struct {
	store  *store.Store
	source Source
	namer  *swid.Namer
	log    logrus.FieldLogger
}

// NewSync creates a synchronizer over the given store and log dialect.
func NewSync(st *store.Store, source Source, namer *swid.Namer, log logrus.FieldLogger) *Sync {
	return &Sync{store: st, source: source, namer: namer, log: log}
}

// Run scans the log at path and commits at most count new transactions
// (0 means unlimited). Both the end of the log and an exhausted count
// budget end the run gracefully; the inventory is reconciled in either
// case. On error the entry being built is rolled back and the cursor
// stays on the last committed transaction.
func (s *Sync) Run(path string, count int) (*Stats, error) {
	last, err := s.store.GetLastEvent()
	if err != nil {
		return nil, err
	}

	reader, err := NewReader(path)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"log":    path,
		"cursor": last.ID,
		"since":  last.Timestamp,
	}).Debug("starting history scan")

	r := &run{
		sync:   s,
		epoch:  last.Epoch,
		budget: count,
		cursor: last.Timestamp,
		lastID: last.ID,
	}
	if err := r.scan(reader); err != nil {
		return nil, err
	}

	merged, err := Merge(s.store, s.namer, s.log)
	if err != nil {
		return nil, err
	}
	r.stats.Merged = merged
	r.stats.LastID = r.lastID
	r.stats.LastTime = r.cursor

	return &r.stats, nil
}

// run holds the mutable state of one scan pass.
type run struct {
	sync   *Sync
	epoch  uint32
	budget int

	cursor string // timestamp of the last committed transaction
	lastID int64

	tx       *sql.Tx // open store transaction for the entry being built
	eid      int64   // transaction id assigned inside tx
	entryTS  string
	skipping bool
	pending  entryCounts

	stats Stats
}

type entryCounts struct {
	installs int
	upgrades int
	removes  int
}

func (r *run) scan(reader *Reader) error {
	lineno := 0
	for {
		line, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return r.abort(err)
		}
		lineno++
		if line == "" {
			continue
		}

		keyword, rest, ok := strings.Cut(line, ":")
		if !ok {
			return r.abort(fmt.Errorf("line %d: %w: %q", lineno, ErrMalformedLine, clip(line)))
		}
		rest = strings.TrimSpace(rest)

		switch keyword {
		case startMarker:
			if err := r.startEntry(rest); err != nil {
				return r.abort(fmt.Errorf("line %d: %w", lineno, err))
			}
			if r.done() {
				return nil
			}
		case endMarker:
			if err := r.finishEntry(); err != nil {
				return r.abort(err)
			}
			if r.done() {
				return nil
			}
		default:
			op, known := r.sync.source.Operation(keyword)
			if !known {
				continue // Commandline:, Requested-By:, Error:, ...
			}
			if err := r.addPackages(rest, op); err != nil {
				return r.abort(fmt.Errorf("line %d: %w", lineno, err))
			}
		}
	}

	// A trailing entry without an end marker is still being written by
	// the package manager; roll it back and read it complete next run.
	if r.tx != nil {
		r.sync.log.WithField("timestamp", r.entryTS).Debug("incomplete entry at end of log, deferring")
		tx := r.tx
		r.tx = nil
		r.pending = entryCounts{}
		if err := tx.Rollback(); err != nil {
			return fmt.Errorf("failed to roll back incomplete transaction: %w", err)
		}
	}

	return nil
}

// startEntry handles a start marker: it closes a dangling previous
// entry, then decides between skipping and accumulating based on the
// cursor comparison.
func (r *run) startEntry(rest string) error {
	// An entry without an end marker commits at the next header.
	if r.tx != nil {
		if err := r.commitEntry(); err != nil {
			return err
		}
	}
	if r.done() {
		return nil
	}

	r.skipping = false
	ts, err := r.sync.source.ExtractTimestamp(rest)
	if err != nil {
		return err
	}

	// Resume rule: only entries strictly newer than the cursor become
	// transactions. Everything else was processed by an earlier run.
	if ts <= r.cursor {
		r.skipping = true
		r.stats.Skipped++
		return nil
	}

	tx, err := r.sync.store.Begin()
	if err != nil {
		return err
	}
	eid, err := r.sync.store.AddEvent(tx, ts, r.epoch)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	r.tx, r.eid, r.entryTS = tx, eid, ts
	return nil
}

// finishEntry handles an end marker, the per-entry checkpoint.
func (r *run) finishEntry() error {
	if r.skipping {
		r.skipping = false
		return nil
	}
	if r.tx == nil {
		// End marker without an open entry: the head of the log was cut
		// by rotation. Nothing to commit.
		return nil
	}
	return r.commitEntry()
}

// addPackages extracts the events of one operation line and records
// them under the open entry.
func (r *run) addPackages(rest, operation string) error {
	if r.skipping || r.tx == nil {
		return nil
	}

	events, err := r.sync.source.ExtractPackages(rest, operation)
	if err != nil {
		return err
	}

	for _, ev := range events {
		if err := r.sync.store.AddPackageEvent(r.tx, r.eid, ev.Operation, ev.Name, ev.Version); err != nil {
			return err
		}
		switch ev.Operation {
		case store.OpInstall:
			r.pending.installs++
		case store.OpUpgrade:
			r.pending.upgrades++
		case store.OpRemove:
			r.pending.removes++
		}
	}

	return nil
}

// commitEntry commits the open entry. The cursor advances only here,
// transaction by transaction, never at run end.
func (r *run) commitEntry() error {
	if err := r.tx.Commit(); err != nil {
		r.tx = nil
		r.pending = entryCounts{}
		return fmt.Errorf("failed to commit transaction %d: %w", r.eid, err)
	}

	r.sync.log.WithFields(logrus.Fields{
		"id":        r.eid,
		"timestamp": r.entryTS,
		"installs":  r.pending.installs,
		"upgrades":  r.pending.upgrades,
		"removes":   r.pending.removes,
	}).Debug("committed transaction")

	r.cursor = r.entryTS
	r.lastID = r.eid
	r.stats.Transactions++
	r.stats.Installs += r.pending.installs
	r.stats.Upgrades += r.pending.upgrades
	r.stats.Removes += r.pending.removes
	r.pending = entryCounts{}
	r.tx = nil

	return nil
}

// done reports whether the configured transaction budget is exhausted.
func (r *run) done() bool {
	return r.budget > 0 && r.stats.Transactions >= r.budget
}

// abort rolls back an open entry so the cursor stays on the last
// committed transaction, then passes err through.
func (r *run) abort(err error) error {
	if r.tx != nil {
		if rbErr := r.tx.Rollback(); rbErr != nil {
			r.sync.log.WithError(rbErr).Warn("rollback failed during abort")
		}
		r.tx = nil
		r.pending = entryCounts{}
	}
	return err
}
