package history

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/blackwell-systems/swinv/internal/store"
	"github.com/blackwell-systems/swinv/internal/swid"
)

// Merge folds every recorded package event into the inventory table and
// returns the number of events replayed.
//
// Events replay in commit order and the fold is keyed by
// (name, package, version), so replaying already-merged history is a
// no-op. Replaying from the first event every run also repairs an
// inventory left behind by a run that committed transactions but was
// interrupted before merging.
//
// Install and Upgrade mark the identity installed, Remove marks it
// removed. An Upgrade does not remove the identity of the version it
// replaced: both version identities stay installed until the old one is
// removed explicitly.
func Merge(st *store.Store, namer *swid.Namer, log logrus.FieldLogger) (int, error) {
	events, err := st.ListPackageEvents()
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := st.Begin()
	if err != nil {
		return 0, err
	}

	for _, ev := range events {
		name := namer.Name(ev.Name, ev.Version)
		installed := ev.Operation != store.OpRemove
		if err := st.UpsertInventory(tx, name, ev.Name, ev.Version, installed); err != nil {
			tx.Rollback() //nolint:errcheck
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit inventory merge: %w", err)
	}

	log.WithField("events", len(events)).Debug("merged package events into inventory")
	return len(events), nil
}
