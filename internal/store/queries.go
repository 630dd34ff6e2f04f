package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Cursor operations

// GetLastEvent returns the most recent committed transaction, which is
// the cursor the next synchronization run resumes from. A database
// without schema or without a baseline transaction yields
// ErrNotInitialized.
func (s *Store) GetLastEvent() (*LastEvent, error) {
	query := `
		SELECT id, timestamp, epoch
		FROM transactions
		ORDER BY id DESC
		LIMIT 1
	`

	var last LastEvent
	err := s.db.QueryRow(query).Scan(&last.ID, &last.Timestamp, &last.Epoch)
	if err == sql.ErrNoRows {
		return nil, ErrNotInitialized
	}
	if err != nil {
		if notInitialized(err) {
			return nil, fmt.Errorf("%w: %v", ErrNotInitialized, err)
		}
		return nil, fmt.Errorf("failed to get last event: %w", err)
	}

	return &last, nil
}

// AddEvent inserts a transaction row within tx and returns its assigned
// identifier. The row commits or rolls back together with the package
// events added under the same tx.
func (s *Store) AddEvent(tx *sql.Tx, timestamp string, epoch uint32) (int64, error) {
	result, err := tx.Exec(
		`INSERT INTO transactions (timestamp, epoch) VALUES (?, ?)`,
		timestamp, epoch,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get transaction ID: %w", err)
	}

	return id, nil
}

// Package event operations

// AddPackageEvent records one package operation under the transaction
// identified by transactionID, within the caller's tx.
func (s *Store) AddPackageEvent(tx *sql.Tx, transactionID int64, operation, name, version string) error {
	_, err := tx.Exec(
		`INSERT INTO package_events (transaction_id, operation, name, version) VALUES (?, ?, ?, ?)`,
		transactionID, operation, name, version,
	)
	if err != nil {
		return fmt.Errorf("failed to insert package event for %s: %w", name, err)
	}

	return nil
}

// ListPackageEvents returns every recorded package event in commit
// order (transaction, then insertion). The merger replays this sequence.
func (s *Store) ListPackageEvents() ([]*PackageEvent, error) {
	query := `
		SELECT id, transaction_id, operation, name, version
		FROM package_events
		ORDER BY transaction_id, id
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list package events: %w", err)
	}
	defer rows.Close()

	var events []*PackageEvent
	for rows.Next() {
		var ev PackageEvent
		if err := rows.Scan(&ev.ID, &ev.TransactionID, &ev.Operation, &ev.Name, &ev.Version); err != nil {
			return nil, fmt.Errorf("failed to scan package event row: %w", err)
		}
		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating package events: %w", err)
	}

	return events, nil
}

// Inventory operations

// UpsertInventory records the installed state for one software identity,
// inserting the row when the identity is first seen.
func (s *Store) UpsertInventory(tx *sql.Tx, name, pkg, version string, installed bool) error {
	query := `
		INSERT INTO inventory (name, package, version, installed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name, package, version) DO UPDATE SET installed = excluded.installed
	`

	_, err := tx.Exec(query, name, pkg, version, installed)
	if err != nil {
		return fmt.Errorf("failed to upsert inventory entry %s: %w", name, err)
	}

	return nil
}

// GetInventoryByName returns the inventory entry for one full software
// identifier, or ErrNotFound.
func (s *Store) GetInventoryByName(name string) (*InventoryEntry, error) {
	query := `
		SELECT id, name, package, version, installed
		FROM inventory
		WHERE name = ?
	`

	var e InventoryEntry
	err := s.db.QueryRow(query, name).Scan(&e.ID, &e.Name, &e.Package, &e.Version, &e.Installed)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("inventory entry %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory entry %s: %w", name, err)
	}

	return &e, nil
}

// ListInventory returns inventory entries ordered by name. With
// installedOnly set, entries whose identity has been removed are
// filtered out.
func (s *Store) ListInventory(installedOnly bool) ([]*InventoryEntry, error) {
	query := `
		SELECT id, name, package, version, installed
		FROM inventory
	`
	if installedOnly {
		query += ` WHERE installed = 1`
	}
	query += ` ORDER BY name`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer rows.Close()

	var entries []*InventoryEntry
	for rows.Next() {
		var e InventoryEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Package, &e.Version, &e.Installed); err != nil {
			return nil, fmt.Errorf("failed to scan inventory row: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory: %w", err)
	}

	return entries, nil
}

// Counters

// CountInventory returns the number of known software identities and how
// many of them are currently installed.
func (s *Store) CountInventory() (total, installed int, err error) {
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM inventory`).Scan(&total); err != nil {
		return 0, 0, fmt.Errorf("failed to count inventory: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM inventory WHERE installed = 1`).Scan(&installed); err != nil {
		return 0, 0, fmt.Errorf("failed to count installed inventory: %w", err)
	}
	return total, installed, nil
}

// CountTransactions returns the number of committed transactions.
func (s *Store) CountTransactions() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// CountPackageEvents returns the number of recorded package events.
func (s *Store) CountPackageEvents() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM package_events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count package events: %w", err)
	}
	return count, nil
}

// Endpoint operations

// SetEndpoint records this host's endpoint identity. Written once at
// init; a forced re-init replaces it.
func (s *Store) SetEndpoint(identifier, regid string, createdAt time.Time) error {
	query := `
		INSERT OR REPLACE INTO endpoint (id, identifier, regid, created_at)
		VALUES (1, ?, ?, ?)
	`

	_, err := s.db.Exec(query, identifier, regid, createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to set endpoint identity: %w", err)
	}

	return nil
}

// GetEndpoint returns the endpoint identity recorded at init.
func (s *Store) GetEndpoint() (*Endpoint, error) {
	query := `
		SELECT identifier, regid, created_at
		FROM endpoint
		WHERE id = 1
	`

	var ep Endpoint
	var createdAt string
	err := s.db.QueryRow(query).Scan(&ep.Identifier, &ep.RegID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotInitialized
	}
	if err != nil {
		if notInitialized(err) {
			return nil, fmt.Errorf("%w: %v", ErrNotInitialized, err)
		}
		return nil, fmt.Errorf("failed to get endpoint identity: %w", err)
	}

	ep.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoint created_at: %w", err)
	}

	return &ep, nil
}
