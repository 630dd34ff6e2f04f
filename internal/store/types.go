package store

import "time"

// Operation values recorded for package events. Purge lines in the
// source log are normalized to OpRemove before they reach the store.
const (
	OpInstall = "install"
	OpUpgrade = "upgrade"
	OpRemove  = "remove"
)

// LastEvent is the resume cursor: the most recent committed transaction.
type LastEvent struct {
	ID        int64
	Timestamp string // normalized UTC form, e.g. 2017-07-05T17:24:37Z
	Epoch     uint32
}

// PackageEvent is one operation on a versioned package within a
// transaction.
type PackageEvent struct {
	ID            int64
	TransactionID int64
	Operation     string
	Name          string
	Version       string
}

// InventoryEntry is the canonical record of one software identity.
// Absence is represented by Installed = false, never by deletion, so
// historical identities survive for attestation replay.
type InventoryEntry struct {
	ID        int64
	Name      string // full software identifier
	Package   string // bare package name
	Version   string
	Installed bool
}

// Endpoint identifies this host to the assessment service.
type Endpoint struct {
	Identifier string
	RegID      string
	CreatedAt  time.Time
}
