// Package history implements incremental synchronization of a
// package-manager history log into the software inventory.
//
// A run scans the log from the top, skips entries at or before the
// stored cursor, commits newer entries transaction by transaction and
// finally folds all recorded package events into the inventory table.
// Because the cursor advances per committed transaction, an interrupted
// run resumes from its last commit instead of reprocessing the log.
package history
