package history

import "errors"

// Sentinel parse errors. Each one aborts the run; transactions already
// committed earlier in the same run stay committed.
var (
	// ErrMalformedLine marks a non-blank line without the keyword
	// delimiter. A missing delimiter makes the remaining transaction
	// boundaries ambiguous, so the scan cannot continue.
	ErrMalformedLine = errors.New("malformed history line")

	// ErrBadTimestamp marks a start marker whose remainder does not
	// parse into the normalized timestamp form.
	ErrBadTimestamp = errors.New("invalid timestamp")

	// ErrBadPayload marks an operation line whose package list does not
	// match the expected grammar.
	ErrBadPayload = errors.New("invalid package list")
)
