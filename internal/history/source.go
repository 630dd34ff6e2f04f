package history

import "fmt"

// Event is one package operation parsed from an operation line, before
// it is bound to a transaction.
type Event struct {
	Operation string // store.OpInstall, store.OpUpgrade or store.OpRemove
	Name      string
	Version   string
}

// Source understands one package manager's history log dialect. The
// variant is chosen once at startup; the synchronizer itself stays
// format-agnostic.
type Source interface {
	// Name identifies the dialect in logs and status output.
	Name() string

	// DefaultLogPath is the location scanned when the configuration
	// does not override it.
	DefaultLogPath() string

	// ExtractTimestamp converts the remainder of a start marker into
	// the normalized form: UTC, fixed width, zero padded. The format is
	// an invariant, not a convenience: lexicographic comparison of two
	// normalized timestamps must equal chronological comparison,
	// because the resume decision is a plain string compare.
	ExtractTimestamp(rest string) (string, error)

	// Operation maps a line keyword to a store operation, reporting
	// false for keywords that do not record package changes.
	Operation(keyword string) (string, bool)

	// ExtractPackages parses the remainder of an operation line into
	// discrete events. Either the whole line parses or none of it is
	// used.
	ExtractPackages(rest, operation string) ([]Event, error)
}

// NewSource returns the dialect implementation for kind. "dpkg" is
// accepted as an alias for "apt" since the log is written by apt on
// dpkg systems.
func NewSource(kind string) (Source, error) {
	switch kind {
	case "apt", "dpkg":
		return aptSource{}, nil
	}
	return nil, fmt.Errorf("unsupported history source %q", kind)
}
