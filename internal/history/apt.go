package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/blackwell-systems/swinv/internal/store"
)

// aptSource parses /var/log/apt/history.log entries:
//
//	Start-Date: 2017-07-05  15:24:37
//	Commandline: apt install cowsay
//	Install: cowsay:amd64 (3.03+dfsg2-3), cowsay-off:amd64 (3.03+dfsg2-3, automatic)
//	Upgrade: openssl:amd64 (1.1.0e-1, 1.1.0f-3)
//	Remove: fortune-mod:amd64 (1:1.99.1-7)
//	End-Date: 2017-07-05  15:24:38
//
// Reinstall and Downgrade lines do not change the set of installed
// identities tracked here and fall through as unknown keywords.
type aptSource struct{}

func (aptSource) Name() string {
	return "apt"
}

func (aptSource) DefaultLogPath() string {
	return "/var/log/apt/history.log"
}

// ExtractTimestamp accepts apt's "2017-07-05  15:24:37" remainder (the
// double space varies across apt versions) and returns the fixed-width
// form "2017-07-05T15:24:37Z". Log timestamps carry no zone and are
// taken verbatim, which keeps string ordering equal to log ordering.
func (aptSource) ExtractTimestamp(rest string) (string, error) {
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return "", fmt.Errorf("%w: %q", ErrBadTimestamp, rest)
	}

	t, err := time.Parse("2006-01-02 15:04:05", fields[0]+" "+fields[1])
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrBadTimestamp, rest)
	}

	return t.Format(time.RFC3339), nil
}

func (aptSource) Operation(keyword string) (string, bool) {
	switch keyword {
	case "Install":
		return store.OpInstall, true
	case "Upgrade":
		return store.OpUpgrade, true
	case "Remove":
		return store.OpRemove, true
	case "Purge":
		// Purge differs from Remove only in configuration cleanup.
		return store.OpRemove, true
	}
	return "", false
}

// ExtractPackages parses "name:arch (versions), name:arch (versions)"
// groups. Install groups may carry a trailing "automatic" marker;
// Upgrade groups list the old and the new version, of which the new one
// becomes the event version.
func (aptSource) ExtractPackages(rest, operation string) ([]Event, error) {
	var events []Event

	s := rest
	for s != "" {
		open := strings.Index(s, " (")
		if open < 0 {
			return nil, fmt.Errorf("%w: missing version group in %q", ErrBadPayload, clip(s))
		}
		name := s[:open]
		if i := strings.IndexByte(name, ':'); i >= 0 {
			name = name[:i] // drop the architecture qualifier
		}
		if name == "" {
			return nil, fmt.Errorf("%w: empty package name in %q", ErrBadPayload, clip(s))
		}

		end := strings.IndexByte(s[open:], ')')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated version group in %q", ErrBadPayload, clip(s))
		}
		end += open

		version, err := pickVersion(s[open+2:end], operation)
		if err != nil {
			return nil, err
		}

		events = append(events, Event{Operation: operation, Name: name, Version: version})

		s = strings.TrimLeft(strings.TrimPrefix(s[end+1:], ","), " ")
	}

	return events, nil
}

// pickVersion selects the event version from one parenthesized list.
func pickVersion(list, operation string) (string, error) {
	parts := strings.Split(list, ", ")
	if n := len(parts); n > 1 && parts[n-1] == "automatic" {
		parts = parts[:n-1]
	}

	switch operation {
	case store.OpUpgrade:
		if len(parts) != 2 || parts[1] == "" {
			return "", fmt.Errorf("%w: upgrade needs old and new version, got %q", ErrBadPayload, list)
		}
		return parts[1], nil
	default:
		if len(parts) != 1 || parts[0] == "" {
			return "", fmt.Errorf("%w: expected one version, got %q", ErrBadPayload, list)
		}
		return parts[0], nil
	}
}

// clip shortens long operation remainders in error messages.
func clip(s string) string {
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
