// Package output provides terminal output utilities for swinv.
//
// This package includes:
//   - Inventory rendering as CSV lines or an aligned table
//   - A spinner for indeterminate operations
//   - Human-readable formatting for sizes and dates
//
// Rendering functions use ASCII characters and ANSI color codes for
// terminal output. Color is suppressed when stdout is not a TTY or
// NO_COLOR is set.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/swinv/internal/store"
)

// ANSI color codes for install-state display
const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorGray  = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderInventoryCSV renders inventory entries one per line as
// name,package,version,installed_flag with the flag as 1 or 0.
func RenderInventoryCSV(entries []*store.InventoryEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		flag := "0"
		if e.Installed {
			flag = "1"
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s\n", e.Name, e.Package, e.Version, flag))
	}
	return sb.String()
}

// RenderInventoryTable renders inventory entries as an aligned table.
func RenderInventoryTable(entries []*store.InventoryEntry) string {
	if len(entries) == 0 {
		return "No software identities found.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-32s %-24s %s\n", "Package", "Version", "Status"))
	sb.WriteString(strings.Repeat("─", 68))
	sb.WriteString("\n")

	for _, e := range entries {
		status := colorize(colorGray, "removed")
		if e.Installed {
			status = colorize(colorGreen, "installed")
		}
		sb.WriteString(fmt.Sprintf("%-32s %-24s %s\n",
			truncate(e.Package, 32),
			truncate(e.Version, 24),
			status))
	}

	return sb.String()
}

// RenderInventorySummary renders the totals line printed after a list.
func RenderInventorySummary(total, installed int) string {
	return fmt.Sprintf("%d software identities (%d installed, %d removed)",
		total, installed, total-installed)
}

// FormatSize converts bytes to human-readable size (GB, MB, KB).
func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.0f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.0f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func FormatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	case diff < 30*24*time.Hour:
		weeks := int(diff.Hours() / 24 / 7)
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	case diff < 365*24*time.Hour:
		months := int(diff.Hours() / 24 / 30)
		if months == 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	default:
		years := int(diff.Hours() / 24 / 365)
		if years == 1 {
			return "1 year ago"
		}
		return fmt.Sprintf("%d years ago", years)
	}
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
