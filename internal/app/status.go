package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swinv/internal/output"
	"github.com/blackwell-systems/swinv/internal/store"
	"github.com/blackwell-systems/swinv/internal/watcher"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check collector state and inventory statistics",
	Long: `Display the collector's state for this endpoint.

Shows:
  • Database location and size
  • Endpoint identifier, registration id and epoch
  • Extraction cursor (last committed transaction)
  • Inventory and package event counters
  • History log location and last change
  • Watch daemon status and PID

This command helps verify that extraction keeps up with the log.`,
	Example: `  # Check collector state
  swinv status`,
	RunE: runStatus,
}

func init() {
	// Register with root command
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	uri := databaseURI()
	dbPath := strings.TrimPrefix(uri, "sqlite://")

	// Stat first: opening would create an empty database file.
	if dbPath != ":memory:" {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			fmt.Println("swinv is not set up — run 'swinv init' to get started.")
			return nil
		}
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ep, err := db.GetEndpoint()
	if errors.Is(err, store.ErrNotInitialized) {
		fmt.Println("swinv is not set up — run 'swinv init' to get started.")
		return nil
	}
	if err != nil {
		return err
	}

	last, err := db.GetLastEvent()
	if err != nil {
		return err
	}
	total, installed, err := db.CountInventory()
	if err != nil {
		return err
	}
	transactions, err := db.CountTransactions()
	if err != nil {
		return err
	}
	events, err := db.CountPackageEvents()
	if err != nil {
		return err
	}

	const label = "%-14s"

	fmt.Println()

	var dbSize int64
	if fi, err := os.Stat(dbPath); err == nil {
		dbSize = fi.Size()
	}
	fmt.Printf(label+"%s (%s)\n", "Database:", dbPath, output.FormatSize(dbSize))

	fmt.Printf(label+"%s (regid %s, created %s)\n", "Endpoint:",
		ep.Identifier, ep.RegID, output.FormatRelativeTime(ep.CreatedAt))
	fmt.Printf(label+"0x%08x\n", "Epoch:", last.Epoch)

	if last.Timestamp == "" {
		fmt.Printf(label+"transaction %d (full history replay pending)\n", "Cursor:", last.ID)
	} else {
		fmt.Printf(label+"transaction %d at %s\n", "Cursor:", last.ID, last.Timestamp)
	}

	fmt.Printf(label+"%s\n", "Inventory:", output.RenderInventorySummary(total, installed))
	fmt.Printf(label+"%s package events in %s transactions\n", "Events:",
		formatNumber(events), formatNumber(transactions))

	// History log line
	_, src, err := buildSync(db)
	if err == nil {
		logPath := resolveLog(src)
		if fi, err := os.Stat(logPath); err == nil {
			fmt.Printf(label+"%s (changed %s)\n", "History log:", logPath, output.FormatRelativeTime(fi.ModTime()))
		} else {
			fmt.Printf(label+"%s (missing)\n", "History log:", logPath)
		}
	}

	// Daemon line
	pidFile, err := getDefaultPIDFile()
	if err == nil {
		running, runErr := watcher.IsDaemonRunning(pidFile)
		if runErr == nil && running {
			pid := 0
			if data, err := os.ReadFile(pidFile); err == nil {
				pid, _ = strconv.Atoi(strings.TrimSpace(string(data)))
			}
			since := "unknown"
			if fi, err := os.Stat(pidFile); err == nil {
				since = output.FormatRelativeTime(fi.ModTime())
			}
			fmt.Printf(label+"running (since %s, PID %d)\n", "Daemon:", since, pid)
		} else {
			fmt.Printf(label+"stopped  (run 'swinv watch --daemon')\n", "Daemon:")
		}
	}

	fmt.Println()
	return nil
}

// formatNumber formats a number with thousands separators
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", formatNumber(n/1000), n%1000)
}
