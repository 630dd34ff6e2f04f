package app

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swinv/internal/output"
)

var (
	flagCount   int
	flagHistory string

	extractCmd = &cobra.Command{
		Use:   "extract",
		Short: "Extract new history log entries into the inventory",
		Long: `Extract package events from the history log and update the inventory.

Each history log entry becomes one database transaction: either all of
its package events are recorded or none are. The collector resumes
behind the last committed transaction, so entries already processed by
an earlier run are skipped and interrupted runs lose nothing.

Extract is the default command; running swinv without a subcommand
does the same thing.

The extract command should be run:
  • After installing or removing packages
  • Periodically from cron or a timer on endpoints without the daemon
  • With --count on endpoints where runs must stay short`,
		Example: `  # Extract everything new
  swinv extract

  # Process at most 10 transactions, resume later
  swinv extract --count 10

  # Read a copied log instead of the live one
  swinv extract --history /tmp/history.log`,
		RunE: runExtract,
	}
)

// addExtractFlags registers the extraction flags. They live on both the
// root command and the extract subcommand since extract is the default
// operation.
func addExtractFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&flagCount, "count", 0, "maximum transactions to process, 0 for unlimited (default: from config)")
	cmd.Flags().StringVar(&flagHistory, "history", "", "history log path (default: from config, then the dialect default)")
}

func init() {
	addExtractFlags(RootCmd)
	addExtractFlags(extractCmd)
	RootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	sync, src, err := buildSync(db)
	if err != nil {
		return err
	}
	logPath := resolveLog(src)

	count := cfg.Count
	if cmd.Flags().Changed("count") {
		count = flagCount
	}

	isTTY := isatty.IsTerminal(os.Stdout.Fd())
	var spinner *output.Spinner
	if !flagQuiet {
		if isTTY {
			spinner = output.NewSpinner("Scanning history log...")
			spinner.Start()
		} else {
			fmt.Println("Scanning history log...")
		}
	}

	stats, err := sync.Run(logPath, count)
	if err != nil {
		if spinner != nil {
			spinner.Stop()
		}
		return fmt.Errorf("extraction failed: %w", err)
	}

	if flagQuiet {
		return nil
	}

	if stats.Transactions == 0 {
		msg := fmt.Sprintf("✓ Inventory up to date (%d entries skipped)", stats.Skipped)
		if spinner != nil {
			spinner.StopWithMessage(msg)
		} else {
			fmt.Println(msg)
		}
		return nil
	}

	msg := fmt.Sprintf("✓ %d transactions processed (%d installs, %d upgrades, %d removes)",
		stats.Transactions, stats.Installs, stats.Upgrades, stats.Removes)
	if spinner != nil {
		spinner.StopWithMessage(msg)
	} else {
		fmt.Println(msg)
	}

	total, installed, err := db.CountInventory()
	if err != nil {
		return err
	}
	fmt.Printf("  Inventory: %s\n", output.RenderInventorySummary(total, installed))
	fmt.Printf("  Cursor: transaction %d at %s\n", stats.LastID, stats.LastTime)

	if count > 0 && stats.Transactions >= count {
		fmt.Printf("\n⚠ Stopped after %d transactions (--count). Run 'swinv' again to continue.\n", stats.Transactions)
	}

	return nil
}
