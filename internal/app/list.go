package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swinv/internal/output"
)

var (
	listFormat    string
	listInstalled bool

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List the software identities in the inventory",
		Long: `List every software identity the inventory knows about.

Identities that were removed stay in the listing with a removed status;
the assessment service needs to know about software that was present,
not only software that still is. Use --installed to restrict the
listing to identities currently on the endpoint.

The default CSV format prints one identity per line as
name,package,version,installed and is meant for piping.`,
		Example: `  # All identities as CSV
  swinv list

  # Installed identities only
  swinv list --installed

  # Human-readable table
  swinv list --format table`,
		RunE: runList,
	}
)

func init() {
	listCmd.Flags().StringVar(&listFormat, "format", "csv", "output format: csv or table")
	listCmd.Flags().BoolVar(&listInstalled, "installed", false, "list only identities currently installed")
	RootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	// Surface a fresh database as "run init" instead of an empty listing.
	if _, err := db.GetEndpoint(); err != nil {
		return err
	}

	entries, err := db.ListInventory(listInstalled)
	if err != nil {
		return fmt.Errorf("failed to list inventory: %w", err)
	}

	switch listFormat {
	case "csv":
		fmt.Print(output.RenderInventoryCSV(entries))
	case "table":
		fmt.Print(output.RenderInventoryTable(entries))
		total, installed, err := db.CountInventory()
		if err != nil {
			return err
		}
		fmt.Printf("\n%s\n", output.RenderInventorySummary(total, installed))
	default:
		return fmt.Errorf("unknown format %q (use csv or table)", listFormat)
	}

	return nil
}
