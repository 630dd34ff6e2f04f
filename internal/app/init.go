package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swinv/internal/dpkg"
	"github.com/blackwell-systems/swinv/internal/history"
	"github.com/blackwell-systems/swinv/internal/output"
	"github.com/blackwell-systems/swinv/internal/store"
)

var (
	initNoSeed bool
	initForce  bool

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create the inventory database for this endpoint",
		Long: `Create the local inventory database and this endpoint's identity.

init assigns the endpoint a random identifier and epoch, then records
the baseline transaction the extraction cursor resumes from. By default
the baseline is seeded with every package currently installed according
to dpkg, so the inventory is complete even when older history logs have
been rotated away.

With --no-seed the baseline stays empty and the next run replays the
retained history log from its first entry. Use it when the retained log
reaches back to the installation of the endpoint.

The epoch ties reported measurements to one database lifetime. A forced
re-init starts a new epoch, telling the assessment service to discard
state kept under the old one.`,
		Example: `  # Initialize and seed from the dpkg database
  swinv init

  # Initialize for a replay of the retained history log
  swinv init --no-seed

  # Start over under a new epoch
  swinv init --force`,
		RunE: runInit,
	}
)

func init() {
	initCmd.Flags().BoolVar(&initNoSeed, "no-seed", false, "skip the dpkg snapshot and replay the retained history log instead")
	initCmd.Flags().BoolVar(&initForce, "force", false, "drop and rebuild an existing database under a new epoch")
	RootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	uri := databaseURI()
	if err := ensureDatabaseDir(uri); err != nil {
		return err
	}

	db, err := store.Open(uri)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	// Refuse to clobber an initialized database unless forced.
	if _, err := db.GetEndpoint(); err == nil {
		if !initForce {
			return fmt.Errorf("database already initialized (use --force to rebuild under a new epoch)")
		}
		if err := db.DropSchema(); err != nil {
			return err
		}
	} else if !errors.Is(err, store.ErrNotInitialized) {
		return err
	}

	if err := db.CreateSchema(); err != nil {
		return err
	}

	identifier := uuid.NewString()
	epoch := uuid.New().ID()
	now := time.Now().UTC()

	if err := db.SetEndpoint(identifier, cfg.RegID, now); err != nil {
		return err
	}

	// The baseline transaction anchors the cursor. A seeded init stamps
	// it with the present, so extraction starts at entries appended from
	// now on. Without seeding the stamp is empty, which orders before
	// every log timestamp and makes the next run replay the whole
	// retained log.
	baselineTS := now.Format(time.RFC3339)
	if initNoSeed {
		baselineTS = ""
	}

	isTTY := isatty.IsTerminal(os.Stdout.Fd())
	var spinner *output.Spinner
	if !flagQuiet && !initNoSeed {
		if isTTY {
			spinner = output.NewSpinner("Snapshotting installed packages...")
			spinner.Start()
		} else {
			fmt.Println("Snapshotting installed packages...")
		}
	}

	seeded, err := seedBaseline(db, baselineTS, epoch)
	if err != nil {
		if spinner != nil {
			spinner.Stop()
		}
		return err
	}

	namer, err := buildNamer()
	if err != nil {
		if spinner != nil {
			spinner.Stop()
		}
		return err
	}
	if _, err := history.Merge(db, namer, appLog); err != nil {
		if spinner != nil {
			spinner.Stop()
		}
		return err
	}

	if flagQuiet {
		return nil
	}

	var msg string
	if initNoSeed {
		msg = "✓ Database initialized (next run replays the retained history log)"
	} else {
		msg = fmt.Sprintf("✓ Database initialized (%d packages seeded from dpkg)", seeded)
	}
	if spinner != nil {
		spinner.StopWithMessage(msg)
	} else {
		fmt.Println(msg)
	}

	fmt.Printf("  Endpoint: %s\n", identifier)
	fmt.Printf("  Epoch: 0x%08x\n", epoch)

	fmt.Println("\n⚠ NEXT STEP: Run 'swinv' to extract history entries,")
	fmt.Println("   or 'swinv watch --daemon' to keep the inventory current.")

	return nil
}

// seedBaseline records the baseline transaction, together with an
// install event per currently installed package unless seeding is off.
// Everything commits atomically; a failed dpkg snapshot leaves the
// database without a baseline.
func seedBaseline(db *store.Store, timestamp string, epoch uint32) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}

	id, err := db.AddEvent(tx, timestamp, epoch)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, err
	}

	seeded := 0
	if !initNoSeed {
		packages, err := dpkg.ListInstalled()
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return 0, fmt.Errorf("failed to snapshot installed packages (use --no-seed to skip): %w", err)
		}
		for _, p := range packages {
			if err := db.AddPackageEvent(tx, id, store.OpInstall, p.Name, p.Version); err != nil {
				tx.Rollback() //nolint:errcheck
				return 0, err
			}
		}
		seeded = len(packages)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit baseline transaction: %w", err)
	}
	return seeded, nil
}

// ensureDatabaseDir creates the parent directory of a filesystem-backed
// database. Unsupported schemes fall through to store.Open for the
// proper error.
func ensureDatabaseDir(uri string) error {
	path := uri
	if scheme, rest, ok := strings.Cut(uri, "://"); ok {
		if scheme != "sqlite" {
			return nil
		}
		path = rest
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return nil
}
