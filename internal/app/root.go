package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swinv/internal/config"
)

var (
	flagConfig   string
	flagDB       string
	flagLogLevel string
	flagQuiet    bool

	// cfg and appLog are populated by the persistent pre-run before
	// any command body executes.
	cfg    *config.Config
	appLog *logrus.Logger

	// RootCmd is the root command for swinv. Running it without a
	// subcommand performs an extract.
	RootCmd = &cobra.Command{
		Use:   "swinv",
		Short: "Software inventory collector for remote attestation",
		Long: `swinv derives the endpoint's software inventory from the package
manager's history log and keeps it in a local SQLite database, cursor
included, so repeated runs only process what apt has appended since.
The inventory is expressed as ISO 19770-2 software identifiers that a
remote assessment service can verify against reference measurements.

Getting started:
  1. swinv init              # create the database, seed from dpkg
  2. swinv                   # extract new history entries (default command)
  3. swinv list              # dump the inventory
  4. swinv watch --daemon    # keep the inventory current automatically

Features:
  • Incremental, resumable history extraction (crash-safe cursor)
  • Deduplicated inventory of software identities, removals included
  • Baseline seeding from the live dpkg database
  • REST reporting to an assessment service, tag delivery included
  • Log watching daemon with rotation-safe file notifications`,
		Example: `  # Extract new history entries into the inventory
  swinv

  # Process at most 10 transactions in this run
  swinv --count 10

  # Dump the inventory as CSV lines
  swinv list

  # Check collector state
  swinv status`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadRuntime,
		RunE:              runExtract,
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: $XDG_CONFIG_HOME/swinv/config.yml, then /etc/swinv/config.yml)")
	RootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database URI or path (default: from config)")
	RootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (default: from config)")
	RootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "suppress progress output and non-error logs")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

// loadRuntime loads the configuration file and prepares the logger.
// It runs before every command.
func loadRuntime(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(flagConfig)
	if err != nil {
		return err
	}

	levelName := cfg.LogLevel
	if flagLogLevel != "" {
		levelName = flagLogLevel
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("invalid log level %q", levelName)
	}
	if flagQuiet && level > logrus.ErrorLevel {
		level = logrus.ErrorLevel
	}

	appLog = logrus.New()
	appLog.SetOutput(os.Stderr)
	appLog.SetLevel(level)

	return nil
}

// databaseURI returns the database location, flag over config.
func databaseURI() string {
	if flagDB != "" {
		return flagDB
	}
	return cfg.Database
}

// stateDir returns the directory for the PID file, daemon log and the
// default database, created on demand.
func stateDir() (string, error) {
	if os.Geteuid() == 0 {
		dir := "/var/lib/swinv"
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create state directory: %w", err)
		}
		return dir, nil
	}

	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		base = filepath.Join(home, ".local", "state")
	}
	dir := filepath.Join(base, "swinv")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}
	return dir, nil
}

// getDefaultPIDFile returns the default PID file path.
func getDefaultPIDFile() (string, error) {
	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.pid"), nil
}

// getDefaultLogFile returns the default daemon log file path.
func getDefaultLogFile() (string, error) {
	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.log"), nil
}
