package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swinv/internal/output"
	"github.com/blackwell-systems/swinv/internal/watcher"
)

var (
	watchDaemon      bool
	watchDaemonChild bool
	watchPIDFile     string
	watchLogFile     string
	watchStop        bool
	watchInterval    time.Duration

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Keep the inventory current via history log notifications",
		Long: `Watch the history log and extract new entries as they appear.

The watcher subscribes to filesystem notifications on the log's
directory, so log rotation cannot detach it, and debounces bursts of
writes into one extraction run. A periodic fallback sync catches
anything notifications miss.

Watch modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as background process, logging to a file
  • Stop: Stop a running daemon

A final extraction runs on shutdown, so entries written while the
watcher is stopping are not lost.`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  swinv watch

  # Run as background daemon
  swinv watch --daemon

  # Stop running daemon
  swinv watch --stop

  # Sync at least every minute
  swinv watch --daemon --interval 1m`,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	watchCmd.Flags().StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: state dir watch.pid)")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "log file path (default: state dir watch.log)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop running daemon")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Minute, "fallback sync interval")
	watchCmd.Flags().StringVar(&flagHistory, "history", "", "history log path (default: from config, then the dialect default)")

	// Hide the internal daemon-child flag from help
	watchCmd.Flags().MarkHidden("daemon-child")

	RootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Get default paths if not specified
	if watchPIDFile == "" {
		defaultPID, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		watchPIDFile = defaultPID
	}

	if watchLogFile == "" {
		defaultLog, err := getDefaultLogFile()
		if err != nil {
			return fmt.Errorf("failed to get default log file path: %w", err)
		}
		watchLogFile = defaultLog
	}

	// Handle stop command
	if watchStop {
		return stopWatchDaemon()
	}

	// Handle daemon mode: the parent only validates and re-executes.
	if watchDaemon {
		return startWatchDaemon()
	}

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

	w, err := watcher.New(sync, logPath, watchInterval, appLog)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Handle daemon child process
	if watchDaemonChild {
		return w.RunDaemon(watchPIDFile)
	}

	// Run in foreground
	return runWatchForeground(w, logPath)
}

func stopWatchDaemon() error {
	// Check if daemon is running
	running, err := watcher.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running {
		fmt.Println("Daemon is not running")
		return nil
	}

	spinner := output.NewSpinner("Stopping daemon...")
	spinner.Start()
	if err := watcher.StopDaemon(watchPIDFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon stopped")

	return nil
}

func startWatchDaemon() error {
	// Check if already running
	running, err := watcher.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if running {
		return fmt.Errorf("daemon already running (PID file: %s)", watchPIDFile)
	}

	// Fail in this terminal, not in the daemon's log file, when the
	// database was never initialized.
	db, err := openStore()
	if err != nil {
		return err
	}
	if _, err := db.GetLastEvent(); err != nil {
		db.Close()
		return err
	}
	db.Close()

	spinner := output.NewSpinner("Starting daemon...")
	spinner.Start()
	if err := watcher.StartDaemon(watchPIDFile, watchLogFile, daemonChildArgs()...); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon started")

	fmt.Printf("\nInventory watch daemon started\n")
	fmt.Printf("  PID file: %s\n", watchPIDFile)
	fmt.Printf("  Log file: %s\n", watchLogFile)
	fmt.Printf("\nTo stop: swinv watch --stop\n")

	return nil
}

// daemonChildArgs rebuilds the command line for the daemon child so the
// child sees the same configuration the parent was invoked with.
func daemonChildArgs() []string {
	args := []string{"watch", "--daemon-child",
		"--pid-file", watchPIDFile,
		"--interval", watchInterval.String()}
	if flagConfig != "" {
		args = append(args, "--config", flagConfig)
	}
	if flagDB != "" {
		args = append(args, "--db", flagDB)
	}
	if flagLogLevel != "" {
		args = append(args, "--log-level", flagLogLevel)
	}
	if flagHistory != "" {
		args = append(args, "--history", flagHistory)
	}
	return args
}

func runWatchForeground(w *watcher.Watcher, logPath string) error {
	fmt.Printf("Watching %s (press Ctrl+C to stop)...\n", logPath)
	fmt.Println()

	spinner := output.NewSpinner("Running initial sync...")
	spinner.Start()

	// Start the watcher
	if err := w.Start(); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	spinner.StopWithMessage("✓ Watcher started")

	fmt.Println()
	fmt.Printf("New history entries are extracted as they appear; a fallback\n")
	fmt.Printf("sync runs every %s.\n", watchInterval)
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	// Wait for shutdown signal
	sig := <-sigCh
	fmt.Printf("\nReceived signal %v, shutting down...\n", sig)

	// Stop the watcher; Stop runs a final sync before returning.
	spinner = output.NewSpinner("Stopping watcher...")
	spinner.Start()
	if err := w.Stop(); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop watcher: %w", err)
	}
	spinner.StopWithMessage("✓ Watcher stopped")

	return nil
}
