package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// sampleHistoryLog is a two-entry apt history fixture shared by the
// command tests.
const sampleHistoryLog = `Start-Date: 2017-07-05  15:24:37
Commandline: apt-get install cowsay
Install: cowsay:amd64 (3.03+dfsg2-3)
End-Date: 2017-07-05  15:24:38

Start-Date: 2017-07-05  16:17:01
Upgrade: openssl:amd64 (1.1.0e-1, 1.1.0f-3)
End-Date: 2017-07-05  16:17:10
`

// initCollector creates an initialized database and a history log
// fixture, returning their paths together with the pinned config.
func initCollector(t *testing.T) (cfgPath, dbPath, logPath string) {
	t.Helper()
	cfgPath = writeTestConfig(t)
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "swinv.db")
	logPath = filepath.Join(dir, "history.log")
	if err := os.WriteFile(logPath, []byte(sampleHistoryLog), 0644); err != nil {
		t.Fatalf("failed to write history log: %v", err)
	}
	if err := runCommand(t, "--config", cfgPath, "--db", dbPath, "init", "--no-seed"); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	return cfgPath, dbPath, logPath
}

func TestExtractCommand(t *testing.T) {
	// Test that extract command is properly configured
	if extractCmd.Use != "extract" {
		t.Errorf("expected Use to be 'extract', got '%s'", extractCmd.Use)
	}

	if extractCmd.Short == "" {
		t.Error("expected Short description to be set")
	}

	if extractCmd.Long == "" {
		t.Error("expected Long description to be set")
	}

	if extractCmd.Example == "" {
		t.Error("expected Example to be set")
	}

	if extractCmd.RunE == nil {
		t.Error("expected RunE to be set")
	}
}

func TestExtractCommandFlags(t *testing.T) {
	tests := []struct {
		name         string
		flagName     string
		defaultValue string
	}{
		{
			name:         "count flag",
			flagName:     "count",
			defaultValue: "0",
		},
		{
			name:         "history flag",
			flagName:     "history",
			defaultValue: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := extractCmd.Flags().Lookup(tt.flagName)
			if flag == nil {
				t.Errorf("expected flag '%s' to be registered", tt.flagName)
				return
			}

			if flag.Usage == "" {
				t.Errorf("expected flag '%s' to have usage text", tt.flagName)
			}

			if flag.DefValue != tt.defaultValue {
				t.Errorf("expected flag '%s' default to be '%s', got '%s'", tt.flagName, tt.defaultValue, flag.DefValue)
			}
		})
	}
}

func TestExtractCommandFlagParsing(t *testing.T) {
	resetCommandState()

	extractCmd.ParseFlags([]string{"--count", "10", "--history", "/tmp/history.log"})

	if flagCount != 10 {
		t.Errorf("expected count to be 10, got %d", flagCount)
	}
	if flagHistory != "/tmp/history.log" {
		t.Errorf("expected history to be '/tmp/history.log', got '%s'", flagHistory)
	}
}

func TestExtractCommandRegistration(t *testing.T) {
	// Verify extract command is registered with root
	found := false
	for _, cmd := range RootCmd.Commands() {
		if cmd.Use == "extract" {
			found = true
			break
		}
	}

	if !found {
		t.Error("extract command not registered with root command")
	}
}

func TestExtract_ProcessesHistoryLog(t *testing.T) {
	cfgPath, dbPath, logPath := initCollector(t)

	// Bare invocation: extract is the default command.
	if err := runCommand(t, "--config", cfgPath, "--db", dbPath, "--history", logPath); err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	db := openTestStore(t, dbPath)

	transactions, err := db.CountTransactions()
	if err != nil {
		t.Fatalf("CountTransactions() failed: %v", err)
	}
	if transactions != 3 {
		t.Errorf("CountTransactions() = %d, want 3 (baseline + 2 entries)", transactions)
	}

	last, err := db.GetLastEvent()
	if err != nil {
		t.Fatalf("GetLastEvent() failed: %v", err)
	}
	if last.Timestamp != "2017-07-05T16:17:01Z" {
		t.Errorf("cursor timestamp = %s, want 2017-07-05T16:17:01Z", last.Timestamp)
	}

	entries, err := db.ListInventory(true)
	if err != nil {
		t.Fatalf("ListInventory() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListInventory(true) returned %d entries, want 2", len(entries))
	}
	if entries[0].Name != "example.com__debian_9.0-x86_64-cowsay-3.03+dfsg2-3" {
		t.Errorf("first identity = %s", entries[0].Name)
	}
	if entries[1].Package != "openssl" || entries[1].Version != "1.1.0f-3" {
		t.Errorf("second identity = %s %s, want openssl 1.1.0f-3", entries[1].Package, entries[1].Version)
	}
}

func TestExtract_SecondRunIsIdempotent(t *testing.T) {
	cfgPath, dbPath, logPath := initCollector(t)

	for i := 0; i < 2; i++ {
		if err := runCommand(t, "--config", cfgPath, "--db", dbPath, "--history", logPath); err != nil {
			t.Fatalf("extract run %d failed: %v", i+1, err)
		}
	}

	db := openTestStore(t, dbPath)
	transactions, err := db.CountTransactions()
	if err != nil {
		t.Fatalf("CountTransactions() failed: %v", err)
	}
	if transactions != 3 {
		t.Errorf("CountTransactions() after re-run = %d, want 3", transactions)
	}
}

func TestExtract_CountLimitsTransactions(t *testing.T) {
	cfgPath, dbPath, logPath := initCollector(t)

	if err := runCommand(t, "--config", cfgPath, "--db", dbPath, "extract", "--count", "1", "--history", logPath); err != nil {
		t.Fatalf("extract --count 1 failed: %v", err)
	}

	db := openTestStore(t, dbPath)
	transactions, err := db.CountTransactions()
	if err != nil {
		t.Fatalf("CountTransactions() failed: %v", err)
	}
	if transactions != 2 {
		t.Errorf("CountTransactions() = %d, want 2 (baseline + 1 entry)", transactions)
	}

	// The next run picks up where the budgeted one stopped.
	if err := runCommand(t, "--config", cfgPath, "--db", dbPath, "--history", logPath); err != nil {
		t.Fatalf("follow-up extract failed: %v", err)
	}
	transactions, err = db.CountTransactions()
	if err != nil {
		t.Fatalf("CountTransactions() failed: %v", err)
	}
	if transactions != 3 {
		t.Errorf("CountTransactions() = %d, want 3", transactions)
	}
}

func TestExtract_RequiresInit(t *testing.T) {
	cfgPath := writeTestConfig(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "swinv.db")
	logPath := filepath.Join(dir, "history.log")
	if err := os.WriteFile(logPath, []byte(sampleHistoryLog), 0644); err != nil {
		t.Fatalf("failed to write history log: %v", err)
	}

	err := runCommand(t, "--config", cfgPath, "--db", dbPath, "--history", logPath)
	if err == nil {
		t.Fatal("expected extract on an uninitialized database to fail")
	}
	if !strings.Contains(err.Error(), "swinv init") {
		t.Errorf("error = %v, want it to point at 'swinv init'", err)
	}
}
