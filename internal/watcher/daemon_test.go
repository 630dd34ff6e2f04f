package watcher

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestIsDaemonRunning_NotRunning(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "test.pid")

	running, err := IsDaemonRunning(pidFile)
	if err != nil {
		t.Errorf("IsDaemonRunning() error = %v, want nil", err)
	}
	if running {
		t.Error("IsDaemonRunning() = true, want false for non-existent PID file")
	}
}

func TestIsDaemonRunning_WithCurrentProcess(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "test.pid")

	// The test process itself is a live PID.
	pid := os.Getpid()
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}

	running, err := IsDaemonRunning(pidFile)
	if err != nil {
		t.Errorf("IsDaemonRunning() error = %v, want nil", err)
	}
	if !running {
		t.Error("IsDaemonRunning() = false, want true for current process")
	}
}

func TestIsDaemonRunning_WithDeadProcess(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "test.pid")

	// A very high PID that is unlikely to be in use.
	deadPID := 999999
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(deadPID)+"\n"), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}

	running, err := IsDaemonRunning(pidFile)
	if err != nil {
		t.Errorf("IsDaemonRunning() error = %v, want nil", err)
	}
	if running {
		t.Error("IsDaemonRunning() = true, want false for dead process")
	}

	// The stale PID file should be removed.
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Error("stale PID file was not removed")
	}
}

func TestIsDaemonRunning_InvalidPID(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "test.pid")

	if err := os.WriteFile(pidFile, []byte("not-a-number\n"), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}

	running, err := IsDaemonRunning(pidFile)
	if err != nil {
		t.Errorf("IsDaemonRunning() error = %v, want nil for invalid PID", err)
	}
	if running {
		t.Error("IsDaemonRunning() = true, want false for invalid PID")
	}
}

func TestStopDaemon_NotRunning(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "test.pid")

	if err := StopDaemon(pidFile); err == nil {
		t.Error("StopDaemon() expected error for non-existent daemon, got nil")
	}
}

func TestStopDaemon_InvalidPID(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "test.pid")

	if err := os.WriteFile(pidFile, []byte("invalid\n"), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}

	if err := StopDaemon(pidFile); err == nil {
		t.Error("StopDaemon() expected error for invalid PID, got nil")
	}
}

func TestStartDaemon_AlreadyRunning(t *testing.T) {
	tmpDir := t.TempDir()
	pidFile := filepath.Join(tmpDir, "test.pid")
	logFile := filepath.Join(tmpDir, "test.log")

	// The current process PID simulates a running daemon.
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}

	if err := StartDaemon(pidFile, logFile, "watch", "--daemon-child"); err == nil {
		t.Error("StartDaemon() expected error for already running daemon, got nil")
	}
}

func TestStartDaemon_InvalidLogFile(t *testing.T) {
	tmpDir := t.TempDir()
	pidFile := filepath.Join(tmpDir, "test.pid")
	logFile := filepath.Join(tmpDir, "nonexistent", "test.log")

	if err := StartDaemon(pidFile, logFile, "watch", "--daemon-child"); err == nil {
		t.Error("StartDaemon() expected error for invalid log file path, got nil")
	}
}
