package output

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSpinner_NonTTYPrintsOnce(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner("Scanning history log")
	s.SetWriter(&buf)

	s.Start()
	s.Stop()

	got := buf.String()
	if got != "Scanning history log...\n" {
		t.Errorf("non-TTY spinner output = %q", got)
	}
}

func TestSpinner_DoubleStartIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner("Working")
	s.SetWriter(&buf)

	s.Start()
	s.Start()
	s.Stop()

	if n := strings.Count(buf.String(), "Working..."); n != 1 {
		t.Errorf("message printed %d times, want 1", n)
	}
}

func TestSpinner_StopWithoutStart(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner("Idle")
	s.SetWriter(&buf)

	// Must not panic or write anything.
	s.Stop()

	if buf.Len() != 0 {
		t.Errorf("Stop() before Start() wrote %q", buf.String())
	}
}

func TestSpinner_StopWithMessage(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner("Submitting measurement")
	s.SetWriter(&buf)

	s.Start()
	s.StopWithMessage("Measurement accepted")

	got := buf.String()
	if !strings.Contains(got, "Submitting measurement...") {
		t.Errorf("missing start message in %q", got)
	}
	if !strings.HasSuffix(got, "Measurement accepted\n") {
		t.Errorf("missing final message in %q", got)
	}
}

func TestSpinner_UpdateMessage(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner("first")
	s.SetWriter(&buf)

	s.Start()
	s.UpdateMessage("second")
	s.Stop()

	// On a non-TTY the message is only printed at Start; UpdateMessage
	// must simply not break anything.
	if !strings.Contains(buf.String(), "first...") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestSpinner_WithTimeoutFormatsRemaining(t *testing.T) {
	s := NewSpinner("report").WithTimeout(30 * time.Second)
	s.mu.Lock()
	s.startTime = time.Now()
	msg := s.formatMessage()
	s.mu.Unlock()

	if !strings.Contains(msg, "remaining") {
		t.Errorf("formatMessage() = %q, want remaining-time format", msg)
	}
}

func TestWriterIsTTY_Buffer(t *testing.T) {
	if writerIsTTY(&bytes.Buffer{}) {
		t.Error("a bytes.Buffer must never be a TTY")
	}
}
