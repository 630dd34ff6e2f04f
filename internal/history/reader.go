package history

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
)

// Operation lines list every package touched by one transaction; a full
// dist-upgrade exceeds bufio's default 64 KiB line limit.
const maxLineBytes = 4 * 1024 * 1024

// Reader presents a fixed snapshot of the history log, line by line.
// The bytes are read once at open time, so a package-manager run
// appending to the log cannot shift lines under an ongoing scan. The
// scan is a single forward pass with no backtracking.
type Reader struct {
	path    string
	scanner *bufio.Scanner
}

// NewReader opens path and snapshots its contents. A missing,
// unreadable or empty log is an error: the log holds at least one
// complete transaction once the package manager has run.
func NewReader(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history log: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("history log %s is empty", path)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	return &Reader{path: path, scanner: scanner}, nil
}

// Next returns the next line without its trailing newline, or io.EOF
// after the last one.
func (r *Reader) Next() (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to scan history log: %w", err)
	}
	return "", io.EOF
}

// Path returns the log location the reader was opened with.
func (r *Reader) Path() string {
	return r.path
}
