// Package platform identifies the operating system an inventory is
// collected on and composes the OS label used in software identifiers.
package platform

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Info holds the os-release fields the collector cares about plus the
// hardware architecture.
type Info struct {
	ID        string // e.g. "debian"
	VersionID string // e.g. "9.0"; empty on rolling releases
	Like      string // ID_LIKE, space-separated parents
	Pretty    string // PRETTY_NAME
	Arch      string // e.g. "x86_64"
}

// osReleasePaths lists the locations os-release(5) defines, in lookup
// order.
var osReleasePaths = []string{"/etc/os-release", "/usr/lib/os-release"}

// goarchNames maps Go architecture names to the uname -m convention
// used in software identifiers.
var goarchNames = map[string]string{
	"amd64": "x86_64",
	"arm64": "aarch64",
	"386":   "i686",
	"arm":   "armv7l",
}

// Detect reads the host's os-release file.
func Detect() (*Info, error) {
	var lastErr error
	for _, path := range osReleasePaths {
		info, err := DetectFrom(path)
		if err == nil {
			return info, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// DetectFrom parses the os-release file at path.
func DetectFrom(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read os-release: %w", err)
	}
	defer f.Close()

	fields := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		fields[key] = unquote(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read os-release: %w", err)
	}

	info := &Info{
		ID:        fields["ID"],
		VersionID: fields["VERSION_ID"],
		Like:      fields["ID_LIKE"],
		Pretty:    fields["PRETTY_NAME"],
		Arch:      archName(),
	}
	if info.ID == "" {
		return nil, fmt.Errorf("os-release %s has no ID field", path)
	}
	return info, nil
}

// String composes the OS label embedded in software identifiers,
// e.g. "debian_9.0-x86_64". Rolling releases without a VERSION_ID
// yield "arch-x86_64".
func (i *Info) String() string {
	if i.VersionID == "" {
		return i.ID + "-" + i.Arch
	}
	return i.ID + "_" + i.VersionID + "-" + i.Arch
}

// PackageManager returns the history source kind for this OS.
func (i *Info) PackageManager() (string, error) {
	switch i.ID {
	case "debian", "ubuntu", "raspbian":
		return "apt", nil
	}
	for _, parent := range strings.Fields(i.Like) {
		if parent == "debian" || parent == "ubuntu" {
			return "apt", nil
		}
	}
	return "", fmt.Errorf("no supported package history source for OS %q", i.ID)
}

func archName() string {
	if name, ok := goarchNames[runtime.GOARCH]; ok {
		return name
	}
	return runtime.GOARCH
}

// unquote strips the optional single or double quotes os-release
// values may carry.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
