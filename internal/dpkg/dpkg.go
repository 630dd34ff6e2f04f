// Package dpkg reads the set of currently installed Debian packages,
// used to seed the initial inventory before any history entry exists.
package dpkg

import (
	"fmt"
	"os/exec"
	"strings"
)

// Package is one installed package as reported by dpkg-query.
type Package struct {
	Name    string
	Version string
}

const statusFormat = "${Package}\t${Version}\t${Status}\n"

// ListInstalled returns every package dpkg considers fully installed.
// Packages in transient states (half-configured, removed with config
// files kept) are excluded.
func ListInstalled() ([]Package, error) {
	cmd := exec.Command("dpkg-query", "-W", "-f", statusFormat)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("dpkg-query failed: %w (stderr: %s)", err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("dpkg-query failed: %w", err)
	}

	return parseStatus(string(output))
}

// parseStatus parses dpkg-query -W output in statusFormat.
func parseStatus(output string) ([]Package, error) {
	var packages []Package
	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, fmt.Errorf("unexpected dpkg-query line: %q", line)
		}
		name, version, status := fields[0], fields[1], fields[2]

		// Status is "<want> <flag> <state>"; only state matters here.
		if !strings.HasSuffix(status, " installed") {
			continue
		}
		// Multi-arch entries repeat the name with an arch qualifier.
		if idx := strings.IndexByte(name, ':'); idx >= 0 {
			name = name[:idx]
		}
		if name == "" || version == "" {
			return nil, fmt.Errorf("unexpected dpkg-query line: %q", line)
		}
		packages = append(packages, Package{Name: name, Version: version})
	}
	return packages, nil
}
