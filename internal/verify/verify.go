// Package verify re-probes the environment after a provisioning run. It is
// strictly observational: missing entry points produce warnings in the
// closing report, never a run failure. This report, not the exit code, is
// the user's primary signal of how the run went.
package verify

import (
	"os/exec"
	"path/filepath"
	"strings"

	"devstrap/internal/links"
	"devstrap/internal/logger"
)

// Check is the observed state of one expected entry point.
type Check struct {
	Name    string
	Path    string
	Present bool
	Version string // self-reported, best effort
}

// Reporter probes expected entry points in the bin directory.
type Reporter struct {
	Bin *links.Dir
	// VersionOf captures a binary's self-reported version string.
	// Swapped in tests to avoid executing anything.
	VersionOf func(path string) (string, error)
}

// New returns a Reporter probing with `<binary> --version`.
func New(bin *links.Dir) *Reporter {
	return &Reporter{Bin: bin, VersionOf: commandVersion}
}

// Report probes each expected entry-point name and logs the closing report.
func (r *Reporter) Report(expected []string) []Check {
	logger.Info("[INFO] Verifying environment...\n")

	checks := make([]Check, 0, len(expected))
	for _, name := range expected {
		c := Check{Name: name}
		if !r.Bin.Present(name) {
			logger.Warn("[WARN] %s: not found in %s\n", name, r.Bin.Path)
			checks = append(checks, c)
			continue
		}
		c.Present = true
		c.Path = filepath.Join(r.Bin.Path, links.ExeName(name))
		if version, err := r.VersionOf(c.Path); err == nil {
			c.Version = version
			logger.Success("[OK] %s: %s\n", name, version)
		} else {
			// Present but not answering --version is still present.
			logger.Success("[OK] %s: present (version probe failed: %v)\n", name, err)
		}
		checks = append(checks, c)
	}
	return checks
}

// commandVersion runs the binary with --version and returns the first output
// line.
func commandVersion(path string) (string, error) {
	out, err := exec.Command(path, "--version").CombinedOutput()
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	return line, nil
}
