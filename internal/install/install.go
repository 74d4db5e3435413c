// Package install turns one desired tool into an idempotent "ensure it is
// installed" operation: probe the marker, and when absent run the
// fetch → extract → relocate → publish pipeline. The pipeline is not
// transactional; a failure partway through leaves whatever it got to on disk.
package install

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"devstrap/internal/catalog"
	"devstrap/internal/extract"
	"devstrap/internal/fetch"
	"devstrap/internal/links"
	"devstrap/internal/logger"
)

// Status is the per-tool outcome of an EnsureInstalled run.
type Status string

const (
	// StatusAlreadyPresent means the marker existed and nothing ran.
	StatusAlreadyPresent Status = "already-present"
	// StatusInstalled means the full pipeline completed.
	StatusInstalled Status = "installed"
	// StatusFailed means some step failed; Err carries the cause.
	StatusFailed Status = "failed"
)

// Result is the per-tool outcome accumulated by the orchestrator. Results
// never terminate the run; they only feed the final summary.
type Result struct {
	Tool    string
	Version string
	Status  Status
	Err     error
}

// Probe decides whether a tool is already installed. The production probe is
// marker-path existence — coarse on purpose: no version or content
// comparison, so changing a declared version of an already-present install
// is a no-op until the old marker disappears. The interface exists so a
// content-aware probe can replace it without touching anything above.
type Probe interface {
	Present(markerPath string) bool
}

// MarkerProbe is the existence-based Probe.
type MarkerProbe struct{}

// Present reports whether the marker path exists on disk.
func (MarkerProbe) Present(markerPath string) bool {
	_, err := os.Stat(markerPath)
	return err == nil
}

// FragmentAppender is the slice of the profile layer the post-steps need:
// marker-guarded appends to a named shell fragment.
type FragmentAppender interface {
	AppendGuarded(name, marker, block string) error
}

// Extractor is the slice of the extraction layer the pipeline needs.
type Extractor interface {
	Extract(archivePath, destDir string) error
}

// ToolSpec is one fully-resolved installation request: everything the
// pipeline needs, no catalog or options lookups past this point.
type ToolSpec struct {
	Name     string
	Version  string
	URL      string
	Kind     string   // catalog.KindArchive or catalog.KindBinary
	Exec     []string // entry-point names to publish, sans platform suffix
	Dir      string   // install dir relative to <root>/tools, e.g. "python/3.11.4"
	Marker   string   // optional subpath under Dir probed instead of Dir itself
	Filename string   // staging/placement filename; derived from URL when empty

	// IsDefault publishes the unqualified (and major-qualified) entry-point
	// names, overwriting whichever install owned them before.
	IsDefault bool
	// Qualified additionally publishes version-qualified names, which are
	// stable regardless of default status.
	Qualified bool

	// Post runs after entry points are published, with the install dir.
	// Typical use: appending guarded init lines to a profile fragment.
	Post func(installDir string) error
}

// InstallDir is the absolute directory the tool lands in.
func (s ToolSpec) InstallDir(root string) string {
	return filepath.Join(root, "tools", filepath.FromSlash(s.Dir))
}

// MarkerPath is the absolute path probed for idempotence.
func (s ToolSpec) MarkerPath(root string) string {
	dir := s.InstallDir(root)
	if s.Marker != "" {
		return filepath.Join(dir, filepath.FromSlash(s.Marker))
	}
	return dir
}

// Installer runs tool installations against one destination root. All
// collaborators are injected; tests swap the fetcher/extractor for fakes.
type Installer struct {
	Root      string // destination root, e.g. ~/devbox
	Staging   string // scratch dir for downloads; os.TempDir when empty
	Fetcher   fetch.Fetcher
	Extractor Extractor
	Probe     Probe
	Bin       *links.Dir
	Frags     FragmentAppender
}

// EnsureInstalled reconciles one ToolSpec against the filesystem. Marker
// present: already-present, zero network or extraction work. Otherwise the
// pipeline runs to completion or to the first error. There is no rollback:
// when a late step fails (say, publishing an entry point), the install dir —
// and with it the marker — stays behind, and the next run reports
// already-present without repairing the links. Known, reproduced limitation.
func (in *Installer) EnsureInstalled(spec ToolSpec) Result {
	marker := spec.MarkerPath(in.Root)
	if in.Probe.Present(marker) {
		logger.Info("[INFO] %s%s already present, skipping\n", spec.Name, versionSuffix(spec))
		return Result{Tool: spec.Name, Version: spec.Version, Status: StatusAlreadyPresent}
	}

	logger.Info("[INFO] Installing %s%s...\n", spec.Name, versionSuffix(spec))
	installDir, err := in.materialize(spec)
	if err != nil {
		logger.Error("[ERROR] Failed to install %s: %v\n", spec.Name, err)
		return Result{Tool: spec.Name, Version: spec.Version, Status: StatusFailed, Err: err}
	}

	if err := in.publish(spec, installDir); err != nil {
		logger.Error("[ERROR] Failed to publish entry points for %s: %v\n", spec.Name, err)
		return Result{Tool: spec.Name, Version: spec.Version, Status: StatusFailed, Err: err}
	}

	if spec.Post != nil {
		if err := spec.Post(installDir); err != nil {
			logger.Error("[ERROR] Post-install step for %s failed: %v\n", spec.Name, err)
			return Result{Tool: spec.Name, Version: spec.Version, Status: StatusFailed, Err: err}
		}
	}

	logger.Success("[OK] Installed %s%s\n", spec.Name, versionSuffix(spec))
	return Result{Tool: spec.Name, Version: spec.Version, Status: StatusInstalled}
}

// materialize fetches the artifact and lands its payload in the install dir,
// returning that dir.
func (in *Installer) materialize(spec ToolSpec) (string, error) {
	staging := in.Staging
	if staging == "" {
		staging = os.TempDir()
	}
	stageDir, err := os.MkdirTemp(staging, spec.Name+"-*")
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stageDir)

	artifact := filepath.Join(stageDir, spec.artifactName())
	if err := in.Fetcher.Fetch(spec.URL, artifact); err != nil {
		return "", err
	}

	installDir := spec.InstallDir(in.Root)
	if spec.Kind == catalog.KindBinary {
		if err := os.MkdirAll(installDir, 0755); err != nil {
			return "", fmt.Errorf("create install dir: %w", err)
		}
		placed := filepath.Join(installDir, spec.artifactName())
		if err := moveFile(artifact, placed); err != nil {
			return "", fmt.Errorf("place binary: %w", err)
		}
		if err := os.Chmod(placed, 0755); err != nil {
			return "", fmt.Errorf("chmod binary: %w", err)
		}
		return installDir, nil
	}

	unpacked := filepath.Join(stageDir, "unpacked")
	if err := in.Extractor.Extract(artifact, unpacked); err != nil {
		return "", err
	}
	payload, err := extract.LocateRoot(unpacked)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(installDir), 0755); err != nil {
		return "", fmt.Errorf("create tool dir: %w", err)
	}
	if err := moveDir(payload, installDir); err != nil {
		return "", fmt.Errorf("relocate payload: %w", err)
	}
	return installDir, nil
}

// publish creates the entry-point links for every executable the spec names.
// Version-qualified names go first and are unconditional; the unqualified and
// major-qualified names follow only for the default install.
func (in *Installer) publish(spec ToolSpec, installDir string) error {
	for _, name := range spec.Exec {
		target, err := findExecutable(installDir, name)
		if err != nil {
			return err
		}
		if spec.Qualified && spec.Version != "" {
			if err := in.Bin.Publish(name+spec.Version, target); err != nil {
				return err
			}
		}
		if spec.IsDefault {
			if err := in.Bin.Publish(name, target); err != nil {
				return err
			}
			if spec.Qualified {
				if major, ok := majorName(name, spec.Version); ok {
					if err := in.Bin.Publish(major, target); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// findExecutable walks the install dir for the named executable. Windows
// runtimes spread launchers across .exe/.cmd/.bat, so all three count.
func findExecutable(root, name string) (string, error) {
	candidates := map[string]bool{
		name:          true,
		name + ".exe": true,
		name + ".cmd": true,
		name + ".bat": true,
	}
	var found string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || found != "" {
			return nil
		}
		if candidates[d.Name()] {
			found = p
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", root, err)
	}
	if found == "" {
		return "", fmt.Errorf("no %s executable under %s", name, root)
	}
	return found, nil
}

// versionSuffix renders "@version" for logging, or nothing for unversioned
// tools.
func versionSuffix(spec ToolSpec) string {
	if spec.Version == "" {
		return ""
	}
	return "@" + spec.Version
}

// artifactName is the filename the artifact stages (and, for binaries,
// installs) under.
func (s ToolSpec) artifactName() string {
	if s.Filename != "" {
		return s.Filename
	}
	if u, err := url.Parse(s.URL); err == nil {
		return path.Base(u.Path)
	}
	return path.Base(s.URL)
}

// moveFile renames src to dst, copying when the rename crosses filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// moveDir renames a directory into place, falling back to a recursive copy
// when staging and destination live on different filesystems.
func moveDir(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	return filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if err := moveFile(p, target); err != nil {
			return err
		}
		return os.Chmod(target, info.Mode().Perm())
	})
}
