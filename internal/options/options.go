package options

import (
	"encoding/json" // The desired-state document is JSON on disk
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/adrg/xdg"

	"devstrap/internal/logger"
)

// DesiredState is the declarative document describing which tools and
// versions should be present. It is loaded (or synthesized) exactly once per
// run and treated as immutable from then on; every consumer receives it by
// value injection, never through package-level state.
type DesiredState struct {
	// Root is the user-writable destination root. Empty means the built-in
	// default under the user's home directory.
	Root      string    `json:"root,omitempty"`
	CLITools  Toggle    `json:"cli_tools"`
	Languages Languages `json:"languages"`
	Editors   Toggle    `json:"editors"`
	Terminal  Toggle    `json:"terminal"`
	Git       Git       `json:"git"`
}

// Toggle gates a whole category behind a single install flag.
type Toggle struct {
	Install bool `json:"install"`
}

// Languages groups the language-runtime categories. The outer Install flag
// gates the whole group; each runtime is additionally gated on its own.
type Languages struct {
	Install bool    `json:"install"`
	Node    Runtime `json:"node"`
	Python  Runtime `json:"python"`
	Rust    Toggle  `json:"rust"`
	SDKMan  SDKMan  `json:"sdkman"`
}

// Runtime is a multi-version runtime request. Each declared version installs
// independently; exactly one carries Default after normalization and owns the
// unqualified entry-point names.
type Runtime struct {
	Install  bool          `json:"install"`
	Versions []VersionSpec `json:"versions"`
}

// VersionSpec declares one version of a multi-version runtime.
type VersionSpec struct {
	Version string `json:"version"`
	Default bool   `json:"default"`
}

// SDKMan requests the sdkman bootstrap plus the JVMs it should manage.
type SDKMan struct {
	Install bool `json:"install"`
	Java    Java `json:"java"`
}

// Java requests a single JDK version through sdkman.
type Java struct {
	Install bool   `json:"install"`
	Version string `json:"version"`
}

// Git carries the version-control category flag and the identity used when
// rendering the git configuration.
type Git struct {
	Install   bool    `json:"install"`
	Configure bool    `json:"configure"`
	User      GitUser `json:"user"`
}

// GitUser is the identity substituted into the rendered git config. Empty
// fields are prompted for interactively at publish time.
type GitUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DefaultVersion reports the version that owns the unqualified entry-point
// names. After normalization this is the single entry marked Default.
func (r Runtime) DefaultVersion() (VersionSpec, bool) {
	for _, v := range r.Versions {
		if v.Default {
			return v, true
		}
	}
	if len(r.Versions) > 0 {
		return r.Versions[0], true
	}
	return VersionSpec{}, false
}

// Defaults returns the built-in desired-state document: everything installed,
// one current and one prior interpreter for the multi-version runtimes. This
// is the document a run on a fresh host resolves to when no options file
// exists yet.
func Defaults() *DesiredState {
	return &DesiredState{
		CLITools: Toggle{Install: true},
		Languages: Languages{
			Install: true,
			Node: Runtime{
				Install: true,
				Versions: []VersionSpec{
					{Version: "20.11.1", Default: true},
				},
			},
			Python: Runtime{
				Install: true,
				Versions: []VersionSpec{
					{Version: "3.11.4", Default: true},
					{Version: "3.9.13"},
				},
			},
			Rust: Toggle{Install: true},
			SDKMan: SDKMan{
				Install: true,
				Java:    Java{Install: true, Version: "17.0.10"},
			},
		},
		Editors:  Toggle{Install: true},
		Terminal: Toggle{Install: true},
		Git:      Git{Install: true, Configure: true},
	}
}

// DefaultRoot is the destination root used when the document does not name
// one: <home>/devbox.
func DefaultRoot() string {
	return filepath.Join(xdg.Home, "devbox")
}

// RootDir returns the effective destination root for this document.
func (d *DesiredState) RootDir() string {
	if d.Root != "" {
		return d.Root
	}
	return DefaultRoot()
}

// Load resolves the desired-state document at path. It never fails the run:
// a missing, unreadable, or structurally invalid file is replaced by the
// built-in defaults with a warning, and the defaults document is persisted to
// path so the user has something concrete to edit before the next run.
// Whatever comes back is normalized (see normalize) before use.
func Load(path string) *DesiredState {
	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("[WARN] Options file %s not readable (%v); using built-in defaults\n", path, err)
		return persistDefaults(path)
	}

	var ds DesiredState
	if err := json.Unmarshal(raw, &ds); err != nil {
		logger.Warn("[WARN] Options file %s is not valid JSON (%v); using built-in defaults\n", path, err)
		return persistDefaults(path)
	}
	if err := ds.validate(); err != nil {
		logger.Warn("[WARN] Options file %s failed validation (%v); using built-in defaults\n", path, err)
		return persistDefaults(path)
	}

	ds.normalize()
	logger.Debug("[DEBUG] Loaded desired state from %s\n", path)
	return &ds
}

// persistDefaults writes the built-in document to path (best effort; a write
// failure is only a debug-level event since the in-memory defaults are what
// the run actually uses) and returns it.
func persistDefaults(path string) *DesiredState {
	ds := Defaults()
	ds.normalize()

	raw, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		logger.Error("[ERROR] Failed to marshal default options: %v\n", err)
		return ds
	}
	if dir := filepath.Dir(path); dir != "." {
		_ = os.MkdirAll(dir, 0755)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		logger.Debug("[DEBUG] Could not persist default options to %s: %v\n", path, err)
	} else {
		logger.Info("[INFO] Wrote default options to %s\n", path)
	}
	return ds
}

// validate applies the structural checks the schema promises to its callers:
// every declared runtime version must parse as a semantic version. Anything
// else in the document is either a bool or free-form text and cannot be
// structurally wrong.
func (d *DesiredState) validate() error {
	for _, rt := range []struct {
		name string
		r    Runtime
	}{{"node", d.Languages.Node}, {"python", d.Languages.Python}} {
		for _, v := range rt.r.Versions {
			if _, err := semver.NewVersion(v.Version); err != nil {
				return &InvalidVersionError{Runtime: rt.name, Version: v.Version, Err: err}
			}
		}
	}
	if d.Languages.SDKMan.Java.Install && d.Languages.SDKMan.Java.Version != "" {
		if _, err := semver.NewVersion(d.Languages.SDKMan.Java.Version); err != nil {
			return &InvalidVersionError{Runtime: "java", Version: d.Languages.SDKMan.Java.Version, Err: err}
		}
	}
	return nil
}

// InvalidVersionError reports a runtime version that does not parse.
type InvalidVersionError struct {
	Runtime string
	Version string
	Err     error
}

func (e *InvalidVersionError) Error() string {
	return "invalid " + e.Runtime + " version " + e.Version + ": " + e.Err.Error()
}

func (e *InvalidVersionError) Unwrap() error { return e.Err }

// normalize enforces the single-default invariant on every multi-version
// list: the first entry marked default wins and the rest are cleared; when
// none is marked, the first listed version becomes the default. Doing this
// once at the schema boundary keeps the rule out of every call site.
func (d *DesiredState) normalize() {
	normalizeVersions(d.Languages.Node.Versions)
	normalizeVersions(d.Languages.Python.Versions)
}

func normalizeVersions(versions []VersionSpec) {
	if len(versions) == 0 {
		return
	}
	def := -1
	for i := range versions {
		if versions[i].Default {
			def = i
			break
		}
	}
	if def < 0 {
		def = 0
	}
	for i := range versions {
		versions[i].Default = i == def
	}
}
