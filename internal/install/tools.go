package install

import (
	"fmt"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"devstrap/internal/catalog"
	"devstrap/internal/options"
	"devstrap/internal/profile"
)

// specFromEntry resolves a catalog entry into a ToolSpec. Version-qualified
// installs land under tools/<name>/<version>; everything else under
// tools/<name>.
func specFromEntry(e catalog.Entry, version string, isDefault, qualified bool) (ToolSpec, error) {
	url, err := e.ResolveURL(version)
	if err != nil {
		return ToolSpec{}, err
	}
	filename, err := e.ResolveFilename(version)
	if err != nil {
		return ToolSpec{}, err
	}
	dir := e.Name
	if qualified && version != "" {
		dir = e.Name + "/" + version
	}
	return ToolSpec{
		Name:      e.Name,
		Version:   version,
		URL:       url,
		Kind:      e.Kind,
		Exec:      e.Exec,
		Dir:       dir,
		Marker:    e.Marker,
		Filename:  filename,
		IsDefault: isDefault,
		Qualified: qualified,
	}, nil
}

// EnsureTool installs a single-version tool (version control, CLI utilities,
// editors, terminal) at its catalog-pinned version. Its entry points always
// take the unqualified names.
func (in *Installer) EnsureTool(e catalog.Entry) Result {
	spec, err := specFromEntry(e, e.Version, true, false)
	if err != nil {
		return Result{Tool: e.Name, Version: e.Version, Status: StatusFailed, Err: err}
	}
	return in.EnsureInstalled(spec)
}

// EnsureRuntime installs every declared version of a multi-version runtime
// independently and idempotently. Each version publishes its
// version-qualified entry points; the one marked default also takes the
// unqualified and major-qualified names. Install order follows declaration
// order, so with several defaults-after-normalization there is exactly one
// and ordering cannot flip ownership.
func (in *Installer) EnsureRuntime(e catalog.Entry, rt options.Runtime) []Result {
	var results []Result
	for _, v := range rt.Versions {
		spec, err := specFromEntry(e, v.Version, v.Default, true)
		if err != nil {
			results = append(results, Result{Tool: e.Name, Version: v.Version, Status: StatusFailed, Err: err})
			continue
		}
		results = append(results, in.EnsureInstalled(spec))
	}
	return results
}

// EnsureRust places the rustup bootstrap binary and wires the cargo
// directories into the paths fragment. Rustup manages toolchain versions
// itself, so no version-qualified names are published.
func (in *Installer) EnsureRust(e catalog.Entry) Result {
	spec, err := specFromEntry(e, e.Version, true, false)
	if err != nil {
		return Result{Tool: e.Name, Version: e.Version, Status: StatusFailed, Err: err}
	}
	spec.Post = func(installDir string) error {
		block := `# rust toolchain
export RUSTUP_HOME="$DEVBOX_ROOT/tools/rust/rustup"
export CARGO_HOME="$DEVBOX_ROOT/tools/rust/cargo"
export PATH="$CARGO_HOME/bin:$PATH"`
		return in.Frags.AppendGuarded(profile.FragmentPaths, "RUSTUP_HOME", block)
	}
	return in.EnsureInstalled(spec)
}

// EnsureSDKMan places the sdkman bootstrap script and appends its init lines
// to the paths fragment. sdkman publishes no entry points of its own; the
// JVMs it manages do.
func (in *Installer) EnsureSDKMan(e catalog.Entry) Result {
	spec, err := specFromEntry(e, e.Version, false, false)
	if err != nil {
		return Result{Tool: e.Name, Version: e.Version, Status: StatusFailed, Err: err}
	}
	spec.Post = func(installDir string) error {
		block := fmt.Sprintf(`# sdkman
export SDKMAN_DIR="$DEVBOX_ROOT/tools/sdkman"
[ -f "$SDKMAN_DIR/%s" ] && . "$SDKMAN_DIR/%s"`, spec.artifactName(), spec.artifactName())
		return in.Frags.AppendGuarded(profile.FragmentPaths, "SDKMAN_DIR", block)
	}
	return in.EnsureInstalled(spec)
}

// EnsureJava installs the requested JDK and exports JAVA_HOME alongside the
// java entry points.
func (in *Installer) EnsureJava(e catalog.Entry, java options.Java) Result {
	spec, err := specFromEntry(e, java.Version, true, true)
	if err != nil {
		return Result{Tool: e.Name, Version: java.Version, Status: StatusFailed, Err: err}
	}
	spec.Post = func(installDir string) error {
		block := fmt.Sprintf(`# java home
export JAVA_HOME="$DEVBOX_ROOT/tools/%s"`, filepath.ToSlash(spec.Dir))
		return in.Frags.AppendGuarded(profile.FragmentPaths, "JAVA_HOME", block)
	}
	return in.EnsureInstalled(spec)
}

// majorName derives the major-qualified entry-point name (python3, node20)
// from a full version. Unparseable or absent versions publish no major name.
func majorName(name, version string) (string, bool) {
	if version == "" {
		return "", false
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s%d", name, v.Major()), true
}
