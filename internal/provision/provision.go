// Package provision drives a full run: categories in a fixed order, each
// gated by its own install flag, each tool's outcome collected rather than
// propagated. One tool failing never stops the next one; the only fatal path
// is the preflight check before anything runs.
package provision

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"devstrap/internal/catalog"
	"devstrap/internal/install"
	"devstrap/internal/logger"
	"devstrap/internal/options"
	"devstrap/internal/profile"
	"devstrap/internal/verify"
)

// ErrMissingComponent means an enabled category has no catalog backing. It
// aborts the run before any category executes. Per-tool failures never carry
// it; the only other fatal path is a destination root that cannot be
// prepared, which surfaces as the plain IO error it is.
var ErrMissingComponent = errors.New("missing required component")

// Orchestrator holds the resolved desired state and the collaborators a run
// needs. Construction happens once in the command layer; the orchestrator
// itself keeps no mutable state between runs.
type Orchestrator struct {
	State     *options.DesiredState
	Catalog   catalog.Catalog
	Installer *install.Installer
	Publisher *profile.Publisher
	Reporter  *verify.Reporter
}

// Preflight verifies that every enabled category resolves its required
// catalog entries. Runs before any category; a failure here is fatal.
func (o *Orchestrator) Preflight() error {
	required := o.requiredTools()
	for _, name := range required {
		if _, ok := o.Catalog.Lookup(name); !ok {
			return fmt.Errorf("%w: catalog has no entry for %s", ErrMissingComponent, name)
		}
	}
	if o.State.CLITools.Install && len(o.Catalog.ForCategory(catalog.CategoryCLITools)) == 0 {
		return fmt.Errorf("%w: cli_tools category is enabled but the catalog is empty", ErrMissingComponent)
	}
	return nil
}

// requiredTools lists the catalog entries the enabled categories depend on.
func (o *Orchestrator) requiredTools() []string {
	var names []string
	if o.State.Git.Install {
		names = append(names, "git")
	}
	if o.State.Terminal.Install {
		names = append(names, "windows-terminal")
	}
	if o.State.Editors.Install {
		names = append(names, "vscode")
	}
	if o.State.Languages.Install {
		lang := o.State.Languages
		if lang.Node.Install {
			names = append(names, "node")
		}
		if lang.Python.Install {
			names = append(names, "python")
		}
		if lang.Rust.Install {
			names = append(names, "rust")
		}
		if lang.SDKMan.Install {
			names = append(names, "sdkman")
			if lang.SDKMan.Java.Install {
				names = append(names, "java")
			}
		}
	}
	return names
}

// Run executes the whole provisioning sequence: preflight, directory layout,
// categories in order (version control first — later categories may lean on
// it), then profile publishing and the closing verification report. The
// returned results carry every per-tool outcome; only a preflight failure or
// an unpreparable destination root returns an error.
func (o *Orchestrator) Run() ([]install.Result, error) {
	if err := o.Preflight(); err != nil {
		return nil, err
	}
	if err := o.ensureLayout(); err != nil {
		return nil, err
	}

	var results []install.Result
	results = append(results, o.runVersionControl()...)
	results = append(results, o.runTerminal()...)
	results = append(results, o.runEditors()...)
	results = append(results, o.runCLITools()...)
	results = append(results, o.runLanguages()...)

	o.publishEnvironment()
	o.Reporter.Report(o.ExpectedEntryPoints())
	o.summarize(results)
	return results, nil
}

func (o *Orchestrator) runVersionControl() []install.Result {
	if !o.State.Git.Install {
		logger.Debug("[DEBUG] Version control category disabled, skipping\n")
		return nil
	}
	entry, _ := o.Catalog.Lookup("git")
	return []install.Result{o.Installer.EnsureTool(entry)}
}

func (o *Orchestrator) runTerminal() []install.Result {
	if !o.State.Terminal.Install {
		logger.Debug("[DEBUG] Terminal category disabled, skipping\n")
		return nil
	}
	entry, _ := o.Catalog.Lookup("windows-terminal")
	return []install.Result{o.Installer.EnsureTool(entry)}
}

func (o *Orchestrator) runEditors() []install.Result {
	if !o.State.Editors.Install {
		logger.Debug("[DEBUG] Editors category disabled, skipping\n")
		return nil
	}
	entry, _ := o.Catalog.Lookup("vscode")
	return []install.Result{o.Installer.EnsureTool(entry)}
}

func (o *Orchestrator) runCLITools() []install.Result {
	if !o.State.CLITools.Install {
		logger.Debug("[DEBUG] CLI tools category disabled, skipping\n")
		return nil
	}
	var results []install.Result
	for _, entry := range o.Catalog.ForCategory(catalog.CategoryCLITools) {
		results = append(results, o.Installer.EnsureTool(entry))
	}
	return results
}

func (o *Orchestrator) runLanguages() []install.Result {
	lang := o.State.Languages
	if !lang.Install {
		logger.Debug("[DEBUG] Languages category disabled, skipping\n")
		return nil
	}
	var results []install.Result
	if lang.Node.Install {
		entry, _ := o.Catalog.Lookup("node")
		results = append(results, o.Installer.EnsureRuntime(entry, lang.Node)...)
	}
	if lang.Python.Install {
		entry, _ := o.Catalog.Lookup("python")
		results = append(results, o.Installer.EnsureRuntime(entry, lang.Python)...)
	}
	if lang.Rust.Install {
		entry, _ := o.Catalog.Lookup("rust")
		results = append(results, o.Installer.EnsureRust(entry))
	}
	if lang.SDKMan.Install {
		entry, _ := o.Catalog.Lookup("sdkman")
		results = append(results, o.Installer.EnsureSDKMan(entry))
		if lang.SDKMan.Java.Install {
			javaEntry, _ := o.Catalog.Lookup("java")
			results = append(results, o.Installer.EnsureJava(javaEntry, lang.SDKMan.Java))
		}
	}
	return results
}

// publishEnvironment rewrites the profile and identity files. Failures here
// are logged errors, not run failures — the tools are installed either way.
func (o *Orchestrator) publishEnvironment() {
	if err := o.Publisher.PublishProfile(); err != nil {
		logger.Error("[ERROR] Failed to publish shell profile: %v\n", err)
	}
	if err := o.Publisher.PublishIdentity(o.State.Git); err != nil {
		logger.Error("[ERROR] Failed to publish git identity: %v\n", err)
	}
}

// ExpectedEntryPoints lists every entry-point name the desired state implies,
// including the version-qualified names of multi-version runtimes.
func (o *Orchestrator) ExpectedEntryPoints() []string {
	var names []string
	add := func(entry catalog.Entry) {
		names = append(names, entry.Exec...)
	}
	if o.State.Git.Install {
		if e, ok := o.Catalog.Lookup("git"); ok {
			add(e)
		}
	}
	if o.State.Terminal.Install {
		if e, ok := o.Catalog.Lookup("windows-terminal"); ok {
			add(e)
		}
	}
	if o.State.Editors.Install {
		if e, ok := o.Catalog.Lookup("vscode"); ok {
			add(e)
		}
	}
	if o.State.CLITools.Install {
		for _, e := range o.Catalog.ForCategory(catalog.CategoryCLITools) {
			add(e)
		}
	}
	if o.State.Languages.Install {
		lang := o.State.Languages
		if lang.Node.Install {
			names = append(names, runtimeNames(o.Catalog, "node", lang.Node)...)
		}
		if lang.Python.Install {
			names = append(names, runtimeNames(o.Catalog, "python", lang.Python)...)
		}
		if lang.Rust.Install {
			if e, ok := o.Catalog.Lookup("rust"); ok {
				add(e)
			}
		}
		if lang.SDKMan.Install && lang.SDKMan.Java.Install {
			if e, ok := o.Catalog.Lookup("java"); ok {
				add(e)
			}
		}
	}
	return names
}

// runtimeNames expands a multi-version runtime into its unqualified and
// version-qualified entry-point names.
func runtimeNames(c catalog.Catalog, tool string, rt options.Runtime) []string {
	entry, ok := c.Lookup(tool)
	if !ok {
		return nil
	}
	var names []string
	names = append(names, entry.Exec...)
	for _, v := range rt.Versions {
		for _, exec := range entry.Exec {
			names = append(names, exec+v.Version)
		}
	}
	return names
}

// ensureLayout creates the destination tree the run writes into, and drops a
// copy of the running binary under scripts so a later run can start from the
// installed tree itself.
func (o *Orchestrator) ensureLayout() error {
	root := o.State.RootDir()
	for _, dir := range []string{
		filepath.Join(root, "tools"),
		filepath.Join(root, "code", "remote"),
		filepath.Join(root, "code", "local"),
		filepath.Join(root, "scripts"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	o.selfCopy(filepath.Join(root, "scripts"))
	return nil
}

// selfCopy places the provisioning binary into the scripts dir. Best effort;
// running from the copy behaves identically to running from the original.
func (o *Orchestrator) selfCopy(scriptsDir string) {
	self, err := os.Executable()
	if err != nil {
		logger.Debug("[DEBUG] Cannot resolve own executable: %v\n", err)
		return
	}
	dst := filepath.Join(scriptsDir, filepath.Base(self))
	if dst == self {
		return
	}
	in, err := os.Open(self)
	if err != nil {
		logger.Debug("[DEBUG] Cannot open own executable: %v\n", err)
		return
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0755)
	if err != nil {
		logger.Debug("[DEBUG] Cannot copy self to %s: %v\n", dst, err)
		return
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		logger.Debug("[DEBUG] Self copy failed: %v\n", err)
	}
}

// summarize logs the closing per-status counts.
func (o *Orchestrator) summarize(results []install.Result) {
	var installed, present, failed int
	for _, r := range results {
		switch r.Status {
		case install.StatusInstalled:
			installed++
		case install.StatusAlreadyPresent:
			present++
		case install.StatusFailed:
			failed++
		}
	}
	logger.Info("[INFO] Run complete: %d installed, %d already present, %d failed\n",
		installed, present, failed)
	if failed > 0 {
		logger.Warn("[WARN] Some tools failed to install; re-run after checking the errors above\n")
	}
}
