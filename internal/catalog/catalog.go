// Package catalog maps tool names to the artifacts that provide them.
// The catalog is compiled into the binary; the desired-state document only
// says *whether* (and for runtimes, at which version) a tool is wanted, the
// catalog says *where it comes from* and what it ships.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"runtime"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var raw []byte

// Category names, matching the desired-state document's top-level keys.
const (
	CategoryVersionControl = "version_control"
	CategoryTerminal       = "terminal"
	CategoryEditors        = "editors"
	CategoryCLITools       = "cli_tools"
	CategoryLanguage       = "language"
)

// Artifact kinds.
const (
	KindArchive = "archive" // fetch then extract
	KindBinary  = "binary"  // fetch and place directly
)

// Entry describes one provisionable tool.
type Entry struct {
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Kind     string   `yaml:"kind"`
	Version  string   `yaml:"version"` // empty for runtimes: desired state supplies it
	URL      string   `yaml:"url"`
	Filename string   `yaml:"filename"` // staging filename when the URL's last segment is unusable
	Exec     []string `yaml:"exec"`
	Marker   string   `yaml:"marker"` // optional subpath probed instead of the install dir
}

// Catalog is the parsed tool table. Lookup order within a category follows
// the file order, which is also the install order.
type Catalog struct {
	entries []Entry
	byName  map[string]Entry
}

// Load parses the embedded catalog. A parse failure here is a build defect,
// not a runtime condition, but the error is still returned so the caller can
// fail the preflight instead of panicking.
func Load() (Catalog, error) {
	var doc struct {
		Tools []Entry `yaml:"tools"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Catalog{}, fmt.Errorf("parse embedded catalog: %w", err)
	}
	c := Catalog{entries: doc.Tools, byName: make(map[string]Entry, len(doc.Tools))}
	for _, e := range doc.Tools {
		c.byName[e.Name] = e
	}
	return c, nil
}

// FromEntries builds a catalog from explicit entries. Test seam.
func FromEntries(entries []Entry) Catalog {
	c := Catalog{entries: entries, byName: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		c.byName[e.Name] = e
	}
	return c
}

// Lookup returns the entry for a tool name.
func (c Catalog) Lookup(name string) (Entry, bool) {
	e, ok := c.byName[name]
	return e, ok
}

// ForCategory returns the entries of one category in file order.
func (c Catalog) ForCategory(category string) []Entry {
	var out []Entry
	for _, e := range c.entries {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// urlVars are the substitutions available to catalog URL templates.
type urlVars struct {
	Version string
	Arch    string
}

// ResolveURL renders the entry's URL template for the given version. An
// empty version falls back to the catalog-pinned one.
func (e Entry) ResolveURL(version string) (string, error) {
	return e.render(e.URL, version)
}

// ResolveFilename renders the staging filename override, empty when the
// entry has none.
func (e Entry) ResolveFilename(version string) (string, error) {
	if e.Filename == "" {
		return "", nil
	}
	return e.render(e.Filename, version)
}

func (e Entry) render(tmplStr, version string) (string, error) {
	if version == "" {
		version = e.Version
	}
	tmpl, err := template.New(e.Name).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("parse template for %s: %w", e.Name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, urlVars{Version: version, Arch: archName()}); err != nil {
		return "", fmt.Errorf("render template for %s: %w", e.Name, err)
	}
	return buf.String(), nil
}

// archName maps the Go architecture name onto the one artifact URLs use.
func archName() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x64"
	default:
		return runtime.GOARCH
	}
}
