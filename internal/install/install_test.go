package install

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devstrap/internal/catalog"
	"devstrap/internal/extract"
	"devstrap/internal/fetch"
	"devstrap/internal/links"
	"devstrap/internal/options"
	"devstrap/internal/profile"
)

// fakeFetcher stands in for the network. Archive destinations receive a zip
// whose single top-level dir carries the requested executables; anything else
// receives raw bytes. Every call is counted — the idempotence properties are
// about these counts.
type fakeFetcher struct {
	calls int
	urls  []string
	exec  []string // executable names to put into zip payloads
	fail  error
}

func (f *fakeFetcher) Fetch(url, dest string) error {
	f.calls++
	f.urls = append(f.urls, url)
	if f.fail != nil {
		return f.fail
	}
	if strings.HasSuffix(dest, ".zip") {
		return writePayloadZip(dest, f.exec)
	}
	return os.WriteFile(dest, []byte("raw-binary"), 0755)
}

func writePayloadZip(dest string, execNames []string) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for _, name := range execNames {
		hdr := &zip.FileHeader{Name: "pkg/" + name, Method: zip.Deflate}
		hdr.SetMode(0755)
		fw, err := w.CreateHeader(hdr)
		if err != nil {
			return err
		}
		if _, err := fw.Write([]byte("#!/bin/sh\n")); err != nil {
			return err
		}
	}
	return w.Close()
}

func newTestInstaller(t *testing.T, f *fakeFetcher) *Installer {
	t.Helper()
	root := t.TempDir()
	bin, err := links.Open(filepath.Join(root, "tools", "bin"))
	require.NoError(t, err)
	return &Installer{
		Root:      root,
		Staging:   t.TempDir(),
		Fetcher:   f,
		Extractor: extract.NewSelector(),
		Probe:     MarkerProbe{},
		Bin:       bin,
		Frags:     &profile.Fragments{Dir: filepath.Join(root, "scripts")},
	}
}

func fzfEntry() catalog.Entry {
	return catalog.Entry{
		Name:     "fzf",
		Category: catalog.CategoryCLITools,
		Kind:     catalog.KindArchive,
		Version:  "0.52.1",
		URL:      "https://example.test/fzf-{{.Version}}.zip",
		Exec:     []string{"fzf"},
	}
}

func pythonEntry() catalog.Entry {
	return catalog.Entry{
		Name:     "python",
		Category: catalog.CategoryLanguage,
		Kind:     catalog.KindArchive,
		URL:      "https://example.test/python-{{.Version}}.zip",
		Exec:     []string{"python"},
	}
}

func TestEnsureToolInstallsAndPublishes(t *testing.T) {
	f := &fakeFetcher{exec: []string{"fzf"}}
	in := newTestInstaller(t, f)

	res := in.EnsureTool(fzfEntry())
	require.NoError(t, res.Err)
	assert.Equal(t, StatusInstalled, res.Status)
	assert.Equal(t, 1, f.calls)
	assert.Contains(t, f.urls[0], "0.52.1", "catalog-pinned version reaches the URL")

	assert.DirExists(t, filepath.Join(in.Root, "tools", "fzf"))
	assert.True(t, in.Bin.Present("fzf"))
	target, err := in.Bin.Resolve("fzf")
	require.NoError(t, err)
	assert.Contains(t, target, filepath.Join("tools", "fzf"))
}

func TestEnsureToolIsIdempotent(t *testing.T) {
	f := &fakeFetcher{exec: []string{"fzf"}}
	in := newTestInstaller(t, f)

	first := in.EnsureTool(fzfEntry())
	require.Equal(t, StatusInstalled, first.Status)

	second := in.EnsureTool(fzfEntry())
	assert.Equal(t, StatusAlreadyPresent, second.Status)
	assert.Equal(t, 1, f.calls, "second run performs zero network calls")
	assert.True(t, in.Bin.Present("fzf"))
}

func TestEnsureRuntimeMultiVersion(t *testing.T) {
	f := &fakeFetcher{exec: []string{"python"}}
	in := newTestInstaller(t, f)

	rt := options.Runtime{
		Install: true,
		Versions: []options.VersionSpec{
			{Version: "3.11.4", Default: true},
			{Version: "3.9.13"},
		},
	}
	results := in.EnsureRuntime(pythonEntry(), rt)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, StatusInstalled, r.Status, "version %s", r.Version)
	}

	// Version-qualified names are stable per install.
	for _, name := range []string{"python3.11.4", "python3.9.13"} {
		assert.True(t, in.Bin.Present(name), name)
	}
	// Unqualified and major-qualified names belong to the default version.
	for _, name := range []string{"python", "python3"} {
		target, err := in.Bin.Resolve(name)
		require.NoError(t, err, name)
		assert.Contains(t, target, filepath.Join("python", "3.11.4"), name)
	}
	target, err := in.Bin.Resolve("python3.9.13")
	require.NoError(t, err)
	assert.Contains(t, target, filepath.Join("python", "3.9.13"))
}

func TestEnsureRuntimeVersionsAreIndependentlyIdempotent(t *testing.T) {
	f := &fakeFetcher{exec: []string{"python"}}
	in := newTestInstaller(t, f)

	one := options.Runtime{Install: true, Versions: []options.VersionSpec{{Version: "3.11.4", Default: true}}}
	results := in.EnsureRuntime(pythonEntry(), one)
	require.Equal(t, StatusInstalled, results[0].Status)
	require.Equal(t, 1, f.calls)

	// Declaring a second version fetches only the new one.
	two := options.Runtime{Install: true, Versions: []options.VersionSpec{
		{Version: "3.11.4", Default: true},
		{Version: "3.9.13"},
	}}
	results = in.EnsureRuntime(pythonEntry(), two)
	require.Len(t, results, 2)
	assert.Equal(t, StatusAlreadyPresent, results[0].Status)
	assert.Equal(t, StatusInstalled, results[1].Status)
	assert.Equal(t, 2, f.calls)
}

func TestFetchFailureIsIsolatedAndRetryable(t *testing.T) {
	f := &fakeFetcher{exec: []string{"fzf"}, fail: fetch.ErrFetchFailed}
	in := newTestInstaller(t, f)

	res := in.EnsureTool(fzfEntry())
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, fetch.ErrFetchFailed)

	// The marker never appeared, so the next run retries from scratch.
	f.fail = nil
	res = in.EnsureTool(fzfEntry())
	assert.Equal(t, StatusInstalled, res.Status)
}

func TestExistingMarkerSkipsWithoutRepair(t *testing.T) {
	f := &fakeFetcher{exec: []string{"fzf"}}
	in := newTestInstaller(t, f)

	// An install dir left behind by an interrupted earlier run.
	require.NoError(t, os.MkdirAll(filepath.Join(in.Root, "tools", "fzf"), 0755))

	res := in.EnsureTool(fzfEntry())
	assert.Equal(t, StatusAlreadyPresent, res.Status)
	assert.Equal(t, 0, f.calls)
	// Entry points are NOT repaired: marker existence is the whole check.
	assert.False(t, in.Bin.Present("fzf"))
}

func TestBinaryKindPlacesFileDirectly(t *testing.T) {
	f := &fakeFetcher{}
	in := newTestInstaller(t, f)

	entry := catalog.Entry{
		Name:    "jq",
		Kind:    catalog.KindBinary,
		Version: "1.7.1",
		URL:     "https://example.test/jq.exe",
		Exec:    []string{"jq"},
	}
	res := in.EnsureTool(entry)
	require.NoError(t, res.Err)
	assert.Equal(t, StatusInstalled, res.Status)

	placed := filepath.Join(in.Root, "tools", "jq", "jq.exe")
	info, err := os.Stat(placed)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0100, "placed binary is executable")
	assert.True(t, in.Bin.Present("jq"))
}

func TestEmbeddedJQEntryInstalls(t *testing.T) {
	c, err := catalog.Load()
	require.NoError(t, err)
	jq, ok := c.Lookup("jq")
	require.True(t, ok)

	f := &fakeFetcher{}
	in := newTestInstaller(t, f)

	// The release asset carries an arch-qualified name; the filename override
	// must land it under the name the entry points resolve.
	res := in.EnsureTool(jq)
	require.NoError(t, res.Err)
	assert.Equal(t, StatusInstalled, res.Status)
	assert.FileExists(t, filepath.Join(in.Root, "tools", "jq", "jq.exe"))
	assert.True(t, in.Bin.Present("jq"))
}

func TestEnsureRustWiresProfileFragment(t *testing.T) {
	f := &fakeFetcher{}
	in := newTestInstaller(t, f)

	entry := catalog.Entry{
		Name:    "rust",
		Kind:    catalog.KindBinary,
		Version: "stable",
		URL:     "https://example.test/rustup-init.exe",
		Exec:    []string{"rustup-init"},
	}
	res := in.EnsureRust(entry)
	require.NoError(t, res.Err)
	require.Equal(t, StatusInstalled, res.Status)

	frag, err := os.ReadFile(filepath.Join(in.Root, "scripts", "paths.sh"))
	require.NoError(t, err)
	assert.Contains(t, string(frag), "RUSTUP_HOME")

	// Re-running appends nothing: marker skip plus guarded append.
	res = in.EnsureRust(entry)
	assert.Equal(t, StatusAlreadyPresent, res.Status)
	again, err := os.ReadFile(filepath.Join(in.Root, "scripts", "paths.sh"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(again), "RUSTUP_HOME"))
}

func TestEnsureJavaPublishesQualifiedNames(t *testing.T) {
	f := &fakeFetcher{exec: []string{"java"}}
	in := newTestInstaller(t, f)

	entry := catalog.Entry{
		Name:     "java",
		Kind:     catalog.KindArchive,
		URL:      "https://example.test/jdk-{{.Version}}.zip",
		Filename: "jdk-{{.Version}}.zip",
		Exec:     []string{"java"},
	}
	res := in.EnsureJava(entry, options.Java{Install: true, Version: "17.0.10"})
	require.NoError(t, res.Err)
	assert.Equal(t, StatusInstalled, res.Status)

	for _, name := range []string{"java", "java17", "java17.0.10"} {
		assert.True(t, in.Bin.Present(name), name)
	}
	frag, err := os.ReadFile(filepath.Join(in.Root, "scripts", "paths.sh"))
	require.NoError(t, err)
	assert.Contains(t, string(frag), "JAVA_HOME")
}

func TestEnsureSDKManPlacesScript(t *testing.T) {
	f := &fakeFetcher{}
	in := newTestInstaller(t, f)

	entry := catalog.Entry{
		Name:     "sdkman",
		Kind:     catalog.KindBinary,
		Version:  "5.18.2",
		URL:      "https://get.example.test/?version={{.Version}}",
		Filename: "sdkman-init.sh",
	}
	res := in.EnsureSDKMan(entry)
	require.NoError(t, res.Err)
	assert.Equal(t, StatusInstalled, res.Status)

	assert.FileExists(t, filepath.Join(in.Root, "tools", "sdkman", "sdkman-init.sh"))
	frag, err := os.ReadFile(filepath.Join(in.Root, "scripts", "paths.sh"))
	require.NoError(t, err)
	assert.Contains(t, string(frag), "SDKMAN_DIR")
}

func TestPostStepFailureLeavesMarkerBehind(t *testing.T) {
	f := &fakeFetcher{exec: []string{"fzf"}}
	in := newTestInstaller(t, f)

	boom := errors.New("post step broke")
	spec := ToolSpec{
		Name: "fzf", Version: "0.52.1",
		URL:  "https://example.test/fzf.zip",
		Kind: catalog.KindArchive,
		Exec: []string{"fzf"},
		Dir:  "fzf",
		Post: func(string) error { return boom },
	}
	res := in.EnsureInstalled(spec)
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, boom)

	// The payload landed before the post step, so the marker now short
	// circuits every later run. Known limitation, asserted on purpose.
	res = in.EnsureInstalled(spec)
	assert.Equal(t, StatusAlreadyPresent, res.Status)
	assert.Equal(t, 1, f.calls)
}

func TestMajorName(t *testing.T) {
	name, ok := majorName("python", "3.11.4")
	require.True(t, ok)
	assert.Equal(t, "python3", name)

	name, ok = majorName("node", "20.11.1")
	require.True(t, ok)
	assert.Equal(t, "node20", name)

	_, ok = majorName("rust", "stable")
	assert.False(t, ok)
	_, ok = majorName("git", "")
	assert.False(t, ok)
}
