// Package links manages the entry-point directory: a single well-known bin
// dir of named, overwritable indirections onto installed executables. The
// user's PATH carries only this directory; which install a name resolves to
// is decided here.
package links

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"devstrap/internal/logger"
)

// ExeName appends the platform executable suffix to a bare entry-point name.
func ExeName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// Dir is the entry-point directory.
type Dir struct {
	Path string
}

// Open ensures the entry-point directory exists and returns it.
func Open(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("create entry-point dir %s: %w", path, err)
	}
	return &Dir{Path: path}, nil
}

// Publish points entry-point name at target, replacing whatever owned the
// name before. Last publisher wins; this is how the default version of a
// multi-version runtime takes over the unqualified name. A symlink is
// preferred; where the host forbids creating one (non-elevated Windows
// without developer mode), the target is copied instead.
func (d *Dir) Publish(name, target string) error {
	link := filepath.Join(d.Path, ExeName(name))

	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale entry point %s: %w", link, err)
	}
	if err := os.Symlink(target, link); err != nil {
		logger.Debug("[DEBUG] Symlink %s -> %s failed (%v), copying instead\n", link, target, err)
		if err := copyExecutable(target, link); err != nil {
			return fmt.Errorf("publish %s: %w", link, err)
		}
	}
	logger.Debug("[DEBUG] Published entry point %s -> %s\n", link, target)
	return nil
}

// Resolve returns the target a published name currently points at. A copied
// (non-symlink) entry point resolves to itself.
func (d *Dir) Resolve(name string) (string, error) {
	link := filepath.Join(d.Path, ExeName(name))
	if _, err := os.Lstat(link); err != nil {
		return "", err
	}
	if target, err := os.Readlink(link); err == nil {
		return target, nil
	}
	return link, nil
}

// Present reports whether a name is published at all.
func (d *Dir) Present(name string) bool {
	_, err := os.Lstat(filepath.Join(d.Path, ExeName(name)))
	return err == nil
}

// copyExecutable copies src over dst with executable permissions.
func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0755)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
