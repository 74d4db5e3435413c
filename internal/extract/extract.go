// Package extract unpacks downloaded archives. The target platform has no
// single universal decompressor, so extraction goes through an ordered list
// of backends and the first available one that understands the archive wins.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"devstrap/internal/logger"
)

// Error kinds, classified with errors.Is.
var (
	// ErrNoExtractor means no backend was available for the archive.
	ErrNoExtractor = errors.New("no extraction backend available")
	// ErrExtractFailed covers failures inside a backend.
	ErrExtractFailed = errors.New("extract failed")
)

// Backend is one extraction implementation.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string
	// Available reports whether the backend can run on this host.
	Available() bool
	// Supports reports whether the backend understands the archive format,
	// judged by filename.
	Supports(archivePath string) bool
	// Extract unpacks archivePath under destDir. The archive's own layout is
	// preserved; nothing is normalized.
	Extract(archivePath, destDir string) error
}

// Selector tries backends in preference order.
type Selector struct {
	Backends []Backend
}

// NewSelector returns the production preference order: the native Go reader
// first, the sevenzip library for 7z payloads, then whatever archive CLI the
// host happens to have.
func NewSelector() *Selector {
	return &Selector{Backends: []Backend{
		&nativeBackend{},
		&sevenZipBackend{},
		&cliBackend{},
	}}
}

// Extract creates destDir if needed and unpacks the archive with the first
// available backend that supports it.
func (s *Selector) Extract(archivePath, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrExtractFailed, destDir, err)
	}
	for _, b := range s.Backends {
		if !b.Available() || !b.Supports(archivePath) {
			continue
		}
		logger.Debug("[DEBUG] Extracting %s with %s backend\n", archivePath, b.Name())
		if err := b.Extract(archivePath, destDir); err != nil {
			return fmt.Errorf("%w: %s backend: %v", ErrExtractFailed, b.Name(), err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNoExtractor, filepath.Base(archivePath))
}

// LocateRoot finds the real payload root under destDir. Archives for the
// provisioned tools usually wrap everything in a single versioned top-level
// folder; when exactly one directory (and nothing else) sits under destDir,
// that directory is the root, otherwise destDir itself is.
func LocateRoot(destDir string) (string, error) {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", destDir, err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(destDir, entries[0].Name()), nil
	}
	return destDir, nil
}
