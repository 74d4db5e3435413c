package extract

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip" // .7z archives
)

// sevenZipBackend reads 7z payloads (including the self-extracting .7z.exe
// distributions) with the sevenzip library.
type sevenZipBackend struct{}

func (sevenZipBackend) Name() string    { return "sevenzip" }
func (sevenZipBackend) Available() bool { return true }

func (sevenZipBackend) Supports(archivePath string) bool {
	return strings.HasSuffix(archivePath, ".7z") || strings.HasSuffix(archivePath, ".7z.exe")
}

func (sevenZipBackend) Extract(archivePath, destDir string) error {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open 7z archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		path, err := securePath(destDir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, f.Mode().Perm()|0700); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		outFile, err := os.Create(path)
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(outFile, rc)
		rc.Close()
		outFile.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// cliBackend shells out to whatever archive tool the host has on PATH. It is
// the last resort for formats the in-process readers cannot handle, and for
// hosts where they fail (e.g. exotic zip methods the stdlib reader rejects).
type cliBackend struct{}

func (cliBackend) Name() string { return "cli" }

func (cliBackend) Available() bool {
	if _, err := exec.LookPath("tar"); err == nil {
		return true
	}
	if _, err := exec.LookPath("unzip"); err == nil {
		return true
	}
	return false
}

func (cliBackend) Supports(archivePath string) bool {
	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		_, err := exec.LookPath("unzip")
		if err != nil {
			// bsdtar reads zip as well
			_, err = exec.LookPath("tar")
		}
		return err == nil
	case strings.HasSuffix(archivePath, ".tar"),
		strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"),
		strings.HasSuffix(archivePath, ".tar.bz2"),
		strings.HasSuffix(archivePath, ".tar.xz"):
		_, err := exec.LookPath("tar")
		return err == nil
	}
	return false
}

func (cliBackend) Extract(archivePath, destDir string) error {
	var cmd *exec.Cmd
	if strings.HasSuffix(archivePath, ".zip") {
		if _, err := exec.LookPath("unzip"); err == nil {
			cmd = exec.Command("unzip", "-o", "-q", archivePath, "-d", destDir)
		} else {
			cmd = exec.Command("tar", "-xf", archivePath, "-C", destDir)
		}
	} else {
		cmd = exec.Command("tar", "-xf", archivePath, "-C", destDir)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %v\noutput: %s", strings.Join(cmd.Args, " "), err, output)
	}
	return nil
}
