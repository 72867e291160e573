// Package archive safely unpacks a zip archive into a destination
// directory, rejecting zip-slip attempts, symlinks, and device nodes.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrUnsafePath is returned when an archive entry would resolve outside the
// destination directory.
var ErrUnsafePath = errors.New("archive: entry escapes destination directory")

// ErrUnsupportedEntry is returned for symlinks and other non-regular,
// non-directory entries.
var ErrUnsupportedEntry = errors.New("archive: unsupported entry type")

// Extract unpacks the zip archive in data into dest. On any failure no
// partial guarantee is made about dest's contents; callers are expected to
// remove dest on error.
func Extract(data []byte, dest string) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("archive: failed to open zip: %w", err)
	}

	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("archive: failed to resolve destination: %w", err)
	}

	for _, entry := range r.File {
		if err := extractEntry(entry, destAbs); err != nil {
			return err
		}
	}

	return removeNodeModules(destAbs)
}

func extractEntry(entry *zip.File, destAbs string) error {
	target := filepath.Join(destAbs, entry.Name)
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("archive: failed to resolve entry path: %w", err)
	}

	if targetAbs != destAbs && !pathIsWithin(targetAbs, destAbs) {
		return fmt.Errorf("%w: %q", ErrUnsafePath, entry.Name)
	}

	mode := entry.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return fmt.Errorf("%w: symlink %q", ErrUnsupportedEntry, entry.Name)
	case mode&(os.ModeDevice|os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0:
		return fmt.Errorf("%w: device node %q", ErrUnsupportedEntry, entry.Name)
	case entry.FileInfo().IsDir():
		return os.MkdirAll(targetAbs, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(targetAbs), 0o755); err != nil {
		return fmt.Errorf("archive: failed to create parent dir: %w", err)
	}

	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("archive: failed to open entry %q: %w", entry.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(targetAbs, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode().Perm()|0o600)
	if err != nil {
		return fmt.Errorf("archive: failed to create file %q: %w", entry.Name, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("archive: failed to write file %q: %w", entry.Name, err)
	}

	return nil
}

// pathIsWithin reports whether target is destAbs itself or a descendant of
// it. Both paths must already be absolute and cleaned (filepath.Abs does
// both).
func pathIsWithin(target, destAbs string) bool {
	rel, err := filepath.Rel(destAbs, target)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}

// removeNodeModules deletes any node_modules directory shipped inside the
// archive so dependency install starts from a clean slate.
func removeNodeModules(root string) error {
	path := filepath.Join(root, "node_modules")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	log.Debug().Str("path", path).Msg("removing bundled node_modules before install")
	return os.RemoveAll(path)
}
