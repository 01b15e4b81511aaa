// Package fs provides file system helpers used by the serializer to write
// the reload/reexec state stream durably.
package fs

import (
	"crypto/sha1" //nolint:gosec // content comparison only, not security-sensitive
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriteFile writes data to path by first writing to a sibling temp file
// and renaming it into place, so a reader never observes a partially-written
// reload state stream.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to chmod temp file %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tmpName, path, err)
	}
	return nil
}

// ContentHash calculates a SHA1 hash for change detection, e.g. to decide
// whether a freshly serialized stream differs from the one on disk.
func ContentHash(content []byte) []byte {
	hash := sha1.New() //nolint:gosec // not used for security purposes
	hash.Write(content)
	return hash.Sum(nil)
}

// HasChanged reports whether content differs from what is currently stored at path.
// A missing or unreadable file is treated as changed.
func HasChanged(path string, content []byte) bool {
	existing, err := os.ReadFile(path) //nolint:gosec // path is internally constructed
	if err != nil {
		return true
	}
	return string(existing) != string(content)
}
