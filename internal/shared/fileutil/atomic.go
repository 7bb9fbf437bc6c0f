// Package fileutil holds the file-replacement helpers shared by every
// component that overwrites a file another process may be reading.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile overwrites path through a temp file and rename, so readers see
// either the previous content or the complete new one. Missing parent
// directories are created.
func WriteFile(path string, data []byte) error {
	tmp, err := CreateTemp(path, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// CreateTemp writes data to a hidden temp file next to path and returns its
// name. The caller renames it into place or removes it.
func CreateTemp(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", path, err)
	}
	name := f.Name()
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("chmod %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return name, nil
}
