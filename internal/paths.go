package internal

import (
	"fmt"
	"os"
	"path/filepath"
)

// WaylogDir returns the waylog data directory for a project.
func WaylogDir(projectPath string) string {
	return filepath.Join(projectPath, ".waylog")
}

// HistoryDir returns the archive directory for a project.
func HistoryDir(projectPath string) string {
	return filepath.Join(WaylogDir(projectPath), "history")
}

// StatePath returns the sync ledger path for a project.
func StatePath(projectPath string) string {
	return filepath.Join(WaylogDir(projectPath), "state.json")
}

func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return home, nil
}

// WriteFileAtomic writes data to path via a temp file in the same directory
// followed by a rename, so a crash never leaves a half-written file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
