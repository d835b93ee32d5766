// Package testutil holds fixture builders shared by the package tests.
// The builders write vendor-shaped session stores into temp directories so
// provider parsing can be exercised without touching a real machine.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Msg is one conversation turn in a fixture session.
type Msg struct {
	Role    string // "user" or "assistant"
	Content string
	At      time.Time
}

// TempProject creates a directory standing in for a user project.
func TempProject(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to resolve temp dir: %v", err)
	}
	return dir
}

// WriteFile writes a file, creating parent directories as needed.
func WriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create fixture directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write fixture %s: %v", path, err)
	}
}

// BaseTime is the reference timestamp fixtures count from, chosen in the
// past so "newest first" orderings are stable against the wall clock.
func BaseTime() time.Time {
	return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
}
