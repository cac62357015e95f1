//go:build integration

package itest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// mustRepoRoot resolves the module root from this file's location, so the
// tests work from any working directory.
func mustRepoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("locate itest sources")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
	if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
		t.Fatalf("repo root: %v", err)
	}
	return root
}
