package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteScript writes raw to name under dir and
// returns its path.
func WriteScript(t testing.TB, dir, name, raw string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	WriteFile(t, path, []byte(raw))
	return path
}
