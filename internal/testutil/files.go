package testutil

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// TempDB returns the path of a database file inside a per-test temporary
// directory. The file does not exist yet.
func TempDB(t testing.TB) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "kv.db")
}

// WriteScript writes src to a file called name in a per-test temporary
// directory and returns its path.
func WriteScript(t testing.TB, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatalf("write script %s: %v", name, err)
	}
	return path
}

// CaptureLogger returns a debug-level text logger writing into the returned
// buffer.
func CaptureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h), &buf
}
