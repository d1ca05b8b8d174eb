package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAtomicWriteReplacesContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.yaml")

	if err := AtomicWrite(path, []byte("first")); err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}
	if err := AtomicWrite(path, []byte("second")); err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("contents = %q, want \"second\"", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestAtomicWriteMissingDirFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "data.yaml")
	if err := AtomicWrite(path, []byte("x")); err == nil {
		t.Fatal("expected error for missing parent directory")
	}
}

func TestAppendLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.ndjson")

	for _, line := range []string{`{"a":1}`, `{"a":2}`, `{"a":3}`} {
		if err := AppendLine(path, line); err != nil {
			t.Fatalf("AppendLine: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if lines[2] != `{"a":3}` {
		t.Errorf("last line = %q", lines[2])
	}
}
