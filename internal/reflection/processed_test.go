package reflection

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestProcessedLogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "global.processed.log")

	pl := LoadProcessedLog(path)
	if pl.Len() != 0 {
		t.Fatalf("fresh log len = %d", pl.Len())
	}

	pl.Add(ProcessedEntry{SessionPath: "/s/one.jsonl", DeltasProposed: 4, DeltasApplied: 2})
	pl.Add(ProcessedEntry{ID: "r2", SessionPath: "/s/two.jsonl", DeltasProposed: 1, DeltasApplied: 1})
	if err := pl.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := LoadProcessedLog(path)
	if reloaded.Len() != 2 {
		t.Fatalf("reloaded len = %d, want 2", reloaded.Len())
	}
	if !reloaded.Contains("/s/one.jsonl") || !reloaded.Contains("/s/two.jsonl") {
		t.Error("membership lost in round trip")
	}
	if reloaded.Contains("/s/three.jsonl") {
		t.Error("phantom membership")
	}
}

func TestProcessedLogFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "global.processed.log")
	pl := LoadProcessedLog(path)
	at := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	pl.Add(ProcessedEntry{SessionPath: "/s/one.jsonl", ProcessedAt: at, DeltasProposed: 3, DeltasApplied: 1})
	if err := pl.Save(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want header + 1 row", len(lines))
	}
	if !strings.HasPrefix(lines[0], "# id\t") {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "-\t/s/one.jsonl\t2026-07-01T12:00:00Z\t3\t1" {
		t.Errorf("row = %q", lines[1])
	}
}

func TestProcessedLogToleratesMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "global.processed.log")
	content := "# id\tsessionPath\tprocessedAt\tdeltasProposed\tdeltasApplied\n" +
		"-\t/s/good.jsonl\t2026-07-01T12:00:00Z\t1\t1\n" +
		"garbage line without tabs\n" +
		"-\t/s/badtime.jsonl\tnot-a-time\t1\t1\n" +
		"-\t/s/also-good.jsonl\t2026-07-02T12:00:00Z\t2\t0\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	pl := LoadProcessedLog(path)
	if pl.Len() != 2 {
		t.Fatalf("len = %d, want 2 (malformed lines skipped)", pl.Len())
	}
	if !pl.Contains("/s/good.jsonl") || !pl.Contains("/s/also-good.jsonl") {
		t.Error("good lines lost")
	}
}

func TestProcessedLogPath(t *testing.T) {
	dir := "/data/reflections"
	if got := ProcessedLogPath(dir, ""); got != filepath.Join(dir, "global.processed.log") {
		t.Errorf("global path = %q", got)
	}
	wsPath := ProcessedLogPath(dir, "/home/u/repo")
	base := filepath.Base(wsPath)
	if !strings.HasPrefix(base, "ws-") || !strings.HasSuffix(base, ".processed.log") {
		t.Errorf("workspace path = %q", wsPath)
	}
	if len(base) != len("ws-")+8+len(".processed.log") {
		t.Errorf("workspace hash not 8 hex chars: %q", base)
	}
	if again := ProcessedLogPath(dir, "/home/u/repo"); again != wsPath {
		t.Error("workspace path not stable")
	}
}
