package playbook

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	pb, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(pb.Bullets) != 0 {
		t.Errorf("bullets = %d, want 0", len(pb.Bullets))
	}
}

func TestLoadEmptyFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	pb, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(pb.Bullets) != 0 {
		t.Errorf("bullets = %d, want 0", len(pb.Bullets))
	}
}

func TestLoadCorruptFileQuarantines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "playbook.yaml")
	if err := os.WriteFile(path, []byte("{{{not yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	pb, err := Load(path)
	if err != nil {
		t.Fatalf("Load must not error on corrupt files: %v", err)
	}
	if len(pb.Bullets) != 0 {
		t.Error("corrupt file should yield an empty playbook")
	}

	entries, _ := os.ReadDir(dir)
	backed := false
	for _, e := range entries {
		if strings.Contains(e.Name(), ".backup.") {
			backed = true
		}
	}
	if !backed {
		t.Error("corrupt file was not quarantined to a .backup.<epoch> file")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playbook.yaml")

	pb := New("test")
	b := AddBullet(pb, NewBulletInput{Content: "use table tests", Category: "testing"}, "/home/u/.claude/s1.jsonl", 90)
	RecordFeedbackEvent(pb, b.ID, FeedbackHelpful, FeedbackOptions{Reason: "worked"})

	if err := Save(path, pb); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(loaded.Bullets) != 1 {
		t.Fatalf("bullets = %d, want 1", len(loaded.Bullets))
	}
	got := loaded.Bullets[0]
	if got.ID != b.ID || got.Content != b.Content || got.Category != b.Category {
		t.Errorf("round trip mismatch: got %+v", got)
	}
	if got.HelpfulCount != 1 || len(got.FeedbackEvents) != 1 {
		t.Errorf("feedback lost in round trip: count=%d events=%d", got.HelpfulCount, len(got.FeedbackEvents))
	}
	if loaded.Metadata.LastReflection == nil {
		t.Error("lastReflection not stamped on save")
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "playbook.yaml")
	doc := `schema_version: 1
name: test
metadata:
  createdAt: 2026-01-01T00:00:00Z
bullets:
  - id: dup
    content: one
  - id: dup
    content: two
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	pb, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(pb.Bullets) != 0 {
		t.Error("duplicate-id file must be quarantined, not loaded")
	}
}

func writePlaybook(t *testing.T, path string, pb *Playbook) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := Save(path, pb); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMergedCascade(t *testing.T) {
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global", "playbook.yaml")
	repoPath := filepath.Join(dir, "repo", ".cass", "playbook.yaml")

	global := New("global")
	shared := AddBullet(global, NewBulletInput{Content: "global wording", Category: "style"}, "", 90)
	AddBullet(global, NewBulletInput{Content: "global only rule", Category: "style"}, "", 90)
	global.DeprecatedPatterns = []DeprecatedPattern{{Pattern: "var x"}}
	writePlaybook(t, globalPath, global)

	repo := New("repo")
	override := *shared
	override.Content = "repo wording"
	repo.Bullets = append(repo.Bullets, &override)
	AddBullet(repo, NewBulletInput{Content: "repo only rule", Category: "style"}, "", 90)
	repo.DeprecatedPatterns = []DeprecatedPattern{{Pattern: "println"}}
	writePlaybook(t, repoPath, repo)

	merged, err := LoadMerged(Sources{GlobalPath: globalPath, RepoPath: repoPath})
	if err != nil {
		t.Fatalf("LoadMerged: %v", err)
	}

	if len(merged.Bullets) != 3 {
		t.Fatalf("merged bullets = %d, want 3", len(merged.Bullets))
	}
	got := FindBullet(merged, shared.ID)
	if got == nil || got.Content != "repo wording" {
		t.Errorf("repo entry did not override global by id: %+v", got)
	}
	if len(merged.DeprecatedPatterns) != 2 || merged.DeprecatedPatterns[0].Pattern != "var x" {
		t.Errorf("deprecatedPatterns not concatenated global-first: %+v", merged.DeprecatedPatterns)
	}
	if merged.Name != "global" {
		t.Errorf("merged metadata must be the global's (name=%q)", merged.Name)
	}
}

func TestToxicSuppressionInMergedView(t *testing.T) {
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "playbook.yaml")
	toxicPath := filepath.Join(dir, "toxic_bullets.log")

	global := New("global")
	AddBullet(global, NewBulletInput{Content: "use global state EVERYWHERE!", Category: "style"}, "", 90)
	keep := AddBullet(global, NewBulletInput{Content: "prefer dependency injection", Category: "style"}, "", 90)
	writePlaybook(t, globalPath, global)

	if err := AppendToxicEntry(toxicPath, ToxicEntry{ID: "t1", Content: "Use global state everywhere"}); err != nil {
		t.Fatal(err)
	}

	merged, err := LoadMerged(Sources{GlobalPath: globalPath, GlobalToxicPath: toxicPath})
	if err != nil {
		t.Fatalf("LoadMerged: %v", err)
	}
	if len(merged.Bullets) != 1 || merged.Bullets[0].ID != keep.ID {
		t.Fatalf("toxic bullet not suppressed from merged view: %+v", merged.Bullets)
	}

	// On-disk file still carries the bullet until explicit removal.
	onDisk, err := Load(globalPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(onDisk.Bullets) != 2 {
		t.Errorf("on-disk bullets = %d, want 2 (filtering is view-only)", len(onDisk.Bullets))
	}
}

func TestToxicLogSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toxic.log")
	content := `{"id":"a","content":"bad advice","forgottenAt":"2026-01-01T00:00:00Z"}
not json at all
{"id":"b","content":"worse advice","forgottenAt":"2026-01-02T00:00:00Z"}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	entries := LoadToxicEntries(path)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
}
