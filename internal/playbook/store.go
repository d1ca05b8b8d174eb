package playbook

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"cassmem/internal/fsutil"
	"cassmem/internal/logging"
	"cassmem/internal/similarity"
)

// Load reads one playbook file. A missing or empty file yields an empty
// playbook, never an error. A file that fails to parse or validate is
// quarantined to <path>.backup.<epoch> and an empty playbook is returned with
// a warning; user data is never silently dropped.
func Load(path string) (*Playbook, error) {
	timer := logging.StartTimer(logging.CategoryPlaybook, "Load")
	defer timer.Stop()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.PlaybookDebug("No playbook at %s, starting empty", path)
			return New(defaultName(path)), nil
		}
		return nil, fmt.Errorf("failed to read playbook %s: %w", path, err)
	}
	if len(data) == 0 {
		return New(defaultName(path)), nil
	}

	var pb Playbook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		return quarantine(path, fmt.Errorf("parse failure: %w", err))
	}
	if err := validate(&pb); err != nil {
		return quarantine(path, err)
	}

	for _, b := range pb.Bullets {
		if b.ContentHash == "" {
			b.ContentHash = similarity.HashContent(b.Content)
		}
	}

	logging.PlaybookDebug("Loaded playbook %s: %d bullets", path, len(pb.Bullets))
	return &pb, nil
}

func defaultName(path string) string {
	base := filepath.Base(filepath.Dir(path))
	if base == "." || base == string(filepath.Separator) {
		return "playbook"
	}
	return base
}

// quarantine renames a corrupt file aside and surfaces an empty playbook.
func quarantine(path string, cause error) (*Playbook, error) {
	backup := fmt.Sprintf("%s.backup.%d", path, time.Now().Unix())
	if err := os.Rename(path, backup); err != nil {
		logging.Get(logging.CategoryPlaybook).Error("Failed to quarantine corrupt playbook %s: %v", path, err)
	} else {
		logging.Get(logging.CategoryPlaybook).Warn("Corrupt playbook %s moved to %s: %v", path, backup, cause)
	}
	fmt.Fprintf(os.Stderr, "Warning: playbook %s was corrupt (%v); backed up to %s\n", path, cause, backup)
	return New(defaultName(path)), nil
}

func validate(pb *Playbook) error {
	if pb.SchemaVersion <= 0 {
		return fmt.Errorf("schema validation: missing schema_version")
	}
	seen := make(map[string]struct{}, len(pb.Bullets))
	for i, b := range pb.Bullets {
		if b == nil || b.ID == "" {
			return fmt.Errorf("schema validation: bullet %d has no id", i)
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("schema validation: duplicate bullet id %q", b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	return nil
}

// Save serializes the playbook through the atomic writer, stamping
// metadata.lastReflection first. Callers mutate under the file's lock.
func Save(path string, pb *Playbook) error {
	timer := logging.StartTimer(logging.CategoryPlaybook, "Save")
	defer timer.Stop()

	now := time.Now().UTC()
	pb.Metadata.LastReflection = &now
	if pb.SchemaVersion == 0 {
		pb.SchemaVersion = SchemaVersion
	}

	data, err := yaml.Marshal(pb)
	if err != nil {
		return fmt.Errorf("failed to marshal playbook: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create playbook directory: %w", err)
	}
	if err := fsutil.AtomicWrite(path, data); err != nil {
		return err
	}

	logging.Playbook("Saved playbook %s: %d bullets", path, len(pb.Bullets))
	return nil
}

// Sources names the cascade for a merged view: the global playbook always,
// plus the repo overlay when present.
type Sources struct {
	GlobalPath string
	RepoPath   string // empty when no repo overlay applies

	GlobalToxicPath string
	RepoToxicPath   string
}

// LoadMerged loads the cascade and returns the merged, toxic-filtered view.
// Merge rule: by id, repo entries override global entries; deprecatedPatterns
// concatenate global-first; metadata is the global's. Filtering applies to the
// view only - on-disk files keep their bullets until explicit removal.
func LoadMerged(src Sources) (*Playbook, error) {
	global, err := Load(src.GlobalPath)
	if err != nil {
		return nil, err
	}

	merged := global
	if src.RepoPath != "" {
		if _, statErr := os.Stat(src.RepoPath); statErr == nil {
			repo, err := Load(src.RepoPath)
			if err != nil {
				return nil, err
			}
			merged = mergeCascade(global, repo)
		}
	}

	toxic := LoadToxicEntries(src.GlobalToxicPath)
	if src.RepoToxicPath != "" {
		toxic = append(toxic, LoadToxicEntries(src.RepoToxicPath)...)
	}
	if len(toxic) > 0 {
		merged.Bullets = FilterToxic(merged.Bullets, toxic)
	}

	return merged, nil
}

func mergeCascade(global, repo *Playbook) *Playbook {
	out := &Playbook{
		SchemaVersion: global.SchemaVersion,
		Name:          global.Name,
		Description:   global.Description,
		Metadata:      global.Metadata,
	}
	out.DeprecatedPatterns = append(out.DeprecatedPatterns, global.DeprecatedPatterns...)
	out.DeprecatedPatterns = append(out.DeprecatedPatterns, repo.DeprecatedPatterns...)

	overridden := make(map[string]*Bullet, len(repo.Bullets))
	for _, b := range repo.Bullets {
		overridden[b.ID] = b
	}

	for _, b := range global.Bullets {
		if r, ok := overridden[b.ID]; ok {
			out.Bullets = append(out.Bullets, r)
			delete(overridden, b.ID)
			continue
		}
		out.Bullets = append(out.Bullets, b)
	}
	// Repo-only bullets keep their file order after the global ones.
	for _, b := range repo.Bullets {
		if _, pending := overridden[b.ID]; pending {
			out.Bullets = append(out.Bullets, b)
		}
	}

	logging.PlaybookDebug("Cascade merge: %d global + %d repo -> %d bullets",
		len(global.Bullets), len(repo.Bullets), len(out.Bullets))
	return out
}

// OwnerPath routes a write for an id to the file that currently owns it.
// When neither file owns the id, new bullets default to the global file.
func OwnerPath(src Sources, id string) (string, error) {
	if src.RepoPath != "" {
		if repo, err := Load(src.RepoPath); err == nil && FindBullet(repo, id) != nil {
			return src.RepoPath, nil
		}
	}
	global, err := Load(src.GlobalPath)
	if err != nil {
		return "", err
	}
	if FindBullet(global, id) != nil {
		return src.GlobalPath, nil
	}
	return src.GlobalPath, nil
}
