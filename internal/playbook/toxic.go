package playbook

import (
	"bufio"
	"encoding/json"
	"os"
	"time"

	"cassmem/internal/fsutil"
	"cassmem/internal/logging"
	"cassmem/internal/similarity"
)

// toxicJaccardThreshold: a toxic entry also suppresses near-identical
// rewordings, not just exact content.
const toxicJaccardThreshold = 0.85

// ToxicEntry is one forgotten piece of content that must never be resurrected
// by reflection. Persisted append-only as NDJSON per scope.
type ToxicEntry struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Reason      string    `json:"reason,omitempty"`
	ForgottenAt time.Time `json:"forgottenAt"`
}

// LoadToxicEntries reads a toxic log, skipping malformed lines. A missing log
// is an empty list.
func LoadToxicEntries(path string) []ToxicEntry {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var entries []ToxicEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e ToxicEntry
		if err := json.Unmarshal(line, &e); err != nil {
			logging.Get(logging.CategoryPlaybook).Warn("Skipping malformed toxic entry in %s: %v", path, err)
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// AppendToxicEntry records a forgotten content in the given toxic log.
func AppendToxicEntry(path string, e ToxicEntry) error {
	if e.ForgottenAt.IsZero() {
		e.ForgottenAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return fsutil.AppendLine(path, string(data))
}

// IsToxic reports whether content matches any toxic entry, by normalized hash
// or by Jaccard above the suppression threshold.
func IsToxic(content string, entries []ToxicEntry) bool {
	h := similarity.HashContent(content)
	for _, e := range entries {
		if similarity.HashContent(e.Content) == h {
			return true
		}
		if similarity.Jaccard(content, e.Content) > toxicJaccardThreshold {
			return true
		}
	}
	return false
}

// FilterToxic drops suppressed bullets from a merged view. Source files keep
// the bullets until explicit removal.
func FilterToxic(bullets []*Bullet, entries []ToxicEntry) []*Bullet {
	if len(entries) == 0 {
		return bullets
	}
	out := make([]*Bullet, 0, len(bullets))
	suppressed := 0
	for _, b := range bullets {
		if IsToxic(b.Content, entries) {
			suppressed++
			continue
		}
		out = append(out, b)
	}
	if suppressed > 0 {
		logging.Playbook("Toxic filter suppressed %d bullet(s)", suppressed)
	}
	return out
}
