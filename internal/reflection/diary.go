package reflection

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cassmem/internal/fsutil"
	"cassmem/internal/llm"
	"cassmem/internal/playbook"
)

// diaryDocument is the persisted shape of one session diary.
type diaryDocument struct {
	SessionPath string    `json:"sessionPath"`
	Agent       string    `json:"agent"`
	ExtractedAt time.Time `json:"extractedAt"`
	Diary       llm.Diary `json:"diary"`
}

// SaveDiary persists one extracted diary under the diary directory, keyed by
// a digest of the session path.
func SaveDiary(dir, sessionPath, agent string, diary *llm.Diary) error {
	doc := diaryDocument{
		SessionPath: sessionPath,
		Agent:       agent,
		ExtractedAt: time.Now().UTC(),
		Diary:       *diary,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create diary directory: %w", err)
	}
	sum := sha256.Sum256([]byte(sessionPath))
	path := filepath.Join(dir, hex.EncodeToString(sum[:8])+".json")
	return fsutil.AtomicWrite(path, data)
}

// DeltasFromDiary turns a diary's key learnings into add deltas and its
// challenges into candidate anti-patterns. Learnings may carry a
// "category: rule" prefix; uncategorized learnings land in "general".
func DeltasFromDiary(diary *llm.Diary, sessionPath string) []DiaryDelta {
	var out []DiaryDelta
	for _, learning := range diary.KeyLearnings {
		category, content := splitCategory(learning)
		if content == "" {
			continue
		}
		out = append(out, DiaryDelta{
			Input: playbook.NewBulletInput{
				Content:  content,
				Category: category,
				Kind:     playbook.KindWorkflowRule,
				Tags:     diary.Tags,
			},
			SourceSession: sessionPath,
		})
	}
	for _, challenge := range diary.Challenges {
		if challenge == "" {
			continue
		}
		out = append(out, DiaryDelta{
			Input: playbook.NewBulletInput{
				Content:  "AVOID: " + challenge,
				Category: "pitfalls",
				Kind:     playbook.KindAntiPattern,
				Tags:     diary.Tags,
			},
			SourceSession: sessionPath,
		})
	}
	return out
}

// DiaryDelta is an add proposal distilled from a diary, pre-gate.
type DiaryDelta struct {
	Input         playbook.NewBulletInput
	SourceSession string
}

func splitCategory(learning string) (category, content string) {
	if i := strings.Index(learning, ":"); i > 0 && i < 40 {
		cat := strings.TrimSpace(learning[:i])
		rest := strings.TrimSpace(learning[i+1:])
		if cat != "" && rest != "" && !strings.Contains(cat, " ") {
			return strings.ToLower(cat), rest
		}
	}
	return "general", strings.TrimSpace(learning)
}
