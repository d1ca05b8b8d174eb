// Package outcome records the observed results of using rules and translates
// those observations into feedback events on the cited bullets.
package outcome

import (
	"bufio"
	"encoding/json"
	"os"
	"time"

	"cassmem/internal/fsutil"
	"cassmem/internal/logging"
)

// Status is the coarse result of a session.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusMixed   Status = "mixed"
)

// Record is one observed outcome, appended as NDJSON to the outcome log.
type Record struct {
	SessionID       string    `json:"sessionId"`
	Outcome         Status    `json:"outcome"`
	RulesUsed       []string  `json:"rulesUsed"`
	Notes           string    `json:"notes,omitempty"`
	DurationSeconds float64   `json:"durationSec,omitempty"`
	ErrorCount      int       `json:"errorCount,omitempty"`
	HadRetries      bool      `json:"hadRetries,omitempty"`
	Sentiment       string    `json:"sentiment,omitempty"` // "positive" | "negative" | ""
	RecordedAt      time.Time `json:"recordedAt"`
	Path            string    `json:"path,omitempty"`
}

// Append writes one record to the outcome log. The append primitive is atomic
// for short writes, so no lock is needed here; compaction would take one.
func Append(logPath string, rec Record) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := fsutil.AppendLine(logPath, string(data)); err != nil {
		return err
	}
	logging.Outcome("Recorded %s outcome for session %s (%d rules)", rec.Outcome, rec.SessionID, len(rec.RulesUsed))
	return nil
}

// Load reads all records, skipping malformed lines.
func Load(logPath string) []Record {
	f, err := os.Open(logPath)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			logging.Get(logging.CategoryOutcome).Warn("Skipping malformed outcome line: %v", err)
			continue
		}
		out = append(out, rec)
	}
	return out
}
