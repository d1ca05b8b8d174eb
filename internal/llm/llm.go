// Package llm defines the contracts cassmem has with its external model
// collaborators - the rule validator and the diary extractor - plus verdict
// normalization and a GenAI-backed default client.
package llm

import (
	"context"
)

// Verdict values a validator may return.
const (
	VerdictAccept            = "ACCEPT"
	VerdictReject            = "REJECT"
	VerdictAcceptWithCaution = "ACCEPT_WITH_CAUTION"
	VerdictRefine            = "REFINE"
)

// ValidationResult is the validator's judgment of a candidate rule.
type ValidationResult struct {
	Valid               bool     `json:"valid"`
	Verdict             string   `json:"verdict"`
	Confidence          float64  `json:"confidence"`
	Evidence            []string `json:"evidence,omitempty"`
	SuggestedRefinement string   `json:"suggestedRefinement,omitempty"`
}

// Validator judges whether a candidate rule is supported by evidence.
type Validator interface {
	Validate(ctx context.Context, candidateRule, evidenceText string) (*ValidationResult, error)
}

// Diary is the distilled record of one session.
type Diary struct {
	Status          string   `json:"status"`
	Accomplishments []string `json:"accomplishments,omitempty"`
	Decisions       []string `json:"decisions,omitempty"`
	Challenges      []string `json:"challenges,omitempty"`
	Preferences     []string `json:"preferences,omitempty"`
	KeyLearnings    []string `json:"keyLearnings,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	SearchAnchors   []string `json:"searchAnchors,omitempty"`
}

// DiaryMetadata accompanies an extraction request.
type DiaryMetadata struct {
	SessionPath string `json:"sessionPath"`
	Agent       string `json:"agent"`
}

// DiaryExtractor distills a sanitized session transcript into a diary.
type DiaryExtractor interface {
	ExtractDiary(ctx context.Context, sanitizedSessionText string, meta DiaryMetadata) (*Diary, error)
}

// Normalize folds non-terminal verdicts into actionable ones: a REFINE
// verdict becomes accept-with-caution at reduced confidence.
func Normalize(r *ValidationResult) *ValidationResult {
	if r == nil {
		return nil
	}
	out := *r
	if out.Verdict == VerdictRefine {
		out.Verdict = VerdictAcceptWithCaution
		out.Valid = true
		out.Confidence *= 0.8
	}
	return &out
}
