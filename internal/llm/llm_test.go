package llm

import (
	"math"
	"testing"
)

func TestNormalizeRefine(t *testing.T) {
	in := &ValidationResult{Valid: false, Verdict: VerdictRefine, Confidence: 0.9}
	out := Normalize(in)

	if out.Verdict != VerdictAcceptWithCaution {
		t.Errorf("verdict = %s, want %s", out.Verdict, VerdictAcceptWithCaution)
	}
	if !out.Valid {
		t.Error("refined verdict must become valid")
	}
	if math.Abs(out.Confidence-0.72) > 1e-9 {
		t.Errorf("confidence = %v, want 0.72", out.Confidence)
	}
	// Input untouched.
	if in.Verdict != VerdictRefine || in.Confidence != 0.9 {
		t.Error("Normalize mutated its input")
	}
}

func TestNormalizePassThrough(t *testing.T) {
	for _, verdict := range []string{VerdictAccept, VerdictReject, VerdictAcceptWithCaution} {
		in := &ValidationResult{Verdict: verdict, Confidence: 0.5}
		out := Normalize(in)
		if out.Verdict != verdict || out.Confidence != 0.5 {
			t.Errorf("Normalize changed %s: %+v", verdict, out)
		}
	}
	if Normalize(nil) != nil {
		t.Error("Normalize(nil) != nil")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced block", "Here you go:\n```json\n{\"a\":1}\n```\nenjoy", `{"a":1}`},
		{"prose wrapped", `The answer is {"a":1} as requested.`, `{"a":1}`},
		{"no json", "nothing here", "nothing here"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractJSON(tc.input); got != tc.want {
				t.Errorf("extractJSON = %q, want %q", got, tc.want)
			}
		})
	}
}
