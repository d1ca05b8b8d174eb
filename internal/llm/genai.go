package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"cassmem/internal/logging"
)

// GenAIClient implements Validator and DiaryExtractor over Google's Gemini
// API. Missing credentials are a construction-time error; callers degrade per
// policy (skip validation, fail open to draft).
type GenAIClient struct {
	client *genai.Client
	model  string
}

// NewGenAIClient builds the client.
func NewGenAIClient(ctx context.Context, apiKey, model string) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	logging.API("GenAI client ready: model=%s", model)
	return &GenAIClient{client: client, model: model}, nil
}

const validatePrompt = `You are judging whether a proposed coding rule is supported by evidence from past sessions.

Candidate rule:
%s

Evidence:
%s

Return JSON only:
{"valid": true|false, "verdict": "ACCEPT"|"REJECT"|"ACCEPT_WITH_CAUTION"|"REFINE", "confidence": 0.0-1.0, "evidence": ["supporting quotes"], "suggestedRefinement": "optional improved wording"}`

// Validate asks the model for a verdict on a candidate rule.
func (c *GenAIClient) Validate(ctx context.Context, candidateRule, evidenceText string) (*ValidationResult, error) {
	timer := logging.StartTimer(logging.CategoryAPI, "GenAI.Validate")
	defer timer.Stop()

	text, err := c.generate(ctx, fmt.Sprintf(validatePrompt, candidateRule, evidenceText))
	if err != nil {
		return nil, err
	}

	var result ValidationResult
	if err := json.Unmarshal([]byte(extractJSON(text)), &result); err != nil {
		return nil, fmt.Errorf("failed to parse validator response: %w", err)
	}
	logging.API("Validator verdict: %s (confidence=%.2f)", result.Verdict, result.Confidence)
	return &result, nil
}

const diaryPrompt = `Distill this coding session transcript into a diary.

Session: %s (agent: %s)

Transcript:
%s

Return JSON only:
{"status": "ok", "accomplishments": [], "decisions": [], "challenges": [], "preferences": [], "keyLearnings": [], "tags": [], "searchAnchors": []}

keyLearnings must be reusable, generalized rules ("category: rule text"), not session-specific trivia.`

// ExtractDiary distills a sanitized transcript into a diary document.
func (c *GenAIClient) ExtractDiary(ctx context.Context, sanitizedSessionText string, meta DiaryMetadata) (*Diary, error) {
	timer := logging.StartTimer(logging.CategoryAPI, "GenAI.ExtractDiary")
	defer timer.Stop()

	text, err := c.generate(ctx, fmt.Sprintf(diaryPrompt, meta.SessionPath, meta.Agent, sanitizedSessionText))
	if err != nil {
		return nil, err
	}

	var diary Diary
	if err := json.Unmarshal([]byte(extractJSON(text)), &diary); err != nil {
		return nil, fmt.Errorf("failed to parse diary response: %w", err)
	}
	if diary.Status == "" {
		diary.Status = "ok"
	}
	return &diary, nil
}

func (c *GenAIClient) generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		logging.Get(logging.CategoryAPI).Error("GenAI call failed: %v", err)
		return "", fmt.Errorf("GenAI call failed: %w", err)
	}
	return result.Text(), nil
}

// extractJSON pulls the first JSON object out of a model response that may be
// wrapped in prose or a fenced code block.
func extractJSON(text string) string {
	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
