// Package sanitize redacts secrets from all externally-supplied text before it
// is persisted, embedded in prompts, or shown. The built-in pattern list
// covers the common secret classes; config may extend it with extra patterns
// that pass a ReDoS guard. Sanitization is idempotent.
package sanitize

import (
	"regexp"

	"cassmem/internal/config"
	"cassmem/internal/logging"
)

const redactedPlaceholder = "[REDACTED]"

// maxExtraPatternLen bounds config-supplied patterns; anything longer is
// rejected by the ReDoS guard.
const maxExtraPatternLen = 256

type rule struct {
	name string
	re   *regexp.Regexp
}

// builtinRules cover the fixed secret classes: cloud keys, bearer/API tokens,
// PEM blocks, version-control tokens, messaging-service tokens, and database
// URLs with credentials.
var builtinRules = []rule{
	{"aws-access-key", regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`)},
	{"aws-secret-key", regexp.MustCompile(`(?i)\baws_?secret_?access_?key\b\s*[:=]\s*\S+`)},
	{"google-api-key", regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{35}\b`)},
	{"bearer-token", regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9_\-.~+/]{16,}=*`)},
	{"api-key-assignment", regexp.MustCompile(`(?i)\b(?:api[_-]?key|api[_-]?secret|access[_-]?token|auth[_-]?token)\b\s*[:=]\s*['"]?[A-Za-z0-9_\-.]{12,}['"]?`)},
	{"anthropic-key", regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_\-]{16,}\b`)},
	{"openai-key", regexp.MustCompile(`\bsk-[A-Za-z0-9]{32,}\b`)},
	{"pem-block", regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`)},
	{"github-token", regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`)},
	{"gitlab-token", regexp.MustCompile(`\bglpat-[A-Za-z0-9_\-]{20,}\b`)},
	{"slack-token", regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9\-]{10,}\b`)},
	{"database-url", regexp.MustCompile(`\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^:\s/]+:[^@\s]+@[^\s]+`)},
}

// nestedQuantifier flags patterns of the form ([...][*+][...])[*+?] whose
// backtracking cost explodes on crafted input.
var nestedQuantifier = regexp.MustCompile(`\([^)]*[*+][^)]*\)[*+?]`)

// Sanitizer applies the redaction rules.
type Sanitizer struct {
	rules   []rule
	enabled bool
	audit   bool
	debug   bool
}

// New builds a sanitizer from config. Invalid or guard-rejected extra
// patterns are skipped with a warning, never fatal.
func New(cfg config.SanitizationConfig) *Sanitizer {
	s := &Sanitizer{
		rules:   builtinRules,
		enabled: cfg.Enabled,
		audit:   cfg.AuditLog,
		debug:   cfg.AuditLevel == "debug",
	}

	for _, p := range cfg.ExtraPatterns {
		if len(p) > maxExtraPatternLen {
			logging.Get(logging.CategorySanitize).Warn("Skipping extra pattern: longer than %d chars", maxExtraPatternLen)
			continue
		}
		if nestedQuantifier.MatchString(p) {
			logging.Get(logging.CategorySanitize).Warn("Skipping extra pattern with nested quantifiers: %q", p)
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			logging.Get(logging.CategorySanitize).Warn("Skipping invalid extra pattern %q: %v", p, err)
			continue
		}
		s.rules = append(s.rules, rule{name: "extra", re: re})
	}

	return s
}

// Sanitize replaces every secret match with a redaction placeholder.
// Re-applying is a no-op: the placeholder matches none of the rules.
func (s *Sanitizer) Sanitize(text string) string {
	if !s.enabled || text == "" {
		return text
	}

	out := text
	for _, r := range s.rules {
		hits := 0
		out = r.re.ReplaceAllStringFunc(out, func(string) string {
			hits++
			return redactedPlaceholder
		})
		if hits > 0 && s.audit {
			if s.debug {
				logging.SanitizeDebug("Redacted %d match(es) of class %s", hits, r.name)
			} else {
				logging.Sanitize("Redacted %d match(es) of class %s", hits, r.name)
			}
		}
	}
	return out
}
