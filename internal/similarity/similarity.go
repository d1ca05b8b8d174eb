// Package similarity provides the content-matching primitives shared by
// deduplication, toxic filtering and relevance ranking: a normalized content
// hash, token Jaccard overlap and cosine similarity over embeddings.
package similarity

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

// stopWords are excluded from tokenization. Short function words dominate
// prose and would inflate overlap between unrelated rules.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "has": {}, "have": {}, "this": {},
	"that": {}, "with": {}, "from": {}, "they": {}, "will": {}, "would": {},
	"there": {}, "their": {}, "what": {}, "about": {}, "which": {}, "when": {},
	"your": {}, "them": {}, "then": {}, "than": {}, "into": {}, "only": {},
	"over": {}, "also": {}, "after": {}, "before": {}, "should": {}, "could": {},
	"been": {}, "were": {}, "does": {}, "doing": {}, "don": {}, "use": {},
	"using": {}, "used": {},
}

// Normalize lowercases and collapses whitespace runs to single spaces.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// HashContent returns a stable 16-hex-digit hash of the normalized content.
// Strings differing only by case or whitespace hash identically.
func HashContent(s string) string {
	h := fnv.New64a()
	h.Write([]byte(Normalize(s)))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Tokenize splits text into lowercase ASCII word tokens of length >= 3,
// excluding stop words.
func Tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() >= 3 {
			word := cur.String()
			if _, stop := stopWords[word]; !stop {
				tokens = append(tokens, word)
			}
		}
		cur.Reset()
	}
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// Jaccard returns token-set Jaccard similarity in [0, 1]. Empty token sets
// yield 0 unless both inputs tokenize identically empty, in which case two
// equal strings still compare as 1 via the degenerate |A∪B| == 0 case being
// treated as 0 only when the inputs differ.
func Jaccard(a, b string) float64 {
	ta, tb := Tokenize(a), Tokenize(b)
	if len(ta) == 0 && len(tb) == 0 {
		if Normalize(a) == Normalize(b) && a != "" {
			return 1
		}
		return 0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		setB[t] = struct{}{}
	}

	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Cosine returns cosine similarity between two vectors. Zero when either
// vector is empty or lengths mismatch.
func Cosine(u, v []float32) float64 {
	if len(u) == 0 || len(v) == 0 || len(u) != len(v) {
		return 0
	}
	var dot, mu, mv float64
	for i := range u {
		dot += float64(u[i]) * float64(v[i])
		mu += float64(u[i]) * float64(u[i])
		mv += float64(v[i]) * float64(v[i])
	}
	if mu == 0 || mv == 0 {
		return 0
	}
	return dot / (math.Sqrt(mu) * math.Sqrt(mv))
}

// Keywords extracts up to max distinct tokens from text, longest first.
// Longer tokens tend to be the domain-bearing ones.
func Keywords(text string, max int) []string {
	if max <= 0 {
		max = 8
	}
	seen := make(map[string]struct{})
	var uniq []string
	for _, t := range Tokenize(text) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		uniq = append(uniq, t)
	}
	sort.SliceStable(uniq, func(i, j int) bool {
		return len(uniq[i]) > len(uniq[j])
	})
	if len(uniq) > max {
		uniq = uniq[:max]
	}
	return uniq
}
