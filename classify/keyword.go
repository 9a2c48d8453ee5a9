package classify

import (
	"context"
	"sort"
	"strings"

	"github.com/intentmesh/intentmesh/core"
)

// Rule binds an intent to the signals that suggest it. Keywords match
// case-insensitively as substrings of the message text; ContextKeys match
// when the key is present in the request context. Each hit contributes
// Weight (default 1) to the intent's raw score.
type Rule struct {
	Intent      string
	Keywords    []string
	ContextKeys []string
	Weight      float64
}

// Keyword is a deterministic heuristic classifier over keyword rules.
//
// The raw score of an intent is the summed weight of its matched signals;
// confidence saturates as score/(score+1), so one default-weight hit scores
// 0.5 and additional hits approach 1 without reaching it. Candidates are
// ranked by confidence descending with ties broken by the order rules were
// registered, making the full ranking stable across calls.
type Keyword struct {
	rules []Rule
}

// NewKeyword creates a keyword classifier. Rule order is the registration
// order used for tie-breaking.
func NewKeyword(rules ...Rule) *Keyword {
	normalized := make([]Rule, len(rules))
	copy(normalized, rules)
	for i := range normalized {
		if normalized[i].Weight <= 0 {
			normalized[i].Weight = 1
		}
	}
	return &Keyword{rules: normalized}
}

// Classify implements core.Classifier. It is idempotent for identical
// (text, context) input and never errors.
func (k *Keyword) Classify(_ context.Context, text string, reqContext map[string]any) (core.Classification, error) {
	lowered := strings.ToLower(text)

	candidates := make([]core.Candidate, 0, len(k.rules))
	for _, rule := range k.rules {
		var score float64
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(lowered, strings.ToLower(kw)) {
				score += rule.Weight
			}
		}
		for _, key := range rule.ContextKeys {
			if _, ok := reqContext[key]; ok {
				score += rule.Weight
			}
		}
		if score == 0 {
			continue
		}
		candidates = append(candidates, core.Candidate{
			Intent:     rule.Intent,
			Confidence: score / (score + 1),
		})
	}

	// Stable sort keeps registration order for equal confidences.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	return core.Classification{Candidates: candidates}, nil
}
