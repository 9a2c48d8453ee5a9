package core

import "context"

// Candidate is one ranked classification outcome.
type Candidate struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"` // in [0,1]
}

// Classification is the transient result of classifying one inbound
// message: candidates ordered by confidence descending, ties broken by the
// order intents were registered. It is never persisted.
type Classification struct {
	Candidates []Candidate `json:"candidates"`
}

// Top returns the highest-ranked candidate, if any.
func (c Classification) Top() (Candidate, bool) {
	if len(c.Candidates) == 0 {
		return Candidate{}, false
	}
	return c.Candidates[0], true
}

// Classifier produces a ranked list of candidate intents for a message and
// optional structured context.
//
// Implementations must be pure with respect to the registry: they never
// contact an agent, and identical (text, context) input yields identical
// output across repeated calls.
type Classifier interface {
	Classify(ctx context.Context, text string, context map[string]any) (Classification, error)
}
