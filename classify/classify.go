// Package classify implements intent classifiers. Classifiers are pure with
// respect to the registry: they never contact an agent, and identical input
// always yields identical ranked candidates, which keeps routing decisions
// reproducible and testable.
package classify

import (
	"context"

	"github.com/intentmesh/intentmesh/core"
)

// Func adapts an ordinary function to the core.Classifier interface.
type Func func(ctx context.Context, text string, reqContext map[string]any) (core.Classification, error)

// Classify implements core.Classifier.
func (f Func) Classify(ctx context.Context, text string, reqContext map[string]any) (core.Classification, error) {
	return f(ctx, text, reqContext)
}

// Static always returns the same ranked candidates regardless of input.
// Useful for tests and single-intent deployments.
type Static struct {
	result core.Classification
}

// NewStatic creates a classifier with a fixed result.
func NewStatic(candidates ...core.Candidate) *Static {
	return &Static{result: core.Classification{Candidates: candidates}}
}

// Classify implements core.Classifier.
func (s *Static) Classify(context.Context, string, map[string]any) (core.Classification, error) {
	out := make([]core.Candidate, len(s.result.Candidates))
	copy(out, s.result.Candidates)
	return core.Classification{Candidates: out}, nil
}
