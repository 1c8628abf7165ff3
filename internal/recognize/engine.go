// Package recognize implements the identity-matching engine: given one or
// more query embeddings of a detected face, it decides which enrolled
// identity (if any) the face belongs to.
package recognize

import (
	"context"
	"errors"
)

// DefaultThreshold is the cosine distance below which a face is accepted
// as a match. Matches the recognition threshold the embedding model was
// validated against.
const DefaultThreshold = 0.6

// Candidate is one enrolled identity with its embedding samples.
// Samples are append-only; an identity always carries at least one.
type Candidate struct {
	ID      string
	Samples [][]float32
}

// CandidateSource provides the enrolled identities to match against.
// Implementations must return identities in a stable order so repeated
// matches over an unchanged store produce identical results.
type CandidateSource interface {
	Candidates(ctx context.Context) ([]Candidate, error)
}

// MatchResult is the outcome of matching query embeddings against the
// enrolled identities. When Matched is false the other fields are zero.
type MatchResult struct {
	Matched    bool
	IdentityID string
	Distance   float64
	Confidence float64 // 1 - Distance
}

// Engine matches query embeddings against enrolled identities using a
// linear scan over the full cross-product of queries and samples.
//
// Cost is O(identities x samples x queries x dimension) per call, which
// is fine at roster scale (tens to low hundreds of identities). Anything
// larger needs an ANN index in front; see Index.
type Engine struct {
	source    CandidateSource
	threshold float64
}

// NewEngine creates a match engine. A non-positive threshold falls back
// to DefaultThreshold.
func NewEngine(source CandidateSource, threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{source: source, threshold: threshold}
}

// Threshold returns the configured distance cutoff.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Match finds the enrolled identity with the smallest minimum cosine
// distance across queries x samples. The minimum over the cross-product
// (rather than an average) rewards the single best-aligned pairing:
// multiple samples exist precisely to cover different capture conditions,
// and a poorly-lit sample must not penalize a good one.
//
// The match is accepted only if the global minimum is strictly below the
// threshold; otherwise the result reports no match.
func (e *Engine) Match(ctx context.Context, queries [][]float32) (MatchResult, error) {
	if len(queries) == 0 {
		return MatchResult{}, errors.New("no query embeddings")
	}

	candidates, err := e.source.Candidates(ctx)
	if err != nil {
		return MatchResult{}, err
	}

	bestID := ""
	bestDistance := 0.0
	found := false

	for _, c := range candidates {
		d := minDistance(queries, c.Samples)
		if !found || d < bestDistance {
			found = true
			bestID = c.ID
			bestDistance = d
		}
	}

	if !found || bestDistance >= e.threshold {
		return MatchResult{}, nil
	}

	return MatchResult{
		Matched:    true,
		IdentityID: bestID,
		Distance:   bestDistance,
		Confidence: 1 - bestDistance,
	}, nil
}

// minDistance returns the smallest cosine distance over queries x samples.
func minDistance(queries, samples [][]float32) float64 {
	best := 2.0
	for _, q := range queries {
		for _, s := range samples {
			if d := CosineDistance(q, s); d < best {
				best = d
			}
		}
	}
	return best
}
