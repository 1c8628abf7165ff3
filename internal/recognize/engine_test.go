package recognize

import (
	"context"
	"errors"
	"math"
	"testing"
)

// staticSource serves a fixed candidate list.
type staticSource struct {
	candidates []Candidate
	err        error
}

func (s *staticSource) Candidates(ctx context.Context) ([]Candidate, error) {
	return s.candidates, s.err
}

// unitAngle builds a 2D unit vector whose cosine distance from unitAngle(0)
// is exactly 1 - cos(rad).
func unitAngle(rad float64) []float32 {
	return []float32{float32(math.Cos(rad)), float32(math.Sin(rad))}
}

// atDistance returns an embedding at the given cosine distance from base.
func atDistance(d float64) []float32 {
	return unitAngle(math.Acos(1 - d))
}

func TestMatchSelf(t *testing.T) {
	sample := []float32{0.1, 0.5, -0.3, 0.8}
	engine := NewEngine(&staticSource{candidates: []Candidate{
		{ID: "S1", Samples: [][]float32{sample}},
	}}, 0.6)

	result, err := engine.Match(context.Background(), [][]float32{sample})
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if !result.Matched || result.IdentityID != "S1" {
		t.Fatalf("expected match on S1, got %+v", result)
	}
	if math.Abs(result.Confidence-1) > 1e-6 {
		t.Errorf("self-match confidence = %f, want ~1", result.Confidence)
	}
}

func TestMatchBestAcrossCrossProduct(t *testing.T) {
	// S1 enrolled with two samples: one at distance 0.2 from the query,
	// one far away. Minimum over the cross-product must pick 0.2.
	engine := NewEngine(&staticSource{candidates: []Candidate{
		{ID: "S1", Samples: [][]float32{atDistance(0.2), atDistance(0.9)}},
		{ID: "S2", Samples: [][]float32{atDistance(0.5)}},
	}}, 0.6)

	result, err := engine.Match(context.Background(), [][]float32{unitAngle(0)})
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if !result.Matched || result.IdentityID != "S1" {
		t.Fatalf("expected S1, got %+v", result)
	}
	if math.Abs(result.Distance-0.2) > 1e-5 {
		t.Errorf("distance = %f, want ~0.2", result.Distance)
	}
	if math.Abs(result.Confidence-0.8) > 1e-5 {
		t.Errorf("confidence = %f, want ~0.8", result.Confidence)
	}
}

func TestMatchMultipleQueries(t *testing.T) {
	// The normalized-variant query aligns better than the raw one;
	// either being close is enough.
	engine := NewEngine(&staticSource{candidates: []Candidate{
		{ID: "S1", Samples: [][]float32{unitAngle(0)}},
	}}, 0.6)

	raw := atDistance(0.7) // alone, would miss
	normalized := atDistance(0.1)
	result, err := engine.Match(context.Background(), [][]float32{raw, normalized})
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if !result.Matched {
		t.Fatalf("expected match, got %+v", result)
	}
	if math.Abs(result.Distance-0.1) > 1e-5 {
		t.Errorf("distance = %f, want ~0.1", result.Distance)
	}
}

func TestMatchAboveThreshold(t *testing.T) {
	engine := NewEngine(&staticSource{candidates: []Candidate{
		{ID: "S1", Samples: [][]float32{atDistance(0.9), atDistance(0.95)}},
	}}, 0.6)

	result, err := engine.Match(context.Background(), [][]float32{unitAngle(0)})
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if result.Matched {
		t.Errorf("expected no match at distance 0.9, got %+v", result)
	}
}

func TestMatchThresholdIsStrict(t *testing.T) {
	// Distance exactly at the threshold must be rejected.
	engine := NewEngine(&staticSource{candidates: []Candidate{
		{ID: "S1", Samples: [][]float32{unitAngle(0)}},
	}}, 1.0)

	result, err := engine.Match(context.Background(), [][]float32{[]float32{0, 1}})
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if result.Matched {
		t.Errorf("distance == threshold must not match, got %+v", result)
	}
}

func TestMatchIdempotent(t *testing.T) {
	engine := NewEngine(&staticSource{candidates: []Candidate{
		{ID: "S1", Samples: [][]float32{atDistance(0.3)}},
		{ID: "S2", Samples: [][]float32{atDistance(0.31)}},
	}}, 0.6)

	query := [][]float32{unitAngle(0)}
	first, err := engine.Match(context.Background(), query)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := engine.Match(context.Background(), query)
		if err != nil {
			t.Fatalf("match failed: %v", err)
		}
		if again != first {
			t.Fatalf("match not idempotent: %+v != %+v", again, first)
		}
	}
}

func TestMatchEmptyStore(t *testing.T) {
	engine := NewEngine(&staticSource{}, 0.6)
	result, err := engine.Match(context.Background(), [][]float32{{1, 0}})
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if result.Matched {
		t.Errorf("empty store must not match, got %+v", result)
	}
}

func TestMatchNoQueries(t *testing.T) {
	engine := NewEngine(&staticSource{}, 0.6)
	if _, err := engine.Match(context.Background(), nil); err == nil {
		t.Error("expected error for empty query set")
	}
}

func TestMatchSourceError(t *testing.T) {
	wantErr := errors.New("store offline")
	engine := NewEngine(&staticSource{err: wantErr}, 0.6)
	if _, err := engine.Match(context.Background(), [][]float32{{1, 0}}); !errors.Is(err, wantErr) {
		t.Errorf("expected store error, got %v", err)
	}
}
