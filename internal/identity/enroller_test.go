package identity

import (
	"context"
	"errors"
	"image"
	"testing"
)

// seqEmbedder returns queued results in order, one per Embed call.
type seqEmbedder struct {
	embeddings [][]float32 // nil entry = failure
	calls      int
}

func (s *seqEmbedder) Embed(ctx context.Context, face image.Image) ([]float32, error) {
	i := s.calls
	s.calls++
	if i >= len(s.embeddings) || s.embeddings[i] == nil {
		return nil, errors.New("no face found in image")
	}
	return s.embeddings[i], nil
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 64, 64))
}

func TestEnrollAppendsBothVariants(t *testing.T) {
	store := NewMemoryStore()
	embedder := &seqEmbedder{embeddings: [][]float32{
		{1, 0, 0}, // raw
		{0, 1, 0}, // normalized
	}}
	enroller := NewEnroller(store, embedder)

	ident, err := enroller.Enroll(context.Background(), "S001", testImage(), "data/s001.jpg")
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	if len(ident.Samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(ident.Samples))
	}
	if ident.ImagePath != "data/s001.jpg" {
		t.Errorf("unexpected image path %q", ident.ImagePath)
	}

	stored, err := store.Get(context.Background(), "S001")
	if err != nil || stored == nil {
		t.Fatalf("identity not stored: %v", err)
	}
	if len(stored.Samples) != 2 {
		t.Errorf("stored samples = %d, want 2", len(stored.Samples))
	}
}

func TestEnrollPartialVariantFailure(t *testing.T) {
	store := NewMemoryStore()
	embedder := &seqEmbedder{embeddings: [][]float32{
		nil,       // raw fails
		{0, 1, 0}, // normalized succeeds
	}}
	enroller := NewEnroller(store, embedder)

	ident, err := enroller.Enroll(context.Background(), "S001", testImage(), "")
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	if len(ident.Samples) != 1 {
		t.Errorf("expected 1 sample, got %d", len(ident.Samples))
	}
}

func TestEnrollBothVariantsFail(t *testing.T) {
	store := NewMemoryStore()
	embedder := &seqEmbedder{embeddings: [][]float32{nil, nil}}
	enroller := NewEnroller(store, embedder)

	before, _ := store.List(context.Background())
	_, err := enroller.Enroll(context.Background(), "S001", testImage(), "")
	if !errors.Is(err, ErrEnrollmentFailed) {
		t.Fatalf("expected ErrEnrollmentFailed, got %v", err)
	}
	after, _ := store.List(context.Background())
	if len(before) != len(after) {
		t.Errorf("store modified on failed enrollment: %d -> %d", len(before), len(after))
	}
}

func TestEnrollIsAppendOnly(t *testing.T) {
	store := NewMemoryStore()
	embedder := &seqEmbedder{embeddings: [][]float32{
		{1, 0}, {0, 1}, // first enrollment
		{1, 1}, {0.5, 0.5}, // second enrollment
	}}
	enroller := NewEnroller(store, embedder)

	ctx := context.Background()
	if _, err := enroller.Enroll(ctx, "S001", testImage(), ""); err != nil {
		t.Fatalf("first enroll failed: %v", err)
	}
	ident, err := enroller.Enroll(ctx, "S001", testImage(), "")
	if err != nil {
		t.Fatalf("second enroll failed: %v", err)
	}
	if len(ident.Samples) != 4 {
		t.Errorf("expected 4 samples after two enrollments, got %d", len(ident.Samples))
	}
}

func TestRemove(t *testing.T) {
	store := NewMemoryStore()
	embedder := &seqEmbedder{embeddings: [][]float32{{1, 0}, {0, 1}}}
	enroller := NewEnroller(store, embedder)

	ctx := context.Background()
	if _, err := enroller.Enroll(ctx, "S001", testImage(), ""); err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	existed, err := enroller.Remove(ctx, "S001")
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if !existed {
		t.Error("expected Remove to report existing identity")
	}

	existed, err = enroller.Remove(ctx, "S001")
	if err != nil {
		t.Fatalf("second remove failed: %v", err)
	}
	if existed {
		t.Error("expected Remove to report missing identity")
	}
}

func TestCandidateSource(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Put(ctx, Identity{ID: "S2", Samples: [][]float32{{0, 1}}})
	store.Put(ctx, Identity{ID: "S1", Samples: [][]float32{{1, 0}}})

	candidates, err := CandidateSource{Store: store}.Candidates(ctx)
	if err != nil {
		t.Fatalf("candidates failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	// Stable ordering by ID.
	if candidates[0].ID != "S1" || candidates[1].ID != "S2" {
		t.Errorf("candidates not sorted: %v, %v", candidates[0].ID, candidates[1].ID)
	}
}
