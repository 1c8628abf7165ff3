// Package identity owns the enrolled identities and their embedding
// samples. Everything else reads them through the Store interface; only
// the Enroller mutates them.
package identity

import (
	"context"
	"time"

	"github.com/kozaktomas/face-attendance/internal/recognize"
)

// Identity is one enrolled person: a stable identifier plus an ordered,
// append-only set of embedding samples. Every stored identity carries at
// least one sample.
type Identity struct {
	ID         string      `json:"id"`
	Samples    [][]float32 `json:"samples"`
	ImagePath  string      `json:"image_path,omitempty"` // last enrollment image
	EnrolledAt time.Time   `json:"enrolled_at"`
}

// Store is the keyed identity storage. Get returns nil when the identity
// does not exist. List returns identities sorted by ID so match results
// are reproducible over an unchanged store.
type Store interface {
	Get(ctx context.Context, id string) (*Identity, error)
	Put(ctx context.Context, ident Identity) error
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]Identity, error)
}

// SimilaritySearcher is an optional Store upgrade for backends that can
// run nearest-neighbor search themselves, pgvector being the one that
// does. For each of the closest identities it reports the cosine distance
// of that identity's best sample to the query embedding, ordered nearest
// first.
type SimilaritySearcher interface {
	FindSimilar(ctx context.Context, embedding []float32, limit int) (ids []string, distances []float64, err error)
}

// CandidateSource adapts a Store to the match engine.
type CandidateSource struct {
	Store Store
}

func (s CandidateSource) Candidates(ctx context.Context) ([]recognize.Candidate, error) {
	identities, err := s.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	candidates := make([]recognize.Candidate, 0, len(identities))
	for _, ident := range identities {
		candidates = append(candidates, recognize.Candidate{
			ID:      ident.ID,
			Samples: ident.Samples,
		})
	}
	return candidates, nil
}
