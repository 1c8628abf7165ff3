package identity

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/kozaktomas/face-attendance/internal/imaging"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// ErrEnrollmentFailed means neither the raw enrollment image nor its
// lighting-normalized variant produced an embedding. The store is left
// unmodified.
var ErrEnrollmentFailed = errors.New("no embedding could be computed from enrollment image")

// Enroller appends embedding samples to identities. Each enrollment
// image is embedded twice: once raw and once lighting-normalized. Two
// samples per enrollment cost a little storage and buy materially better
// recall when classroom lighting drifts between enrollment and
// recognition.
type Enroller struct {
	store    Store
	embedder vision.Embedder
}

// NewEnroller creates an enroller writing to the given store.
func NewEnroller(store Store, embedder vision.Embedder) *Enroller {
	return &Enroller{store: store, embedder: embedder}
}

// Enroll embeds the raw image and its normalized variant and appends
// whichever embeddings succeed to the identity's sample set, creating
// the identity if needed. imagePath is an optional reference to where
// the caller stored the enrollment image.
func (e *Enroller) Enroll(ctx context.Context, id string, img image.Image, imagePath string) (*Identity, error) {
	if id == "" {
		return nil, errors.New("identity id is required")
	}

	var samples [][]float32
	raw, err := e.embedder.Embed(ctx, img)
	if err != nil {
		log.Printf("enroll %s: raw variant not embeddable: %v", id, err)
	} else {
		samples = append(samples, raw)
	}
	normalized, err := e.embedder.Embed(ctx, imaging.NormalizeLighting(img))
	if err != nil {
		log.Printf("enroll %s: normalized variant not embeddable: %v", id, err)
	} else {
		samples = append(samples, normalized)
	}

	if len(samples) == 0 {
		return nil, ErrEnrollmentFailed
	}

	ident, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up identity %s: %w", id, err)
	}
	if ident == nil {
		ident = &Identity{ID: id, EnrolledAt: time.Now()}
	}
	ident.Samples = append(ident.Samples, samples...)
	if imagePath != "" {
		ident.ImagePath = imagePath
	}

	if err := e.store.Put(ctx, *ident); err != nil {
		return nil, fmt.Errorf("storing identity %s: %w", id, err)
	}
	return ident, nil
}

// Remove deletes all samples for an identity. Returns whether it existed.
func (e *Enroller) Remove(ctx context.Context, id string) (bool, error) {
	return e.store.Delete(ctx, id)
}
