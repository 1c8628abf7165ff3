package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/imaging"
	"github.com/kozaktomas/face-attendance/internal/recognize"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

const defaultIdentifyLimit = 5

// IdentifyHandler answers "who could this be" queries: top-k nearest
// enrolled identities for an uploaded photo, rather than the match
// engine's single accept/reject decision. Stores that search natively
// (pgvector) answer from the database; the rest fall back to the
// in-memory HNSW index.
type IdentifyHandler struct {
	index      *recognize.Index
	identities identity.Store
	detector   vision.Detector
	embedder   vision.Embedder
}

func NewIdentifyHandler(index *recognize.Index, identities identity.Store, detector vision.Detector, embedder vision.Embedder) *IdentifyHandler {
	return &IdentifyHandler{
		index:      index,
		identities: identities,
		detector:   detector,
		embedder:   embedder,
	}
}

// Identify handles POST /identify: detects the largest face in the photo
// and returns its nearest enrolled identities with distances.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	img, err := readPhotoUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := defaultIdentifyLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	boxes, err := h.detector.Detect(r.Context(), img)
	if err != nil {
		respondError(w, http.StatusBadGateway, "face detection failed")
		return
	}
	if len(boxes) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "no face found in photo")
		return
	}

	// Largest box wins when several faces are present.
	best := boxes[0]
	for _, box := range boxes[1:] {
		if area(box) > area(best) {
			best = box
		}
	}

	crop := imaging.Crop(img, best.Rect())
	if crop == nil {
		respondError(w, http.StatusUnprocessableEntity, "face region is degenerate")
		return
	}
	embedding, err := h.embedder.Embed(r.Context(), crop)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "face could not be embedded")
		return
	}

	neighbors, err := h.nearest(r.Context(), embedding, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "similarity search failed")
		return
	}

	type candidate struct {
		StudentID  string  `json:"student_id"`
		Distance   float64 `json:"distance"`
		Confidence float64 `json:"confidence"`
	}
	resp := make([]candidate, 0, len(neighbors))
	for _, n := range neighbors {
		resp = append(resp, candidate{
			StudentID:  n.IdentityID,
			Distance:   n.Distance,
			Confidence: 1 - n.Distance,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"candidates": resp})
}

// nearest prefers the store's own similarity search and falls back to the
// in-memory index for stores that cannot search.
func (h *IdentifyHandler) nearest(ctx context.Context, embedding []float32, limit int) ([]recognize.Neighbor, error) {
	searcher, ok := h.identities.(identity.SimilaritySearcher)
	if !ok {
		return h.index.Search(embedding, limit), nil
	}

	ids, distances, err := searcher.FindSimilar(ctx, embedding, limit)
	if err != nil {
		return nil, err
	}
	neighbors := make([]recognize.Neighbor, len(ids))
	for i, id := range ids {
		neighbors[i] = recognize.Neighbor{IdentityID: id, Distance: distances[i]}
	}
	return neighbors, nil
}

// Reindex handles POST /identify/reindex: rebuilds the HNSW index from the
// identity store after bulk enrollment changes.
func (h *IdentifyHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	candidates, err := identity.CandidateSource{Store: h.identities}.Candidates(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load identities")
		return
	}
	h.index.Build(candidates)
	respondJSON(w, http.StatusOK, map[string]int{"indexed_samples": h.index.Count()})
}

func area(b vision.Box) int {
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}
