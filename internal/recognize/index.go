package recognize

import (
	"sync"

	"github.com/coder/hnsw"
)

// indexMaxNeighbors is the HNSW M parameter.
const indexMaxNeighbors = 16

// Neighbor is one nearest-neighbor hit from the index.
type Neighbor struct {
	IdentityID string
	Distance   float64
}

// Index is an in-memory HNSW index over all enrolled samples. It backs
// the one-shot "identify this photo" path, which wants top-k nearest
// identities rather than the engine's single accept/reject decision.
// The index is rebuilt from the identity store on startup and after
// enrollment changes; it is never the source of truth.
type Index struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[int64]
	nodeToID map[int64]string // HNSW node key -> identity id
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		nodeToID: make(map[int64]string),
	}
}

// Build replaces the index contents with the given candidates. Each
// sample becomes its own node so any sample of an identity can be the
// nearest hit.
func (ix *Index) Build(candidates []Candidate) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.nodeToID = make(map[int64]string)
	if len(candidates) == 0 {
		ix.graph = nil
		return
	}

	g := hnsw.NewGraph[int64]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance

	var nodeID int64
	for _, c := range candidates {
		for _, sample := range c.Samples {
			if len(sample) == 0 {
				continue
			}
			g.Add(hnsw.MakeNode(nodeID, sample))
			ix.nodeToID[nodeID] = c.ID
			nodeID++
		}
	}
	ix.graph = g
}

// Search returns up to k nearest identities for a query embedding,
// deduplicated so the same identity appears once at its best distance.
func (ix *Index) Search(query []float32, k int) []Neighbor {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph == nil || k <= 0 {
		return nil
	}

	// Oversample: several nodes may belong to the same identity.
	nodes := ix.graph.Search(query, k*3)

	seen := make(map[string]bool, k)
	var out []Neighbor
	for _, n := range nodes {
		id, ok := ix.nodeToID[n.Key]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, Neighbor{
			IdentityID: id,
			Distance:   CosineDistance(query, n.Value),
		})
		if len(out) == k {
			break
		}
	}
	return out
}

// Count returns the number of indexed samples.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.nodeToID)
}
