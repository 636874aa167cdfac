package index

import (
	"fmt"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/facefind/internal/database"
)

// HNSW graph parameters for 512-dim face embeddings.
const (
	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	hnswMaxNeighbors = 16

	// hnswSearchMultiplier requests extra candidates from the graph so
	// enough survive score filtering.
	hnswSearchMultiplier = 3

	// hnswMinCandidates floors the candidate pool for small k.
	hnswMinCandidates = 100
)

// HNSW is an approximate index over the same contract as Flat. The graph
// retrieves candidates; exact inner products against the retained vectors
// produce the final scores, so ordering and threshold semantics match the
// flat index.
type HNSW struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[int64]
	vecs  map[int64][]float32 // normalized, also the membership filter
	ready bool
	dim   int
}

var _ Index = (*HNSW)(nil)

// NewHNSW creates an empty HNSW index ready for use.
func NewHNSW(dim int) *HNSW {
	return &HNSW{vecs: make(map[int64][]float32), ready: true, dim: dim}
}

// NewDeferredHNSW creates an HNSW index that reports ErrIndexUnavailable
// until the first Rebuild completes.
func NewDeferredHNSW(dim int) *HNSW {
	return &HNSW{vecs: make(map[int64][]float32), dim: dim}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	return g
}

// Add normalizes and inserts a vector under the given record ID.
func (h *HNSW) Add(id int64, vector []float32) error {
	if len(vector) != h.dim {
		return fmt.Errorf("%w: got %d, index uses %d", database.ErrInvalidVector, len(vector), h.dim)
	}
	normalized := database.Normalize(vector)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.graph == nil {
		h.graph = newGraph()
	}
	h.graph.Add(hnsw.MakeNode(id, normalized))
	h.vecs[id] = normalized
	return nil
}

// Remove drops a record from search results. The graph keeps the node
// (HNSW has no true deletion); search filters by the vecs map instead.
// Rebuild compacts the graph after bulk removals.
func (h *HNSW) Remove(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.vecs, id)
}

// Rebuild constructs a fresh graph off to the side and swaps it in. The
// write lock is only held for the swap, so searches stay available.
func (h *HNSW) Rebuild(records []database.EmbeddingRecord) error {
	g := newGraph()
	vecs := make(map[int64][]float32, len(records))
	for _, rec := range records {
		if len(rec.Vector) != h.dim {
			return fmt.Errorf("%w: record %d has %d, index uses %d",
				database.ErrInvalidVector, rec.ID, len(rec.Vector), h.dim)
		}
		normalized := database.Normalize(rec.Vector)
		g.Add(hnsw.MakeNode(rec.ID, normalized))
		vecs[rec.ID] = normalized
	}

	h.mu.Lock()
	h.graph = g
	h.vecs = vecs
	h.ready = true
	h.mu.Unlock()
	return nil
}

// Search retrieves approximate candidates from the graph, then re-scores
// them exactly.
func (h *HNSW) Search(query []float32, k int, minScore float32) ([]Result, error) {
	if len(query) != h.dim {
		return nil, fmt.Errorf("%w: got %d, index uses %d", database.ErrInvalidVector, len(query), h.dim)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.ready {
		return nil, ErrIndexUnavailable
	}
	if h.graph == nil || len(h.vecs) == 0 {
		return []Result{}, nil
	}

	searchK := k * hnswSearchMultiplier
	if searchK < hnswMinCandidates {
		searchK = hnswMinCandidates
	}

	q := database.Normalize(query)
	neighbors := h.graph.Search(q, searchK)

	results := []Result{}
	for _, n := range neighbors {
		vec, ok := h.vecs[n.Key]
		if !ok {
			continue // removed after insertion
		}
		score := database.InnerProduct(q, vec)
		if score >= minScore {
			results = append(results, Result{ID: n.Key, Score: score})
		}
	}
	return sortResults(results, k), nil
}

// Len returns the number of indexed records.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.vecs)
}
