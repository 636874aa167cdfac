package index

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kozaktomas/facefind/internal/database"
)

// flatState is one immutable generation of the flat index. Readers grab it
// with a single atomic load; writers clone, mutate the clone and swap.
type flatState struct {
	ids  []int64
	vecs [][]float32
	pos  map[int64]int
}

// Flat is an exact inner-product index. Search scans every stored vector,
// which is the right trade-off for per-event candidate sets; the HNSW
// variant covers large user-wide collections.
type Flat struct {
	state   atomic.Value // holds *flatState
	writeMu sync.Mutex   // serializes writers only
	ready   atomic.Bool
	dim     int
}

var _ Index = (*Flat)(nil)

// NewFlat creates an empty flat index ready for use.
func NewFlat(dim int) *Flat {
	f := newFlat(dim)
	f.ready.Store(true)
	return f
}

// NewDeferredFlat creates a flat index that reports ErrIndexUnavailable
// until the first Rebuild completes. Used at cold start while the store is
// being replayed in the background.
func NewDeferredFlat(dim int) *Flat {
	return newFlat(dim)
}

func newFlat(dim int) *Flat {
	f := &Flat{dim: dim}
	f.state.Store(&flatState{pos: make(map[int64]int)})
	return f
}

func (f *Flat) getState() *flatState {
	return f.state.Load().(*flatState)
}

func (f *Flat) cloneState(old *flatState) *flatState {
	s := &flatState{
		ids:  make([]int64, len(old.ids)),
		vecs: make([][]float32, len(old.vecs)),
		pos:  make(map[int64]int, len(old.pos)),
	}
	copy(s.ids, old.ids)
	copy(s.vecs, old.vecs)
	for k, v := range old.pos {
		s.pos[k] = v
	}
	return s
}

// Add normalizes and inserts a vector. Re-adding an existing ID replaces
// its vector in place.
func (f *Flat) Add(id int64, vector []float32) error {
	if len(vector) != f.dim {
		return fmt.Errorf("%w: got %d, index uses %d", database.ErrInvalidVector, len(vector), f.dim)
	}
	normalized := database.Normalize(vector)

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	s := f.cloneState(f.getState())
	if i, ok := s.pos[id]; ok {
		s.vecs[i] = normalized
	} else {
		s.pos[id] = len(s.ids)
		s.ids = append(s.ids, id)
		s.vecs = append(s.vecs, normalized)
	}
	f.state.Store(s)
	return nil
}

// Remove drops a record from the index; no-op if absent.
func (f *Flat) Remove(id int64) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	old := f.getState()
	i, ok := old.pos[id]
	if !ok {
		return
	}

	s := f.cloneState(old)
	last := len(s.ids) - 1
	s.ids[i] = s.ids[last]
	s.vecs[i] = s.vecs[last]
	s.pos[s.ids[i]] = i
	s.ids = s.ids[:last]
	s.vecs = s.vecs[:last]
	delete(s.pos, id)
	f.state.Store(s)
}

// Rebuild reconstructs the index from a full record sequence. Searches
// keep hitting the previous generation until the swap.
func (f *Flat) Rebuild(records []database.EmbeddingRecord) error {
	s := &flatState{
		ids:  make([]int64, 0, len(records)),
		vecs: make([][]float32, 0, len(records)),
		pos:  make(map[int64]int, len(records)),
	}
	for _, rec := range records {
		if len(rec.Vector) != f.dim {
			return fmt.Errorf("%w: record %d has %d, index uses %d",
				database.ErrInvalidVector, rec.ID, len(rec.Vector), f.dim)
		}
		s.pos[rec.ID] = len(s.ids)
		s.ids = append(s.ids, rec.ID)
		s.vecs = append(s.vecs, database.Normalize(rec.Vector))
	}

	f.writeMu.Lock()
	f.state.Store(s)
	f.writeMu.Unlock()
	f.ready.Store(true)
	return nil
}

// Search scans all indexed vectors and returns hits at or above minScore.
func (f *Flat) Search(query []float32, k int, minScore float32) ([]Result, error) {
	if !f.ready.Load() {
		return nil, ErrIndexUnavailable
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: got %d, index uses %d", database.ErrInvalidVector, len(query), f.dim)
	}

	q := database.Normalize(query)
	s := f.getState()

	results := []Result{}
	for i, vec := range s.vecs {
		score := database.InnerProduct(q, vec)
		if score >= minScore {
			results = append(results, Result{ID: s.ids[i], Score: score})
		}
	}
	return sortResults(results, k), nil
}

// Len returns the number of indexed records.
func (f *Flat) Len() int {
	return len(f.getState().ids)
}
