// Package index provides in-memory similarity search over L2-normalized
// face embeddings. An index is a rebuildable cache over the embedding
// store and owns no source-of-truth data.
package index

import (
	"errors"
	"sort"

	"github.com/kozaktomas/facefind/internal/database"
)

// ErrIndexUnavailable is returned by Search while the first generation is
// still being built and no prior generation exists. Only possible at cold
// start.
var ErrIndexUnavailable = errors.New("index unavailable: initial build in progress")

// Result is one search hit. Score is cosine similarity in [-1, 1].
type Result struct {
	ID    int64   `json:"record_id"`
	Score float32 `json:"score"`
}

// Index answers nearest-neighbor queries over stored embeddings. Vectors
// are normalized at insertion time so scores are plain inner products.
type Index interface {
	// Add normalizes and inserts a vector under the given record ID.
	Add(id int64, vector []float32) error

	// Remove drops a record from the index; no-op if absent.
	Remove(id int64)

	// Rebuild reconstructs the index from a full record sequence. The new
	// generation is built off to the side and swapped in atomically, so
	// concurrent searches keep running against the previous one.
	Rebuild(records []database.EmbeddingRecord) error

	// Search returns at most k results with score >= minScore, strictly
	// descending by score, ties broken by ascending record ID. k <= 0
	// means no limit. An empty index yields an empty slice, not an error.
	Search(query []float32, k int, minScore float32) ([]Result, error)

	// Len returns the number of indexed records.
	Len() int
}

// sortResults orders hits descending by score with ascending record ID as
// the deterministic tie-break, then truncates to k.
func sortResults(results []Result, k int) []Result {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}
