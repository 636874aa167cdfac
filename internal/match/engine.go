// Package match resolves a query embedding against a scope of candidate
// photos and returns threshold-filtered, ranked matches.
package match

import (
	"context"
	"fmt"

	"github.com/kozaktomas/facefind/internal/database"
	"github.com/kozaktomas/facefind/internal/index"
	"github.com/kozaktomas/facefind/internal/pipeline"
)

// Scope is the candidate set a query runs against: all photos owned by
// UserID, narrowed to one event when EventID is set.
type Scope struct {
	UserID  string `json:"user_id"`
	EventID string `json:"event_id,omitempty"`
}

// Match is one matched photo. Score is the best similarity among the
// photo's faces; RecordID identifies the face that produced it.
type Match struct {
	PhotoRef string  `json:"photo_reference"`
	Score    float32 `json:"score"`
	RecordID int64   `json:"record_id"`
}

// Engine ranks stored faces against a query embedding. It never touches
// raw photo bytes; the index and the stores hold everything it needs.
type Engine struct {
	store    database.Store
	index    index.Index
	pipeline *pipeline.Manager
	minScore float32
}

// NewEngine creates a match engine. minScore is the default similarity
// threshold used when a query does not supply its own.
func NewEngine(store database.Store, idx index.Index, pm *pipeline.Manager, minScore float32) *Engine {
	return &Engine{
		store:    store,
		index:    idx,
		pipeline: pm,
		minScore: minScore,
	}
}

// FindMatches returns photos in scope whose faces score at or above the
// threshold against the query, best score first. Each photo appears at
// most once, represented by its best-scoring face. A scope with no
// processed photos yields an empty slice. threshold <= 0 selects the
// engine default; limit <= 0 means no limit.
func (e *Engine) FindMatches(ctx context.Context, query []float32, scope Scope, threshold float32, limit int) ([]Match, error) {
	if scope.UserID == "" {
		return nil, fmt.Errorf("scope user ID is required")
	}
	if len(query) != e.store.Dimension() {
		return nil, fmt.Errorf("query has %d dimensions, store has %d: %w",
			len(query), e.store.Dimension(), database.ErrInvalidVector)
	}
	if threshold <= 0 {
		threshold = e.minScore
	}

	candidates, err := e.resolveScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []Match{}, nil
	}

	results, err := e.index.Search(query, 0, threshold)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	// Results arrive best first, so the first hit per photo is its best.
	matches := []Match{}
	seen := make(map[string]bool)
	for _, res := range results {
		ref, ok := candidates[res.ID]
		if !ok || seen[ref] {
			continue
		}
		seen[ref] = true
		matches = append(matches, Match{PhotoRef: ref, Score: res.Score, RecordID: res.ID})
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches, nil
}

// resolveScope maps every candidate record ID to its photo reference.
// Event scopes re-validate ownership; record IDs from other users can
// never leak into the candidate set.
func (e *Engine) resolveScope(ctx context.Context, scope Scope) (map[int64]string, error) {
	candidates := make(map[int64]string)

	if scope.EventID != "" {
		event, err := e.pipeline.GetEvent(scope.UserID, scope.EventID)
		if err != nil {
			return nil, err
		}
		for _, photo := range event.Photos {
			ref := scope.EventID + "/" + photo.Filename
			for _, id := range photo.EmbeddingIDs {
				candidates[id] = ref
			}
		}
		return candidates, nil
	}

	records, err := e.store.List(ctx, scope.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing embeddings: %w", err)
	}
	for _, rec := range records {
		candidates[rec.ID] = rec.PhotoRef
	}
	return candidates, nil
}
