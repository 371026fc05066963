package rag

import (
	"context"
	"fmt"
	"log"

	"BookWormAI/app/store"
)

// BruteForce scans every passage matching the filter and scores it against
// the query vector. Linear per query, which is fine at tens of thousands of
// passages; anything bigger should slot an ANN index behind Engine instead.
type BruteForce struct {
	store store.Store
}

var _ Engine = &BruteForce{}

func NewBruteForce(s store.Store) *BruteForce {
	return &BruteForce{store: s}
}

func (e *BruteForce) Search(ctx context.Context, vector []float32, f store.Filters, topK int) ([]ScoredPassage, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var scored []ScoredPassage
	err := e.store.Scan(ctx, f, func(p store.Passage) error {
		score, ok := Cosine(vector, p.Embedding)
		if !ok {
			// A zero or mis-sized stored vector is a data error, not a
			// reason to fail the whole query.
			log.Printf("⚠️ Skipping passage %s: unusable embedding (len %d)", p.ID, len(p.Embedding))
			return nil
		}
		scored = append(scored, ScoredPassage{Passage: p, Score: score})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortScored(scored)
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}
