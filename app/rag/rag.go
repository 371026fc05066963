package rag

import (
	"context"

	"BookWormAI/app/store"
)

// Query is one retrieval-augmented question. Zero-value filters impose no
// constraint; TopK and Temperature fall back to defaults when unset.
type Query struct {
	Text        string
	Filters     store.Filters
	TopK        int
	Temperature float64
}

// ScoredPassage pairs a stored passage with its raw cosine similarity to the
// query vector. Scores are not clamped or renormalized.
type ScoredPassage struct {
	Passage store.Passage
	Score   float64
}

type Citation struct {
	ClassLabel     string `json:"class_label"`
	Subject        string `json:"subject"`
	BookID         string `json:"book_id"`
	Language       string `json:"language"`
	PageNumber     int    `json:"page_number"`
	ContentPreview string `json:"content_preview"`
}

type Answer struct {
	Text      string     `json:"answer_text"`
	Sources   []Citation `json:"sources"`
	QueryText string     `json:"query_text"`
}

// Engine ranks stored vectors against a query vector under a filter. The
// contract is index-agnostic: the brute-force scanner and the qdrant index
// are interchangeable behind it.
type Engine interface {
	Search(ctx context.Context, vector []float32, f store.Filters, topK int) ([]ScoredPassage, error)
}

// Index is the optional write side of an external search backend. Ingestion
// mirrors upserts into it when one is configured; the SQLite store stays the
// system of record.
type Index interface {
	Upsert(ctx context.Context, ps []store.Passage) error
}
