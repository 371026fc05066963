package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"BookWormAI/app/store"
)

// QdrantIndex is the swappable ANN backend: it satisfies Engine for queries
// and Index for ingestion-time mirroring. The SQLite store remains the
// durable system of record; this index can always be rebuilt from it.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
}

var (
	_ Engine = &QdrantIndex{}
	_ Index  = &QdrantIndex{}
)

func NewQdrantIndex(host string, port int, collection string) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}
	return &QdrantIndex{client: client, collection: collection}, nil
}

// Init creates the cosine-distance collection when it does not exist yet.
func (q *QdrantIndex) Init(ctx context.Context, dimension int) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}
	if err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dimension),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	}); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

// pointID maps a passage id onto a stable UUID, so re-ingesting a page
// overwrites its point instead of duplicating it.
func pointID(passageID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(passageID)).String()
}

func (q *QdrantIndex) Upsert(ctx context.Context, ps []store.Passage) error {
	pts := make([]*qdrant.PointStruct, len(ps))
	for i, p := range ps {
		pts[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(p.ID)),
			Vectors: qdrant.NewVectors(p.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"passage_id":  p.ID,
				"book_id":     p.BookID,
				"class_label": p.ClassLabel,
				"subject":     p.Subject,
				"language":    p.Language,
				"page_number": p.PageNumber,
				"text":        p.Text,
			}),
		}
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         pts,
	})
	return err
}

func (q *QdrantIndex) Search(ctx context.Context, vector []float32, f store.Filters, topK int) ([]ScoredPassage, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var filter *qdrant.Filter
	conditions := filterConditions(f)
	if len(conditions) > 0 {
		filter = &qdrant.Filter{Must: conditions}
	}

	limit := uint64(topK)
	resp, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Limit:          &limit,
		Filter:         filter,
		Query:          qdrant.NewQuery(vector...),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	out := make([]ScoredPassage, 0, len(resp))
	for _, r := range resp {
		out = append(out, ScoredPassage{
			Passage: passageFromPayload(r.Payload),
			Score:   float64(r.Score),
		})
	}
	sortScored(out)
	return out, nil
}

func filterConditions(f store.Filters) []*qdrant.Condition {
	var conditions []*qdrant.Condition
	if f.ClassLabel != "" {
		conditions = append(conditions, qdrant.NewMatch("class_label", f.ClassLabel))
	}
	if f.Subject != "" {
		conditions = append(conditions, qdrant.NewMatch("subject", f.Subject))
	}
	if f.Language != "" {
		conditions = append(conditions, qdrant.NewMatch("language", f.Language))
	}
	return conditions
}

func passageFromPayload(payload map[string]*qdrant.Value) store.Passage {
	return store.Passage{
		ID:         payload["passage_id"].GetStringValue(),
		BookID:     payload["book_id"].GetStringValue(),
		ClassLabel: payload["class_label"].GetStringValue(),
		Subject:    payload["subject"].GetStringValue(),
		Language:   payload["language"].GetStringValue(),
		PageNumber: int(payload["page_number"].GetIntegerValue()),
		Text:       payload["text"].GetStringValue(),
	}
}
