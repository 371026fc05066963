package models

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// The embedding model follows the E5 convention: queries and passages are
// embedded into the same space but carry different prefixes.
const (
	queryPrefix   = "query: "
	passagePrefix = "passage: "
)

func (mc *LLMClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty query text", ErrEmbeddingUnavailable)
	}
	vecs, err := mc.embedChunk(ctx, []string{queryPrefix + strings.TrimSpace(text)})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedPassages embeds texts in request-sized chunks. The result preserves
// input order and length. A failure inside one chunk fails that whole call so
// the caller can retry it deterministically.
func (mc *LLMClient) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += mc.batchSize {
		end := start + mc.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk := make([]string, 0, end-start)
		for _, text := range texts[start:end] {
			if strings.TrimSpace(text) == "" {
				return nil, fmt.Errorf("%w: empty passage text at index %d", ErrEmbeddingUnavailable, start+len(chunk))
			}
			chunk = append(chunk, passagePrefix+text)
		}
		vecs, err := mc.embedChunk(ctx, chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (mc *LLMClient) embedChunk(ctx context.Context, inputs []string) ([][]float32, error) {
	req := embeddingRequestPayload{Model: mc.embeddingsModel, Input: inputs}

	body, status, err := mc.restClient.Post(ctx, embeddingEndpoint, req, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: http %d", ErrEmbeddingUnavailable, status)
	}

	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrEmbeddingUnavailable, err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrEmbeddingUnavailable, len(resp.Data), len(inputs))
	}

	// The endpoint may return items out of order; the index field is
	// authoritative.
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	out := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		if err := mc.checkVector(item.Embedding); err != nil {
			return nil, err
		}
		out[i] = item.Embedding
	}
	return out, nil
}

func (mc *LLMClient) checkVector(vec []float32) error {
	if len(vec) != mc.dimension {
		return fmt.Errorf("%w: dimension mismatch: got %d, want %d", ErrEmbeddingUnavailable, len(vec), mc.dimension)
	}
	for _, v := range vec {
		if v != 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: zero vector returned", ErrEmbeddingUnavailable)
}
