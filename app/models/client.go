package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"BookWormAI/app/restclient"
)

const (
	chatEndpoint      = "/v1/chat/completions"
	embeddingEndpoint = "/v1/embeddings"

	maxAnswerTokens = 2048
	answerTopP      = 0.95
)

var (
	// ErrEmbeddingUnavailable covers unreachable embedding endpoints and
	// malformed responses (wrong dimension, empty or zero vectors). It is
	// never defaulted away: a bad vector would corrupt every similarity
	// computed against it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationUnavailable covers remote chat-completion failures.
	ErrGenerationUnavailable = errors.New("generation service unavailable")
)

var _ Interface = &LLMClient{}

type LLMClient struct {
	restClient      restclient.Interface
	model           string
	embeddingsModel string
	dimension       int
	batchSize       int
}

func NewLLMClient(rc restclient.Interface, model, embeddingsModel string, dimension, batchSize int) *LLMClient {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &LLMClient{
		restClient:      rc,
		model:           model,
		embeddingsModel: embeddingsModel,
		dimension:       dimension,
		batchSize:       batchSize,
	}
}

// Dimension reports the vector length every embedding must have.
func (mc *LLMClient) Dimension() int { return mc.dimension }

func (mc *LLMClient) GenerateAnswer(ctx context.Context, question, contextText string, temperature float64) (string, error) {
	payload := requestPayload{
		Model:       mc.model,
		Messages:    answerPrompt(question, contextText),
		Temperature: temperature,
		TopP:        answerTopP,
		MaxTokens:   maxAnswerTokens,
	}

	body, status, err := mc.restClient.Post(ctx, chatEndpoint, payload, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: http %d", ErrGenerationUnavailable, status)
	}

	var out ResponseLLM
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: parse response: %v", ErrGenerationUnavailable, err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", ErrGenerationUnavailable)
	}
	return out.Choices[0].Message.Content, nil
}
