package models

import "context"

type Interface interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)
	GenerateAnswer(ctx context.Context, question, contextText string, temperature float64) (string, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
