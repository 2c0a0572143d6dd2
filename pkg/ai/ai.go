package ai

import "context"

// ModelMetrics contains accumulated usage metrics from embedding requests.
type ModelMetrics struct {
	InputTokens int   `json:"input_tokens"`
	TotalTokens int   `json:"total_tokens"`
	DurationMs  int64 `json:"duration_ms"`
}

// EmbeddingClient is the capability the rest of the system programs
// against: encode text into a fixed-dimension vector. Implementations are
// selected via the AI_ADAPTER environment variable.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error)
	GetMetrics() ModelMetrics
	ResetMetrics()
}
