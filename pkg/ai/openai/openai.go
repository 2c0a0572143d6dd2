package openai

import (
	"sync"

	"github.com/1145-am/orggraph/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// EmbeddingOpenAIClient implements ai.EmbeddingClient against any
// OpenAI-compatible embedding endpoint.
type EmbeddingOpenAIClient struct {
	embeddingModel string
	timeoutMin     int

	embeddingLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	EmbeddingClient openai.Client
}

// NewEmbeddingOpenAIClientParams contains configuration options for creating
// a new EmbeddingOpenAIClient.
type NewEmbeddingOpenAIClientParams struct {
	EmbeddingModel string
	EmbeddingURL   string
	EmbeddingKey   string

	TimeoutMinutes        int
	MaxConcurrentRequests int64
}

// NewEmbeddingOpenAIClient creates a new OpenAI-compatible embedding client.
func NewEmbeddingOpenAIClient(params NewEmbeddingOpenAIClientParams) *EmbeddingOpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(params.EmbeddingKey),
	}
	if params.EmbeddingURL != "" {
		opts = append(opts, option.WithBaseURL(params.EmbeddingURL))
	}

	if params.MaxConcurrentRequests <= 0 {
		params.MaxConcurrentRequests = 1
	}
	if params.TimeoutMinutes <= 0 {
		params.TimeoutMinutes = 5
	}

	return &EmbeddingOpenAIClient{
		embeddingModel: params.EmbeddingModel,
		timeoutMin:     params.TimeoutMinutes,

		embeddingLock: semaphore.NewWeighted(params.MaxConcurrentRequests),

		EmbeddingClient: openai.NewClient(opts...),
	}
}

// ResetMetrics clears all accumulated token and timing metrics to zero.
func (c *EmbeddingOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	c.metrics = ai.ModelMetrics{}
	c.metricsLock.Unlock()
}

// GetMetrics returns the accumulated metrics since the last reset.
func (c *EmbeddingOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *EmbeddingOpenAIClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += m.InputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs
}
