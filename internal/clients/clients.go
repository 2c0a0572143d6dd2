// Package clients builds the external service handles from environment
// configuration. Every entrypoint (server, worker, ingest) goes through
// these constructors so connection settings live in one place.
package clients

import (
	"context"

	"github.com/1145-am/orggraph/internal/util"
	"github.com/1145-am/orggraph/pkg/ai"
	oai "github.com/1145-am/orggraph/pkg/ai/ollama"
	gai "github.com/1145-am/orggraph/pkg/ai/openai"
	"github.com/1145-am/orggraph/pkg/cache"
	"github.com/1145-am/orggraph/pkg/graphstore"
	"github.com/1145-am/orggraph/pkg/logger"
	"github.com/1145-am/orggraph/pkg/search"
)

// NewGraphStore connects to the graph database from NEO4J_* settings.
func NewGraphStore(ctx context.Context) *graphstore.Store {
	store, err := graphstore.New(ctx, graphstore.Params{
		URI:      util.GetEnvString("NEO4J_URI", "bolt://localhost:7687"),
		User:     util.GetEnvString("NEO4J_USER", "neo4j"),
		Password: util.GetEnv("NEO4J_PASSWORD"),
		Database: util.GetEnvString("NEO4J_DATABASE", "neo4j"),
	})
	if err != nil {
		logger.Fatal("Failed to connect to graph store", "err", err)
	}
	return store
}

// NewCache connects to the versioned cache from REDIS_URL.
func NewCache() *cache.Cache {
	c, err := cache.New(util.GetEnvString("REDIS_URL", "redis://localhost:6379/0"))
	if err != nil {
		logger.Fatal("Failed to connect to cache", "err", err)
	}
	return c
}

// NewSearchIndex connects to the vector search backend from WEAVIATE_*.
func NewSearchIndex() *search.Index {
	ix, err := search.NewIndex(
		util.GetEnvString("WEAVIATE_URL", "http://localhost:8090"),
		util.GetEnv("WEAVIATE_API_KEY"),
	)
	if err != nil {
		logger.Fatal("Failed to connect to search index", "err", err)
	}
	return ix
}

// NewEmbedder selects the embedding adapter via AI_ADAPTER ("ollama" or
// OpenAI-compatible by default).
func NewEmbedder() ai.EmbeddingClient {
	switch util.GetEnv("AI_ADAPTER") {
	case "ollama":
		client, err := oai.NewEmbeddingOllamaClient(oai.NewEmbeddingOllamaClientParams{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			BaseURL:        util.GetEnv("AI_EMBED_URL"),
			ApiKey:         util.GetEnv("AI_EMBED_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		})
		if err != nil {
			logger.Fatal("Failed to create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewEmbeddingOpenAIClient(gai.NewEmbeddingOpenAIClientParams{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			EmbeddingURL:   util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey:   util.GetEnv("AI_EMBED_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		})
	}
}
