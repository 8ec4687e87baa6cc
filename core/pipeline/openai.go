package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIEmbedder embeds texts through an OpenAI compatible embeddings API,
// e.g. a local inference server.
type OpenAIEmbedder struct {
	embedder     embeddings.Embedder
	dim          int
	maxBatchSize int
	logger       *slog.Logger
}

// NewOpenAIEmbedder creates an embedder for the given host and model
func NewOpenAIEmbedder(host string, model string, dim int, logger *slog.Logger) (*OpenAIEmbedder, error) {
	if host == "" {
		return nil, fmt.Errorf("embedding host is required")
	}
	if model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Local OpenAI compatible services don't need a real token
	client, err := openai.New(
		openai.WithBaseURL(host),
		openai.WithToken("none"),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true), embeddings.WithBatchSize(DefaultMaxBatchSize))
	if err != nil {
		return nil, err
	}

	logger.Info("Initialized openai embedder", "host", host, "model", model, "dimension", dim)

	return &OpenAIEmbedder{
		embedder:     embedder,
		dim:          dim,
		maxBatchSize: DefaultMaxBatchSize,
		logger:       logger.With("component", "openai-embedder"),
	}, nil
}

// EmbedBatch implements Embedder
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string, role ContentRole) ([][]float32, error) {
	prefixed, err := prepareBatch(texts, role, e.maxBatchSize)
	if err != nil {
		return nil, err
	}
	if len(prefixed) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := e.embedder.EmbedDocuments(ctx, prefixed)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(prefixed), "err", err)
		return nil, err
	}

	if err := checkVectors(vectors, len(prefixed), e.dim); err != nil {
		return nil, err
	}

	return vectors, nil
}

// Dimension implements Embedder
func (e *OpenAIEmbedder) Dimension() int {
	return e.dim
}

// MaxBatchSize implements Embedder
func (e *OpenAIEmbedder) MaxBatchSize() int {
	return e.maxBatchSize
}
