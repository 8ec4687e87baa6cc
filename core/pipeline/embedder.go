package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/coursesearch/helper"
)

// DefaultModel is the sentence transformer used by the local embedder
const DefaultModel = "sentence-transformers/all-MiniLM-L12-v2"

// HugotEmbedder embeds texts locally with a hugot feature extraction pipeline
type HugotEmbedder struct {
	mu           sync.Mutex
	run          func(texts []string) ([][]float32, error)
	destroy      func() error
	dim          int
	maxBatchSize int
	logger       *slog.Logger
}

// NewHugotEmbedder prepares the model (downloading it if needed) and starts a
// pure Go hugot session. onnxFile picks the onnx file of the model repository,
// empty means helper.DefaultOnnxFilePath. dim must match the model's output dimension.
func NewHugotEmbedder(modelName string, onnxFile string, dim int, logger *slog.Logger) (*HugotEmbedder, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	modelPath, err := helper.PrepareModel(modelName, onnxFile)
	if err != nil {
		return nil, helper.NewError("prepare model", err)
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	logger.Info("Initialized hugot embedder", "model", modelName, "onnx_file", onnxFile, "dimension", dim)

	return &HugotEmbedder{
		run: func(texts []string) ([][]float32, error) {
			result, err := sentencePipeline.RunPipeline(texts)
			if err != nil {
				return nil, err
			}
			return result.Embeddings, nil
		},
		destroy:      session.Destroy,
		dim:          dim,
		maxBatchSize: DefaultMaxBatchSize,
		logger:       logger,
	}, nil
}

// EmbedBatch implements Embedder
func (e *HugotEmbedder) EmbedBatch(ctx context.Context, texts []string, role ContentRole) ([][]float32, error) {
	prefixed, err := prepareBatch(texts, role, e.maxBatchSize)
	if err != nil {
		return nil, err
	}
	if len(prefixed) == 0 {
		return [][]float32{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	vectors, err := e.run(prefixed)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if err := checkVectors(vectors, len(prefixed), e.dim); err != nil {
		return nil, err
	}

	e.logger.Debug("Embedded batch", "count", len(prefixed), "role", role.String())
	return vectors, nil
}

// Dimension implements Embedder
func (e *HugotEmbedder) Dimension() int {
	return e.dim
}

// MaxBatchSize implements Embedder
func (e *HugotEmbedder) MaxBatchSize() int {
	return e.maxBatchSize
}

// Close destroys the hugot session
func (e *HugotEmbedder) Close() error {
	if e.destroy == nil {
		return nil
	}
	return e.destroy()
}
