package coursesearch

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/siherrmann/coursesearch/core/pipeline"
	"github.com/siherrmann/coursesearch/helper"
	"github.com/siherrmann/coursesearch/model"
)

// OptionsFromConfig maps the service configuration to searcher options
func OptionsFromConfig(config *helper.ServiceConfiguration, logger *slog.Logger) Options {
	return Options{
		Rank: model.RankConfig{
			Limit:            config.RankLimit,
			ClipThreshold:    config.RankClipThreshold,
			ClipPenalty:      config.RankClipPenalty,
			NoPersonDistance: config.RankNoPersonDistance,
			Combine:          model.CombineMode(config.RankCombine),
		},
		Sync: model.SyncConfig{
			Interval:     config.SyncInterval,
			BatchSize:    config.SyncBatchSize,
			AdvisoryLock: config.SyncAdvisoryLock,
		},
		Logger: logger,
	}
}

// NewEmbedder creates the configured embedder wrapped with retries
func NewEmbedder(config *helper.ServiceConfiguration, logger *slog.Logger) (pipeline.Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var embedder pipeline.Embedder
	var err error

	switch config.Embedder {
	case "hugot":
		embedder, err = pipeline.NewHugotEmbedder(config.EmbeddingModel, config.EmbeddingOnnxFile, config.EmbeddingDim, logger)
	case "openai":
		embedder, err = pipeline.NewOpenAIEmbedder(config.EmbeddingHost, config.EmbeddingModel, config.EmbeddingDim, logger)
	default:
		err = fmt.Errorf("unknown embedder %q", config.Embedder)
	}
	if err != nil {
		return nil, helper.NewError("create embedder", err)
	}

	return pipeline.NewRetryEmbedder(embedder, pipeline.DefaultRetryConfig(), logger), nil
}

// NewSearcherFromEnv builds a Searcher from the DB_* and service environment variables
func NewSearcherFromEnv(logger *slog.Logger) (*Searcher, error) {
	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return nil, helper.NewError("database configuration", err)
	}

	serviceConfig, err := helper.NewServiceConfiguration()
	if err != nil {
		return nil, helper.NewError("service configuration", err)
	}

	embedder, err := NewEmbedder(serviceConfig, logger)
	if err != nil {
		return nil, err
	}

	searcher, err := NewSearcher(dbConfig, embedder, OptionsFromConfig(serviceConfig, logger))
	if err != nil {
		if closer, ok := embedder.(io.Closer); ok {
			closer.Close()
		}
		return nil, err
	}

	return searcher, nil
}
