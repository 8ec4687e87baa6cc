package coursesearch

import (
	"log/slog"
	"testing"
	"time"

	"github.com/siherrmann/coursesearch/helper"
	"github.com/siherrmann/coursesearch/model"
	"github.com/stretchr/testify/assert"
)

func TestOptionsFromConfig(t *testing.T) {
	config := helper.DefaultServiceConfiguration()
	config.RankCombine = "max"
	config.SyncBatchSize = 8
	config.SyncInterval = time.Minute

	opts := OptionsFromConfig(config, slog.Default())

	assert.Equal(t, model.CombineMax, opts.Rank.Combine)
	assert.Equal(t, 200, opts.Rank.Limit)
	assert.Equal(t, 0.8, opts.Rank.ClipThreshold)
	assert.Equal(t, 0.9, opts.Rank.ClipPenalty)
	assert.Equal(t, 8, opts.Sync.BatchSize)
	assert.Equal(t, time.Minute, opts.Sync.Interval)
	assert.NoError(t, opts.Rank.Validate())
	assert.NoError(t, opts.Sync.Validate())
}

func TestNewEmbedder(t *testing.T) {
	t.Run("Unknown embedder", func(t *testing.T) {
		config := helper.DefaultServiceConfiguration()
		config.Embedder = "word2vec"
		_, err := NewEmbedder(config, slog.Default())
		assert.Error(t, err)
	})

	t.Run("Nil logger", func(t *testing.T) {
		config := helper.DefaultServiceConfiguration()
		config.Embedder = "openai"
		config.EmbeddingModel = "nomic-embed-text"

		embedder, err := NewEmbedder(config, nil)
		assert.NoError(t, err)
		assert.NotNil(t, embedder)
	})

	t.Run("OpenAI embedder is wrapped with retries", func(t *testing.T) {
		config := helper.DefaultServiceConfiguration()
		config.Embedder = "openai"
		config.EmbeddingModel = "nomic-embed-text"
		config.EmbeddingDim = 768

		embedder, err := NewEmbedder(config, slog.Default())
		assert.NoError(t, err)
		assert.Equal(t, 768, embedder.Dimension())
	})
}
