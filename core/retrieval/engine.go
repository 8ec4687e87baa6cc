package retrieval

import (
	"context"
	"fmt"

	"github.com/siherrmann/coursesearch/database"
	"github.com/siherrmann/coursesearch/helper"
	"github.com/siherrmann/coursesearch/model"
)

// Engine ranks courses against a query vector
type Engine struct {
	embeddings *database.EmbeddingsDBHandler
	config     model.RankConfig
}

// NewEngine creates a new ranking engine
func NewEngine(embeddings *database.EmbeddingsDBHandler, config model.RankConfig) (*Engine, error) {
	if embeddings == nil {
		return nil, helper.NewError("embeddings handler validation", fmt.Errorf("embeddings handler is nil"))
	}
	if err := config.Validate(); err != nil {
		return nil, helper.NewError("rank config validation", err)
	}

	return &Engine{
		embeddings: embeddings,
		config:     config,
	}, nil
}

// Config returns the ranking configuration of the engine
func (e *Engine) Config() model.RankConfig {
	return e.config
}

// Rank combines title, content and dampened person distances of every fully
// embedded course and returns them best first. It is a single read.
func (e *Engine) Rank(ctx context.Context, embedding []float32) ([]*model.RankedCourse, error) {
	return e.RankWithConfig(ctx, embedding, e.config)
}

// RankWithConfig is Rank with a per call configuration
func (e *Engine) RankWithConfig(ctx context.Context, embedding []float32, config model.RankConfig) ([]*model.RankedCourse, error) {
	ranked, err := e.embeddings.SelectMostRelevantCourses(ctx, embedding, config)
	if err != nil {
		return nil, helper.NewError("rank", err)
	}
	return ranked, nil
}

// FieldDistances returns courses by ascending distance of a single field
func (e *Engine) FieldDistances(ctx context.Context, field model.Field, embedding []float32, limit int) ([]*model.Similarity, error) {
	similarities, err := e.embeddings.SelectFieldDistances(ctx, field, embedding, limit)
	if err != nil {
		return nil, helper.NewError(fmt.Sprintf("%s distances", field), err)
	}
	return similarities, nil
}

// PersonDistances returns people by ascending name distance
func (e *Engine) PersonDistances(ctx context.Context, embedding []float32, limit int) ([]*model.Similarity, error) {
	similarities, err := e.embeddings.SelectPersonDistances(ctx, embedding, limit)
	if err != nil {
		return nil, helper.NewError("person distances", err)
	}
	return similarities, nil
}
