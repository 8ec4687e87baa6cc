package retrieval

import (
	"context"
	"fmt"

	"github.com/siherrmann/coursesearch/model"
)

// Strategy returns the distances of a single signal for a query vector
type Strategy interface {
	Name() string
	Retrieve(ctx context.Context, embedding []float32, limit int) ([]*model.Similarity, error)
}

// FieldStrategy ranks courses by one embedded field
type FieldStrategy struct {
	engine *Engine
	field  model.Field
}

// NewTitleStrategy creates a strategy over title embeddings
func NewTitleStrategy(engine *Engine) *FieldStrategy {
	return &FieldStrategy{engine: engine, field: model.FieldTitle}
}

// NewContentStrategy creates a strategy over content embeddings
func NewContentStrategy(engine *Engine) *FieldStrategy {
	return &FieldStrategy{engine: engine, field: model.FieldContent}
}

// Name implements Strategy
func (s *FieldStrategy) Name() string {
	return string(s.field)
}

// Retrieve implements Strategy
func (s *FieldStrategy) Retrieve(ctx context.Context, embedding []float32, limit int) ([]*model.Similarity, error) {
	return s.engine.FieldDistances(ctx, s.field, embedding, limit)
}

// PersonStrategy ranks people by name distance. With dampened set the
// distances are mapped the way the ranking uses them.
type PersonStrategy struct {
	engine   *Engine
	dampened bool
}

// NewPersonStrategy creates a strategy over name embeddings
func NewPersonStrategy(engine *Engine, dampened bool) *PersonStrategy {
	return &PersonStrategy{engine: engine, dampened: dampened}
}

// Name implements Strategy
func (s *PersonStrategy) Name() string {
	return "person"
}

// Retrieve implements Strategy
func (s *PersonStrategy) Retrieve(ctx context.Context, embedding []float32, limit int) ([]*model.Similarity, error) {
	similarities, err := s.engine.PersonDistances(ctx, embedding, limit)
	if err != nil {
		return nil, err
	}

	if s.dampened {
		config := s.engine.Config()
		for _, similarity := range similarities {
			similarity.Distance = config.DampenPersonDistance(similarity.Distance)
		}
	}

	return similarities, nil
}

// NewStrategy returns the strategy for "title", "content", "person" or "person_dampened"
func NewStrategy(engine *Engine, name string) (Strategy, error) {
	switch name {
	case "title":
		return NewTitleStrategy(engine), nil
	case "content":
		return NewContentStrategy(engine), nil
	case "person":
		return NewPersonStrategy(engine, false), nil
	case "person_dampened":
		return NewPersonStrategy(engine, true), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}
