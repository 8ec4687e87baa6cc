package embedsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siherrmann/coursesearch/core/pipeline"
	"github.com/siherrmann/coursesearch/model"
)

// PersonStore reads people, see database.PeopleDBHandler
type PersonStore interface {
	SelectPeopleMissingEmbedding(ctx context.Context) ([]*model.Person, error)
	SelectPeopleByIDs(ctx context.Context, ids []string) ([]*model.Person, error)
}

// PersonEmbeddingStore writes name embeddings, see database.EmbeddingsDBHandler
type PersonEmbeddingStore interface {
	InsertPersonEmbeddings(ctx context.Context, embeddings []*model.PersonEmbedding) (int, error)
}

// PersonTarget embeds the names of people that have no embedding yet.
// Names never change, so presence is freshness.
type PersonTarget struct {
	people     PersonStore
	embeddings PersonEmbeddingStore
	embedder   pipeline.Embedder
	logger     *slog.Logger
}

// NewPersonTarget creates a person target
func NewPersonTarget(people PersonStore, embeddings PersonEmbeddingStore, embedder pipeline.Embedder, logger *slog.Logger) *PersonTarget {
	return &PersonTarget{
		people:     people,
		embeddings: embeddings,
		embedder:   embedder,
		logger:     logger,
	}
}

// Name implements Target
func (t *PersonTarget) Name() string {
	return "people"
}

// Stale implements Target
func (t *PersonTarget) Stale(ctx context.Context) ([]string, error) {
	people, err := t.people.SelectPeopleMissingEmbedding(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(people))
	for i, p := range people {
		ids[i] = p.ID
	}
	return ids, nil
}

// Embed implements Target. Empty names are embedded as they are.
func (t *PersonTarget) Embed(ctx context.Context, ids []string) ([]*model.PersonEmbedding, int, error) {
	people, err := t.people.SelectPeopleByIDs(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: load people: %w", ErrStore, err)
	}
	skipped := len(ids) - len(people)
	if len(people) == 0 {
		return nil, skipped, nil
	}

	names := make([]string, len(people))
	for i, p := range people {
		names[i] = p.Name
	}

	vectors, err := embedAll(ctx, t.embedder, names, pipeline.RoleIndexed)
	if err != nil {
		return nil, skipped, fmt.Errorf("embed names: %w", err)
	}

	rows := make([]*model.PersonEmbedding, len(people))
	for i, p := range people {
		rows[i] = &model.PersonEmbedding{
			PersonID:  p.ID,
			Embedding: vectors[i],
		}
	}

	return rows, skipped, nil
}

// Persist implements Target
func (t *PersonTarget) Persist(ctx context.Context, rows []*model.PersonEmbedding) error {
	_, err := t.embeddings.InsertPersonEmbeddings(ctx, rows)
	return err
}
