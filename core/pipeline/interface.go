package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxBatchSize is the largest batch an embedder accepts unless configured otherwise
const DefaultMaxBatchSize = 32

var (
	// ErrBatchTooLarge is returned for batches above the embedder's max batch size
	ErrBatchTooLarge = errors.New("batch too large")
	// ErrDimensionMismatch is returned when a vector does not have the configured dimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ContentRole marks whether text is indexed content or a query.
// Asymmetric models expect different prefixes for both.
type ContentRole int

const (
	RoleIndexed ContentRole = iota
	RoleQuery
)

// Prefix returns the text prefix of the role
func (r ContentRole) Prefix() string {
	switch r {
	case RoleQuery:
		return "query: "
	default:
		return "passage: "
	}
}

// Apply prefixes text for the role
func (r ContentRole) Apply(text string) string {
	return r.Prefix() + text
}

func (r ContentRole) String() string {
	switch r {
	case RoleQuery:
		return "query"
	default:
		return "indexed"
	}
}

// Embedder turns a batch of texts into vectors, one per text in input order.
// A failure of any item fails the whole batch.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string, role ContentRole) ([][]float32, error)
	Dimension() int
	MaxBatchSize() int
}

// EmbedOne embeds a single text
func EmbedOne(ctx context.Context, embedder Embedder, text string, role ContentRole) ([]float32, error) {
	vectors, err := embedder.EmbedBatch(ctx, []string{text}, role)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}

// Batches splits items into consecutive batches of at most size elements
func Batches[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}

	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

// prepareBatch checks the batch size and applies the role prefix
func prepareBatch(texts []string, role ContentRole, maxBatchSize int) ([]string, error) {
	if len(texts) > maxBatchSize {
		return nil, fmt.Errorf("%w: %d texts, max %d", ErrBatchTooLarge, len(texts), maxBatchSize)
	}

	prefixed := make([]string, len(texts))
	for i, text := range texts {
		prefixed[i] = role.Apply(text)
	}
	return prefixed, nil
}

// checkVectors verifies that there is one vector of the given dimension per text
func checkVectors(vectors [][]float32, count int, dim int) error {
	if len(vectors) != count {
		return fmt.Errorf("expected %d embeddings, got %d", count, len(vectors))
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: item %d has %d, expected %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return nil
}
