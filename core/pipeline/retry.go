package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig bounds the retries of a batch
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns three retries starting at half a second
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// RetryEmbedder retries failed batches of another embedder with exponential backoff.
// Oversized batches and dimension mismatches are not retried.
type RetryEmbedder struct {
	next   Embedder
	config RetryConfig
	logger *slog.Logger
}

// NewRetryEmbedder wraps next
func NewRetryEmbedder(next Embedder, config RetryConfig, logger *slog.Logger) *RetryEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryEmbedder{
		next:   next,
		config: config,
		logger: logger,
	}
}

// EmbedBatch implements Embedder
func (e *RetryEmbedder) EmbedBatch(ctx context.Context, texts []string, role ContentRole) ([][]float32, error) {
	var vectors [][]float32
	attempt := 0

	operation := func() error {
		attempt++
		var err error
		vectors, err = e.next.EmbedBatch(ctx, texts, role)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrBatchTooLarge) || errors.Is(err, ErrDimensionMismatch) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		e.logger.Warn("Embedding batch failed, retrying", "attempt", attempt, "wait", wait, "error", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.config.InitialInterval
	b.MaxInterval = e.config.MaxInterval
	b.MaxElapsedTime = 0

	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(b, e.config.MaxRetries), ctx), notify)
	if err != nil {
		return nil, err
	}

	return vectors, nil
}

// Dimension implements Embedder
func (e *RetryEmbedder) Dimension() int {
	return e.next.Dimension()
}

// MaxBatchSize implements Embedder
func (e *RetryEmbedder) MaxBatchSize() int {
	return e.next.MaxBatchSize()
}

// Close closes the wrapped embedder if it holds resources
func (e *RetryEmbedder) Close() error {
	if closer, ok := e.next.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
