package embedsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siherrmann/coursesearch/core/pipeline"
	"github.com/siherrmann/coursesearch/model"
)

// CourseStore reads courses, see database.CoursesDBHandler
type CourseStore interface {
	SelectStaleCourseIDs(ctx context.Context, fields []model.Field) ([]string, error)
	SelectCoursesByIDs(ctx context.Context, ids []string) ([]*model.Course, error)
}

// CourseEmbeddingStore writes course embeddings, see database.EmbeddingsDBHandler
type CourseEmbeddingStore interface {
	UpsertCourseEmbeddings(ctx context.Context, embeddings []*model.CourseEmbedding) (int, error)
}

// CourseTarget keeps the title and content embeddings of courses fresh
type CourseTarget struct {
	courses    CourseStore
	embeddings CourseEmbeddingStore
	embedder   pipeline.Embedder
	logger     *slog.Logger
}

// NewCourseTarget creates a course target
func NewCourseTarget(courses CourseStore, embeddings CourseEmbeddingStore, embedder pipeline.Embedder, logger *slog.Logger) *CourseTarget {
	return &CourseTarget{
		courses:    courses,
		embeddings: embeddings,
		embedder:   embedder,
		logger:     logger,
	}
}

// Name implements Target
func (t *CourseTarget) Name() string {
	return "courses"
}

// Stale implements Target
func (t *CourseTarget) Stale(ctx context.Context) ([]string, error) {
	return t.courses.SelectStaleCourseIDs(ctx, model.Fields)
}

// Embed implements Target. Each row carries the last_modified the course
// was read with, which becomes the freshness marker of its embeddings.
func (t *CourseTarget) Embed(ctx context.Context, ids []string) ([]*model.CourseEmbedding, int, error) {
	courses, err := t.courses.SelectCoursesByIDs(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: load courses: %w", ErrStore, err)
	}

	valid := make([]*model.Course, 0, len(courses))
	skipped := len(ids) - len(courses)
	for _, course := range courses {
		if err := course.ValidateForEmbedding(); err != nil {
			t.logger.Warn("Skipping course", "id", course.ID, "error", err)
			skipped++
			continue
		}
		valid = append(valid, course)
	}
	if len(valid) == 0 {
		return nil, skipped, nil
	}

	titles := make([]string, len(valid))
	contents := make([]string, len(valid))
	for i, course := range valid {
		titles[i] = course.Title
		contents[i] = course.Content
	}

	titleVectors, err := embedAll(ctx, t.embedder, titles, pipeline.RoleIndexed)
	if err != nil {
		return nil, skipped, fmt.Errorf("embed titles: %w", err)
	}
	contentVectors, err := embedAll(ctx, t.embedder, contents, pipeline.RoleIndexed)
	if err != nil {
		return nil, skipped, fmt.Errorf("embed contents: %w", err)
	}

	rows := make([]*model.CourseEmbedding, len(valid))
	for i, course := range valid {
		rows[i] = &model.CourseEmbedding{
			CourseID:     course.ID,
			Title:        titleVectors[i],
			Content:      contentVectors[i],
			LastModified: course.LastModified,
		}
	}

	return rows, skipped, nil
}

// Persist implements Target
func (t *CourseTarget) Persist(ctx context.Context, rows []*model.CourseEmbedding) error {
	_, err := t.embeddings.UpsertCourseEmbeddings(ctx, rows)
	return err
}

// embedAll embeds texts in chunks the embedder accepts. Any failing chunk fails all.
func embedAll(ctx context.Context, embedder pipeline.Embedder, texts []string, role pipeline.ContentRole) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, chunk := range pipeline.Batches(texts, embedder.MaxBatchSize()) {
		chunkVectors, err := embedder.EmbedBatch(ctx, chunk, role)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, chunkVectors...)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
	}
	return vectors, nil
}
