package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/coursesearch/helper"
	"github.com/siherrmann/coursesearch/model"
	loadSql "github.com/siherrmann/coursesearch/sql"
)

// EmbeddingsDBHandlerFunctions defines the interface for Embeddings database operations.
type EmbeddingsDBHandlerFunctions interface {
	UpsertCourseEmbeddings(ctx context.Context, embeddings []*model.CourseEmbedding) (int, error)
	InsertPersonEmbeddings(ctx context.Context, embeddings []*model.PersonEmbedding) (int, error)
	SelectCourseEmbeddings(ctx context.Context, courseID string) ([]*model.FieldEmbedding, error)
	SelectPersonEmbedding(ctx context.Context, personID string) (*model.PersonEmbedding, error)
	DeleteCourseEmbeddings(ctx context.Context, courseID string) error
	SelectFieldDistances(ctx context.Context, field model.Field, query []float32, limit int) ([]*model.Similarity, error)
	SelectPersonDistances(ctx context.Context, query []float32, limit int) ([]*model.Similarity, error)
	SelectMostRelevantCourses(ctx context.Context, query []float32, config model.RankConfig) ([]*model.RankedCourse, error)
}

// EmbeddingsDBHandler handles the course_embeddings and person_embeddings tables.
// It needs the courses, people and course_people tables to exist.
type EmbeddingsDBHandler struct {
	db           *helper.Database
	embeddingDim int
}

// NewEmbeddingsDBHandler creates a new embeddings database handler.
// It loads the embedding and ranking SQL functions and creates both tables
// with vectors of embeddingDim.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEmbeddingsDBHandler(db *helper.Database, embeddingDim int, force bool) (*EmbeddingsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	embeddingsDbHandler := &EmbeddingsDBHandler{
		db:           db,
		embeddingDim: embeddingDim,
	}

	err := loadSql.Init(embeddingsDbHandler.db.Instance)
	if err != nil {
		return nil, helper.NewError("init extensions", err)
	}

	err = loadSql.LoadEmbeddingsSql(embeddingsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load embeddings sql", err)
	}

	err = loadSql.LoadRankingSql(embeddingsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load ranking sql", err)
	}

	err = embeddingsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EmbeddingsDBHandler", "dimension", embeddingDim)

	return embeddingsDbHandler, nil
}

// CreateTable creates the 'course_embeddings' and 'person_embeddings' tables.
// If the tables already exist, they are not created again.
func (h *EmbeddingsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_embeddings($1);`, h.embeddingDim)
	if err != nil {
		return helper.NewError("init embeddings", err)
	}

	h.db.Logger.Info("Checked/created tables course_embeddings and person_embeddings")

	return nil
}

// Dimension returns the vector dimension of the embedding tables
func (h *EmbeddingsDBHandler) Dimension() int {
	return h.embeddingDim
}

// UpsertCourseEmbeddings writes the title and content vectors of a batch of
// courses in one transaction. A row is only overwritten by a version that is
// at least as new, so the marker never moves backwards.
// It returns the number of field rows written.
func (h *EmbeddingsDBHandler) UpsertCourseEmbeddings(ctx context.Context, embeddings []*model.CourseEmbedding) (int, error) {
	if len(embeddings) == 0 {
		return 0, nil
	}

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return 0, helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `SELECT upsert_course_embedding($1, $2, $3, $4)`)
	if err != nil {
		return 0, helper.NewError("prepare", err)
	}
	defer stmt.Close()

	written := 0
	for _, e := range embeddings {
		for _, fe := range e.FieldEmbeddings() {
			if err := h.checkDimension(fe.Embedding); err != nil {
				return 0, helper.NewError(fmt.Sprintf("course %s %s", fe.CourseID, fe.Field), err)
			}

			var ok bool
			err := stmt.QueryRowContext(
				ctx,
				fe.CourseID,
				string(fe.Field),
				pgvector.NewVector(fe.Embedding),
				fe.LastModified,
			).Scan(&ok)
			if err != nil {
				return 0, helper.NewError("upsert course embedding", err)
			}
			if ok {
				written++
			}
		}
	}

	err = tx.Commit()
	if err != nil {
		return 0, helper.NewError("commit", err)
	}

	return written, nil
}

// InsertPersonEmbeddings writes a batch of name vectors in one transaction.
// Existing person embeddings are kept. It returns the number of rows written.
func (h *EmbeddingsDBHandler) InsertPersonEmbeddings(ctx context.Context, embeddings []*model.PersonEmbedding) (int, error) {
	if len(embeddings) == 0 {
		return 0, nil
	}

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return 0, helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `SELECT insert_person_embedding($1, $2)`)
	if err != nil {
		return 0, helper.NewError("prepare", err)
	}
	defer stmt.Close()

	written := 0
	for _, e := range embeddings {
		if err := h.checkDimension(e.Embedding); err != nil {
			return 0, helper.NewError(fmt.Sprintf("person %s", e.PersonID), err)
		}

		var ok bool
		err := stmt.QueryRowContext(ctx, e.PersonID, pgvector.NewVector(e.Embedding)).Scan(&ok)
		if err != nil {
			return 0, helper.NewError("insert person embedding", err)
		}
		if ok {
			written++
		}
	}

	err = tx.Commit()
	if err != nil {
		return 0, helper.NewError("commit", err)
	}

	return written, nil
}

// SelectCourseEmbeddings returns the stored field vectors of a course
func (h *EmbeddingsDBHandler) SelectCourseEmbeddings(ctx context.Context, courseID string) ([]*model.FieldEmbedding, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_course_embeddings($1)`,
		courseID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var embeddings []*model.FieldEmbedding
	for rows.Next() {
		fe := &model.FieldEmbedding{}
		var field string
		var vector pgvector.Vector
		err := rows.Scan(
			&fe.CourseID,
			&field,
			&vector,
			&fe.LastModified,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		fe.Field = model.Field(field)
		fe.Embedding = vector.Slice()

		embeddings = append(embeddings, fe)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return embeddings, nil
}

// SelectPersonEmbedding returns the name vector of a person
func (h *EmbeddingsDBHandler) SelectPersonEmbedding(ctx context.Context, personID string) (*model.PersonEmbedding, error) {
	pe := &model.PersonEmbedding{}
	var vector pgvector.Vector
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_person_embedding($1)`,
		personID,
	)

	err := row.Scan(
		&pe.PersonID,
		&vector,
		&pe.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}
	pe.Embedding = vector.Slice()

	return pe, nil
}

// DeleteCourseEmbeddings removes all field vectors of a course, which makes it stale
func (h *EmbeddingsDBHandler) DeleteCourseEmbeddings(ctx context.Context, courseID string) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_course_embeddings($1)`,
		courseID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectFieldDistances returns course ids by ascending distance of one field
// to the query vector. A limit of zero or less returns all rows.
func (h *EmbeddingsDBHandler) SelectFieldDistances(ctx context.Context, field model.Field, query []float32, limit int) ([]*model.Similarity, error) {
	if !field.Valid() {
		return nil, helper.NewError("field validation", fmt.Errorf("unknown field %q", field))
	}
	if err := h.checkDimension(query); err != nil {
		return nil, helper.NewError("query validation", err)
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_field_distances($1, $2, $3)`,
		string(field),
		pgvector.NewVector(query),
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	return scanSimilarities(rows)
}

// SelectPersonDistances returns person ids by ascending name distance to the query vector
func (h *EmbeddingsDBHandler) SelectPersonDistances(ctx context.Context, query []float32, limit int) ([]*model.Similarity, error) {
	if err := h.checkDimension(query); err != nil {
		return nil, helper.NewError("query validation", err)
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_person_distances($1, $2)`,
		pgvector.NewVector(query),
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	return scanSimilarities(rows)
}

func (h *EmbeddingsDBHandler) checkDimension(v []float32) error {
	if len(v) != h.embeddingDim {
		return fmt.Errorf("vector has dimension %d, expected %d", len(v), h.embeddingDim)
	}
	return nil
}

func scanSimilarities(rows *sql.Rows) ([]*model.Similarity, error) {
	defer rows.Close()

	var similarities []*model.Similarity
	for rows.Next() {
		s := &model.Similarity{}
		if err := rows.Scan(&s.ID, &s.Distance); err != nil {
			return nil, helper.NewError("scan", err)
		}
		similarities = append(similarities, s)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return similarities, nil
}
