package database

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/siherrmann/coursesearch/helper"
	"github.com/siherrmann/coursesearch/model"
	"github.com/siherrmann/coursesearch/sql"
)

// CoursesDBHandlerFunctions defines the interface for Courses database operations.
type CoursesDBHandlerFunctions interface {
	UpsertCourse(ctx context.Context, course *model.Course) (bool, error)
	SelectCourse(ctx context.Context, id string) (*model.Course, error)
	SelectCoursesByIDs(ctx context.Context, ids []string) ([]*model.Course, error)
	SelectStaleCourseIDs(ctx context.Context, fields []model.Field) ([]string, error)
	DeleteCourse(ctx context.Context, id string) error
}

// CoursesDBHandler handles course-related database operations
type CoursesDBHandler struct {
	db *helper.Database
}

// NewCoursesDBHandler creates a new courses database handler.
// It loads the course-related SQL functions and creates the table.
// If force is true, it will reload the SQL functions even if they already exist.
func NewCoursesDBHandler(db *helper.Database, force bool) (*CoursesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	coursesDbHandler := &CoursesDBHandler{
		db: db,
	}

	err := sql.LoadCoursesSql(coursesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load courses sql", err)
	}

	err = coursesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized CoursesDBHandler")

	return coursesDbHandler, nil
}

// CreateTable creates the 'courses' table in the database.
// If the table already exists, it does not create it again.
func (h *CoursesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_courses();`)
	if err != nil {
		return helper.NewError("init courses", err)
	}

	h.db.Logger.Info("Checked/created table courses")

	return nil
}

// UpsertCourse writes a course together with its people and replaces the
// course's associations. It reports whether title or content changed.
// An unchanged course keeps its last_modified so no re-embedding is triggered.
// The stored last_modified is written back to course.LastModified.
func (h *CoursesDBHandler) UpsertCourse(ctx context.Context, course *model.Course) (bool, error) {
	if err := course.Validate(); err != nil {
		return false, helper.NewError("validate", err)
	}

	metadata := course.Metadata
	if metadata == nil {
		metadata = model.Metadata{}
	}

	personIDs := make([]string, 0, len(course.People))
	personNames := make([]string, 0, len(course.People))
	for _, p := range course.People {
		personIDs = append(personIDs, p.ID)
		personNames = append(personNames, p.Name)
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM upsert_course($1, $2, $3, $4, $5, $6)`,
		course.ID,
		course.Title,
		course.Content,
		metadata,
		pq.Array(personIDs),
		pq.Array(personNames),
	)

	var changed bool
	err := row.Scan(
		&changed,
		&course.LastModified,
	)
	if err != nil {
		return false, helper.NewError("scan", err)
	}

	return changed, nil
}

// SelectCourse retrieves a course by id
func (h *CoursesDBHandler) SelectCourse(ctx context.Context, id string) (*model.Course, error) {
	course := &model.Course{}
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_course($1)`,
		id,
	)

	err := row.Scan(
		&course.ID,
		&course.Title,
		&course.Content,
		&course.Metadata,
		&course.LastModified,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return course, nil
}

// SelectCoursesByIDs retrieves the given courses ordered by id.
// Unknown ids are left out.
func (h *CoursesDBHandler) SelectCoursesByIDs(ctx context.Context, ids []string) ([]*model.Course, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_courses_by_ids($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var courses []*model.Course
	for rows.Next() {
		course := &model.Course{}
		err := rows.Scan(
			&course.ID,
			&course.Title,
			&course.Content,
			&course.Metadata,
			&course.LastModified,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		courses = append(courses, course)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return courses, nil
}

// SelectStaleCourseIDs returns the ids of courses where any of the given
// field embeddings is missing or older than the course.
func (h *CoursesDBHandler) SelectStaleCourseIDs(ctx context.Context, fields []model.Field) ([]string, error) {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, string(f))
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_stale_course_ids($1)`,
		pq.Array(names),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, helper.NewError("scan", err)
		}
		ids = append(ids, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return ids, nil
}

// DeleteCourse deletes a course, its associations and its embeddings
func (h *CoursesDBHandler) DeleteCourse(ctx context.Context, id string) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_course($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
