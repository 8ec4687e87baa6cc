package database

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/coursesearch/helper"
	"github.com/siherrmann/coursesearch/model"
	"github.com/siherrmann/coursesearch/sql"
)

// AssociationsDBHandlerFunctions defines the interface for course to person associations.
type AssociationsDBHandlerFunctions interface {
	SelectPeopleByCourse(ctx context.Context, courseID string) ([]*model.Person, error)
	SelectCourseIDsByPerson(ctx context.Context, personID string) ([]string, error)
}

// AssociationsDBHandler handles the course_people table.
// It needs the courses and people tables to exist.
type AssociationsDBHandler struct {
	db *helper.Database
}

// NewAssociationsDBHandler creates a new associations database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewAssociationsDBHandler(db *helper.Database, force bool) (*AssociationsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	associationsDbHandler := &AssociationsDBHandler{
		db: db,
	}

	err := sql.LoadAssociationsSql(associationsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load associations sql", err)
	}

	err = associationsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized AssociationsDBHandler")

	return associationsDbHandler, nil
}

// CreateTable creates the 'course_people' table in the database.
func (h *AssociationsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_course_people();`)
	if err != nil {
		return helper.NewError("init course_people", err)
	}

	h.db.Logger.Info("Checked/created table course_people")

	return nil
}

// SelectPeopleByCourse returns the people associated with a course ordered by id
func (h *AssociationsDBHandler) SelectPeopleByCourse(ctx context.Context, courseID string) ([]*model.Person, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_people_by_course($1)`,
		courseID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	return scanPeople(rows)
}

// SelectCourseIDsByPerson returns the ids of the courses a person is associated with
func (h *AssociationsDBHandler) SelectCourseIDsByPerson(ctx context.Context, personID string) ([]string, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_course_ids_by_person($1)`,
		personID,
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
