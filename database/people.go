package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/siherrmann/coursesearch/helper"
	"github.com/siherrmann/coursesearch/model"
	loadSql "github.com/siherrmann/coursesearch/sql"
)

// PeopleDBHandlerFunctions defines the interface for People database operations.
type PeopleDBHandlerFunctions interface {
	SelectPerson(ctx context.Context, id string) (*model.Person, error)
	SelectPeopleByIDs(ctx context.Context, ids []string) ([]*model.Person, error)
	SelectPeopleMissingEmbedding(ctx context.Context) ([]*model.Person, error)
}

// PeopleDBHandler handles person-related database operations.
// People are written by CoursesDBHandler.UpsertCourse.
type PeopleDBHandler struct {
	db *helper.Database
}

// NewPeopleDBHandler creates a new people database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewPeopleDBHandler(db *helper.Database, force bool) (*PeopleDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	peopleDbHandler := &PeopleDBHandler{
		db: db,
	}

	err := loadSql.LoadPeopleSql(peopleDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load people sql", err)
	}

	err = peopleDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized PeopleDBHandler")

	return peopleDbHandler, nil
}

// CreateTable creates the 'people' table in the database.
func (h *PeopleDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_people();`)
	if err != nil {
		return helper.NewError("init people", err)
	}

	h.db.Logger.Info("Checked/created table people")

	return nil
}

// SelectPerson retrieves a person by id
func (h *PeopleDBHandler) SelectPerson(ctx context.Context, id string) (*model.Person, error) {
	person := &model.Person{}
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_person($1)`,
		id,
	)

	err := row.Scan(
		&person.ID,
		&person.Name,
		&person.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return person, nil
}

// SelectPeopleByIDs retrieves the given people ordered by id
func (h *PeopleDBHandler) SelectPeopleByIDs(ctx context.Context, ids []string) ([]*model.Person, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_people_by_ids($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	return scanPeople(rows)
}

// SelectPeopleMissingEmbedding returns all people without a name embedding
func (h *PeopleDBHandler) SelectPeopleMissingEmbedding(ctx context.Context) ([]*model.Person, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_people_missing_embedding()`,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	return scanPeople(rows)
}

func scanPeople(rows *sql.Rows) ([]*model.Person, error) {
	defer rows.Close()

	var people []*model.Person
	for rows.Next() {
		person := &model.Person{}
		err := rows.Scan(
			&person.ID,
			&person.Name,
			&person.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		people = append(people, person)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return people, nil
}
