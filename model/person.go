package model

import (
	"errors"
	"strings"
	"time"
)

// Person is someone associated with courses, e.g. a coordinator.
// The id is stable and the name is treated as immutable once stored.
type Person struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the person id, the name may be empty
func (p *Person) Validate() error {
	if p == nil {
		return errors.New("person is nil")
	}
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("person id is empty")
	}
	return nil
}

// CoursePerson is one row of the course to person association
type CoursePerson struct {
	CourseID string `json:"course_id"`
	PersonID string `json:"person_id"`
}
