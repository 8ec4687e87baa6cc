package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrInvalidCourse marks a course record that cannot be stored or embedded
var ErrInvalidCourse = errors.New("invalid course")

// Course is the canonical catalog entity
type Course struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Metadata     Metadata  `json:"metadata,omitempty"`
	LastModified time.Time `json:"last_modified"`
	// People is only read on ingestion, the association table is the source of truth afterwards.
	People []*Person `json:"people,omitempty"`
}

// Validate checks a course before it is written by ingestion
func (c *Course) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: course is nil", ErrInvalidCourse)
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidCourse)
	}
	if !utf8.ValidString(c.Title) || !utf8.ValidString(c.Content) {
		return fmt.Errorf("%w: %s has invalid utf-8 text", ErrInvalidCourse, c.ID)
	}
	for _, p := range c.People {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidCourse, c.ID, err)
		}
	}
	return nil
}

// ValidateForEmbedding checks a course loaded from the store before embedding it.
// A zero LastModified means the row had no usable timestamp.
func (c *Course) ValidateForEmbedding() error {
	if c == nil || strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidCourse)
	}
	if c.LastModified.IsZero() {
		return fmt.Errorf("%w: %s has no last modified timestamp", ErrInvalidCourse, c.ID)
	}
	return nil
}

// PersonIDs returns the ids of the associated people in input order
func (c *Course) PersonIDs() []string {
	ids := make([]string, 0, len(c.People))
	for _, p := range c.People {
		ids = append(ids, p.ID)
	}
	return ids
}

// NewCourseFromFile reads a JSON course document as produced by ingestion
func NewCourseFromFile(filePath string) (*Course, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	course := &Course{}
	if err := json.Unmarshal(content, course); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCourse, filePath, err)
	}

	if err := course.Validate(); err != nil {
		return nil, err
	}

	return course, nil
}
