package model

import (
	"fmt"
	"time"
)

// Field names an embedded course field
type Field string

const (
	FieldTitle   Field = "title"
	FieldContent Field = "content"
)

// Fields are all course fields that get an embedding
var Fields = []Field{FieldTitle, FieldContent}

// Valid reports whether f is a known field
func (f Field) Valid() bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

// ParseField converts a string to a Field
func ParseField(s string) (Field, error) {
	f := Field(s)
	if !f.Valid() {
		return "", fmt.Errorf("unknown field %q", s)
	}
	return f, nil
}

// FieldEmbedding is the vector of one course field.
// LastModified is the course version the vector was computed from.
type FieldEmbedding struct {
	CourseID     string    `json:"course_id"`
	Field        Field     `json:"field"`
	Embedding    []float32 `json:"embedding,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CourseEmbedding holds all field vectors of one course version
type CourseEmbedding struct {
	CourseID     string
	Title        []float32
	Content      []float32
	LastModified time.Time
}

// FieldEmbeddings splits the course embedding into one row per field
func (c *CourseEmbedding) FieldEmbeddings() []*FieldEmbedding {
	return []*FieldEmbedding{
		{CourseID: c.CourseID, Field: FieldTitle, Embedding: c.Title, LastModified: c.LastModified},
		{CourseID: c.CourseID, Field: FieldContent, Embedding: c.Content, LastModified: c.LastModified},
	}
}

// PersonEmbedding is the vector of a person's name
type PersonEmbedding struct {
	PersonID  string    `json:"person_id"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
