package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata holds catalog attributes of a course (faculty, credits, terms, ...).
// It is stored in the courses.metadata JSONB column and never embedded, so
// editing it alone does not make a course stale.
type Metadata map[string]interface{}

// Value writes the metadata as JSON. Nil metadata is written as JSON null,
// UpsertCourse replaces it with an empty object before that happens.
func (m Metadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal course metadata: %w", err)
	}
	return b, nil
}

// Scan reads a JSONB column. SQL NULL becomes empty metadata.
func (m *Metadata) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case Metadata:
		*m = v
		return nil
	case []byte:
		return m.decode(v)
	case string:
		return m.decode([]byte(v))
	default:
		return fmt.Errorf("scan course metadata: unsupported type %T", value)
	}
}

func (m *Metadata) decode(b []byte) error {
	decoded := Metadata{}
	if err := json.Unmarshal(b, &decoded); err != nil {
		return fmt.Errorf("scan course metadata: %w", err)
	}
	*m = decoded
	return nil
}
