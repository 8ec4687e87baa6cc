package model

import (
	"time"

	"github.com/google/uuid"
)

// RankedCourse is one row of a ranking with the signals it was built from
type RankedCourse struct {
	ID              string  `json:"id"`
	TitleDistance   float64 `json:"title_distance"`
	ContentDistance float64 `json:"content_distance"`
	// PersonDistance is the dampened best person distance
	PersonDistance float64 `json:"person_distance"`
	TotalDistance  float64 `json:"total_distance"`
}

// Similarity is the distance of a single signal, keyed by course or person id
type Similarity struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
}

// SyncReport summarizes one sync iteration
type SyncReport struct {
	RunID         uuid.UUID     `json:"run_id"`
	Target        string        `json:"target"`
	Stale         int           `json:"stale"`
	Embedded      int           `json:"embedded"`
	Skipped       int           `json:"skipped"`
	FailedBatches int           `json:"failed_batches"`
	Locked        bool          `json:"locked,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Error         string        `json:"error,omitempty"`
}
