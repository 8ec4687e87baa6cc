package model

import (
	"fmt"
	"time"
)

// CombineMode selects how the per signal distances of a course are merged
type CombineMode string

const (
	// CombineSum adds title, content and dampened person distance
	CombineSum CombineMode = "sum"
	// CombineMax takes the largest of the three. It ranks differently from
	// CombineSum and is only kept as an explicit opt-in.
	CombineMax CombineMode = "max"
)

// RankConfig represents configuration for a ranking query
type RankConfig struct {
	// Limit bounds the number of results, zero or less means unbounded.
	Limit int `json:"limit"`

	// Person signal dampening. A best person distance above ClipThreshold is
	// replaced by ClipPenalty, anything else is halved. This is a fixed
	// heuristic and intentionally not continuous at the threshold.
	ClipThreshold float64 `json:"clip_threshold"`
	ClipPenalty   float64 `json:"clip_penalty"`

	// NoPersonDistance is used for courses without any embedded person.
	NoPersonDistance float64 `json:"no_person_distance"`

	Combine CombineMode `json:"combine"`
}

// DefaultRankConfig returns the reference configuration
func DefaultRankConfig() RankConfig {
	return RankConfig{
		Limit:            200,
		ClipThreshold:    0.8,
		ClipPenalty:      0.9,
		NoPersonDistance: 0.9,
		Combine:          CombineSum,
	}
}

// Validate checks the ranking parameters
func (c RankConfig) Validate() error {
	if c.ClipThreshold < 0 || c.ClipPenalty < 0 || c.NoPersonDistance < 0 {
		return fmt.Errorf("distances must not be negative")
	}
	if c.Combine != CombineSum && c.Combine != CombineMax {
		return fmt.Errorf("unknown combine mode %q", c.Combine)
	}
	return nil
}

// DampenPersonDistance applies the clip or halve rule to a best person distance
func (c RankConfig) DampenPersonDistance(d float64) float64 {
	if d > c.ClipThreshold {
		return c.ClipPenalty
	}
	return d / 2
}

// SyncConfig represents configuration for the embedding sync loops
type SyncConfig struct {
	Interval  time.Duration `json:"interval"`
	BatchSize int           `json:"batch_size"`
	// AdvisoryLock makes each iteration take a postgres advisory lock so
	// only one process embeds at a time.
	AdvisoryLock bool `json:"advisory_lock"`
}

// DefaultSyncConfig returns the reference configuration
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Interval:     6 * time.Hour,
		BatchSize:    32,
		AdvisoryLock: false,
	}
}

// Validate checks the sync parameters
func (c SyncConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	return nil
}
