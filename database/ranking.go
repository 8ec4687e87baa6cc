package database

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/coursesearch/helper"
	"github.com/siherrmann/coursesearch/model"
)

// SelectMostRelevantCourses ranks all fully embedded courses against the
// query vector in a single read. Rows are ordered by total distance, ties by id.
func (h *EmbeddingsDBHandler) SelectMostRelevantCourses(ctx context.Context, query []float32, config model.RankConfig) ([]*model.RankedCourse, error) {
	if err := config.Validate(); err != nil {
		return nil, helper.NewError("rank config validation", err)
	}
	if err := h.checkDimension(query); err != nil {
		return nil, helper.NewError("query validation", err)
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_most_relevant_courses($1, $2, $3, $4, $5, $6)`,
		pgvector.NewVector(query),
		config.Limit,
		config.ClipThreshold,
		config.ClipPenalty,
		config.NoPersonDistance,
		string(config.Combine),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var ranked []*model.RankedCourse
	for rows.Next() {
		r := &model.RankedCourse{}
		err := rows.Scan(
			&r.ID,
			&r.TitleDistance,
			&r.ContentDistance,
			&r.PersonDistance,
			&r.TotalDistance,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		ranked = append(ranked, r)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return ranked, nil
}
