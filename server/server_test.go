package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/siherrmann/coursesearch"
	"github.com/siherrmann/coursesearch/helper"
	"github.com/siherrmann/coursesearch/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSearcher struct {
	err          error
	lastStrategy string
	lastLimit    int
}

func (m *mockSearcher) Search(ctx context.Context, query string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []string{"MATH101", "CHEM101"}, nil
}

func (m *mockSearcher) SearchDetailed(ctx context.Context, query string) ([]*model.RankedCourse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []*model.RankedCourse{{ID: "MATH101", TitleDistance: 0.1, ContentDistance: 0.2, PersonDistance: 0.9, TotalDistance: 1.2}}, nil
}

func (m *mockSearcher) Similarities(ctx context.Context, strategyName string, query string, limit int) ([]*model.Similarity, error) {
	m.lastStrategy = strategyName
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return []*model.Similarity{{ID: "MATH101", Distance: 0.25}}, nil
}

func (m *mockSearcher) SyncStatus() []coursesearch.SyncStatus {
	return []coursesearch.SyncStatus{{Target: "courses", State: "idle"}, {Target: "people", State: "embedding"}}
}

func newTestServer(searcher Searcher) *Server {
	return NewServer(searcher, helper.NewLogger(os.Stdout, slog.LevelWarn))
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(&mockSearcher{}), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", rec.Body.String())
}

func TestSearch(t *testing.T) {
	t.Run("Returns ranked ids", func(t *testing.T) {
		rec := get(t, newTestServer(&mockSearcher{}), "/search?query=linear+algebra")
		require.Equal(t, http.StatusOK, rec.Code)

		var ids []string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ids))
		assert.Equal(t, []string{"MATH101", "CHEM101"}, ids)
	})

	t.Run("Missing query", func(t *testing.T) {
		rec := get(t, newTestServer(&mockSearcher{}), "/search")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Blank query", func(t *testing.T) {
		searcher := &mockSearcher{}
		rec := get(t, newTestServer(searcher), "/search?query=%20%20")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = get(t, newTestServer(searcher), "/search/detailed?query=%09")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Empty query error from the searcher", func(t *testing.T) {
		rec := get(t, newTestServer(&mockSearcher{err: fmt.Errorf("embed: %w", coursesearch.ErrEmptyQuery)}), "/search?query=algebra")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Searcher failure", func(t *testing.T) {
		rec := get(t, newTestServer(&mockSearcher{err: errors.New("database down")}), "/search?query=algebra")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "database down")
	})

	t.Run("Detailed results", func(t *testing.T) {
		rec := get(t, newTestServer(&mockSearcher{}), "/search/detailed?query=algebra")
		require.Equal(t, http.StatusOK, rec.Code)

		var ranked []*model.RankedCourse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ranked))
		require.Len(t, ranked, 1)
		assert.Equal(t, "MATH101", ranked[0].ID)
		assert.InDelta(t, 1.2, ranked[0].TotalDistance, 1e-9)
	})
}

func TestSimilarities(t *testing.T) {
	tests := []struct {
		name         string
		target       string
		wantCode     int
		wantStrategy string
		wantLimit    int
	}{
		{"Title", "/title_similarities?query=algebra", http.StatusOK, "title", DefaultSimilarityLimit},
		{"Content with limit", "/content_similarities?query=algebra&limit=3", http.StatusOK, "content", 3},
		{"Names", "/name_similarities?query=noether", http.StatusOK, "person", DefaultSimilarityLimit},
		{"Dampened names", "/name_similarities?query=noether&dampened=true", http.StatusOK, "person_dampened", DefaultSimilarityLimit},
		{"Invalid limit", "/title_similarities?query=algebra&limit=-1", http.StatusBadRequest, "", 0},
		{"Invalid dampened", "/name_similarities?query=noether&dampened=maybe", http.StatusBadRequest, "", 0},
		{"Missing query", "/content_similarities", http.StatusBadRequest, "", 0},
		{"Blank query", "/name_similarities?query=%20%20", http.StatusBadRequest, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &mockSearcher{}
			rec := get(t, newTestServer(searcher), tt.target)
			require.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantStrategy, searcher.lastStrategy)
			assert.Equal(t, tt.wantLimit, searcher.lastLimit)

			if tt.wantCode == http.StatusOK {
				var similarities []*model.Similarity
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &similarities))
				assert.Equal(t, "MATH101", similarities[0].ID)
			}
		})
	}

	t.Run("Searcher failure", func(t *testing.T) {
		rec := get(t, newTestServer(&mockSearcher{err: errors.New("embedder offline")}), "/title_similarities?query=algebra")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestSyncStatus(t *testing.T) {
	rec := get(t, newTestServer(&mockSearcher{}), "/sync/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var statuses []coursesearch.SyncStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, "people", statuses[1].Target)
	assert.Equal(t, "embedding", statuses[1].State)
}

func TestStart(t *testing.T) {
	s := newTestServer(&mockSearcher{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Start(ctx, "127.0.0.1:0")
	assert.NoError(t, err)
}
