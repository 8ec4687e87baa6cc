package coursesearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/siherrmann/coursesearch/core/embedsync"
	"github.com/siherrmann/coursesearch/core/pipeline"
	"github.com/siherrmann/coursesearch/core/retrieval"
	"github.com/siherrmann/coursesearch/database"
	"github.com/siherrmann/coursesearch/helper"
	"github.com/siherrmann/coursesearch/model"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyQuery is returned for queries without any text
var ErrEmptyQuery = errors.New("empty query")

// syncLockKey is the postgres advisory lock key of the sync loops, each loop
// locks its own target name under it
const syncLockKey int32 = 0x63737263

// Options configures a Searcher
type Options struct {
	Rank   model.RankConfig
	Sync   model.SyncConfig
	Logger *slog.Logger
}

// DefaultOptions returns the reference ranking and sync configuration
func DefaultOptions() Options {
	return Options{
		Rank: model.DefaultRankConfig(),
		Sync: model.DefaultSyncConfig(),
	}
}

// Searcher provides a unified interface to the store, the sync loops and the ranking
type Searcher struct {
	DB           *helper.Database
	Courses      *database.CoursesDBHandler
	People       *database.PeopleDBHandler
	Associations *database.AssociationsDBHandler
	Embeddings   *database.EmbeddingsDBHandler
	Engine       *retrieval.Engine
	Embedder     pipeline.Embedder
	CourseSync   *embedsync.Loop[*model.CourseEmbedding]
	PersonSync   *embedsync.Loop[*model.PersonEmbedding]
	// Logging
	log *slog.Logger
}

// NewSearcher connects to the database, creates all tables and wires the
// sync loops and the ranking engine around the given embedder.
func NewSearcher(config *helper.DatabaseConfiguration, embedder pipeline.Embedder, opts Options) (*Searcher, error) {
	if embedder == nil {
		return nil, helper.NewError("embedder validation", fmt.Errorf("embedder is nil"))
	}

	logger := opts.Logger
	if logger == nil {
		logger = helper.NewLogger(os.Stdout, slog.LevelInfo)
	}

	db, err := helper.NewDatabase("coursesearch", config, logger)
	if err != nil {
		return nil, helper.NewError("connect database", err)
	}

	searcher, err := newSearcher(db, embedder, opts, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	return searcher, nil
}

func newSearcher(db *helper.Database, embedder pipeline.Embedder, opts Options, logger *slog.Logger) (*Searcher, error) {
	// Order matters, associations and embeddings reference courses and people
	courses, err := database.NewCoursesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create courses handler", err)
	}

	people, err := database.NewPeopleDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create people handler", err)
	}

	associations, err := database.NewAssociationsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create associations handler", err)
	}

	embeddings, err := database.NewEmbeddingsDBHandler(db, embedder.Dimension(), false)
	if err != nil {
		return nil, helper.NewError("create embeddings handler", err)
	}

	engine, err := retrieval.NewEngine(embeddings, opts.Rank)
	if err != nil {
		return nil, helper.NewError("create engine", err)
	}

	var locker embedsync.Locker
	if opts.Sync.AdvisoryLock {
		lock, err := database.NewAdvisoryLock(db, syncLockKey)
		if err != nil {
			return nil, helper.NewError("create sync lock", err)
		}
		locker = lock
	}

	courseTarget := embedsync.NewCourseTarget(courses, embeddings, embedder, logger)
	courseSync, err := embedsync.NewLoop[*model.CourseEmbedding](courseTarget, opts.Sync, locker, logger)
	if err != nil {
		return nil, helper.NewError("create course sync", err)
	}

	personTarget := embedsync.NewPersonTarget(people, embeddings, embedder, logger)
	personSync, err := embedsync.NewLoop[*model.PersonEmbedding](personTarget, opts.Sync, locker, logger)
	if err != nil {
		return nil, helper.NewError("create person sync", err)
	}

	return &Searcher{
		DB:           db,
		Courses:      courses,
		People:       people,
		Associations: associations,
		Embeddings:   embeddings,
		Engine:       engine,
		Embedder:     embedder,
		CourseSync:   courseSync,
		PersonSync:   personSync,
		log:          logger,
	}, nil
}

// Close closes the embedder if it holds resources and the database connection
func (s *Searcher) Close() error {
	var errs []error
	if closer, ok := s.Embedder.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if s.DB != nil {
		errs = append(errs, s.DB.Close())
	}
	return errors.Join(errs...)
}

// UpsertCourse writes a course and its people, see database.CoursesDBHandler.UpsertCourse
func (s *Searcher) UpsertCourse(ctx context.Context, course *model.Course) (bool, error) {
	return s.Courses.UpsertCourse(ctx, course)
}

// Search returns the ids of the most relevant courses for a free text query,
// best first. Results are computed on every call.
func (s *Searcher) Search(ctx context.Context, query string) ([]string, error) {
	ranked, err := s.SearchDetailed(ctx, query)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ID
	}
	return ids, nil
}

// SearchDetailed is Search returning the per signal distances
func (s *Searcher) SearchDetailed(ctx context.Context, query string) ([]*model.RankedCourse, error) {
	embedding, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	ranked, err := s.Engine.Rank(ctx, embedding)
	if err != nil {
		return nil, helper.NewError("search", err)
	}

	s.log.Debug("Ranked courses", slog.String("query", query), slog.Int("results", len(ranked)))

	return ranked, nil
}

// Similarities returns the distances of a single signal, see retrieval.NewStrategy for names
func (s *Searcher) Similarities(ctx context.Context, strategyName string, query string, limit int) ([]*model.Similarity, error) {
	strategy, err := retrieval.NewStrategy(s.Engine, strategyName)
	if err != nil {
		return nil, helper.NewError("similarities", err)
	}

	embedding, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	similarities, err := strategy.Retrieve(ctx, embedding, limit)
	if err != nil {
		return nil, helper.NewError("similarities", err)
	}
	return similarities, nil
}

func (s *Searcher) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	embedding, err := pipeline.EmbedOne(ctx, s.Embedder, query, pipeline.RoleQuery)
	if err != nil {
		return nil, helper.NewError("embed query", err)
	}
	return embedding, nil
}

// SyncRunners returns the course and person loops
func (s *Searcher) SyncRunners() []embedsync.Runner {
	return []embedsync.Runner{s.CourseSync, s.PersonSync}
}

// SyncOnce runs one iteration of both loops, courses first
func (s *Searcher) SyncOnce(ctx context.Context) ([]*model.SyncReport, error) {
	var reports []*model.SyncReport
	for _, runner := range s.SyncRunners() {
		report, err := runner.RunOnce(ctx)
		reports = append(reports, report)
		if err != nil {
			return reports, helper.NewError(fmt.Sprintf("sync %s", runner.Name()), err)
		}
	}
	return reports, nil
}

// RunSync runs both loops until ctx is cancelled
func (s *Searcher) RunSync(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, runner := range s.SyncRunners() {
		group.Go(func() error {
			return runner.Run(ctx)
		})
	}
	return group.Wait()
}

// SyncStatus is the state of one loop and its last report
type SyncStatus struct {
	Target     string            `json:"target"`
	State      string            `json:"state"`
	LastReport *model.SyncReport `json:"last_report,omitempty"`
}

// SyncStatus returns the status of both loops
func (s *Searcher) SyncStatus() []SyncStatus {
	runners := s.SyncRunners()
	statuses := make([]SyncStatus, 0, len(runners))
	for _, runner := range runners {
		statuses = append(statuses, SyncStatus{
			Target:     runner.Name(),
			State:      runner.State().String(),
			LastReport: runner.LastReport(),
		})
	}
	return statuses
}
