package embedsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/coursesearch/core/pipeline"
	"github.com/siherrmann/coursesearch/helper"
	"github.com/siherrmann/coursesearch/model"
)

// ErrStore marks target errors that come from the store. They fail the
// whole iteration, any other embed error only fails its batch.
var ErrStore = errors.New("store")

// State is the phase a loop is in
type State int32

const (
	StateIdle State = iota
	StateDetecting
	StateEmbedding
	StatePersisting
)

func (s State) String() string {
	switch s {
	case StateDetecting:
		return "detecting"
	case StateEmbedding:
		return "embedding"
	case StatePersisting:
		return "persisting"
	default:
		return "idle"
	}
}

// Target is something whose embeddings are kept in sync with the store.
// Embed loads and embeds the given ids, skipping records with bad data.
// Persist writes all rows of a batch at once.
type Target[T any] interface {
	Name() string
	Stale(ctx context.Context) ([]string, error)
	Embed(ctx context.Context, ids []string) (rows []T, skipped int, err error)
	Persist(ctx context.Context, rows []T) error
}

// Locker is a non blocking cross process lock keyed by name, see
// database.AdvisoryLock. Locks of different names must not conflict, each
// loop locks the name of its target.
type Locker interface {
	TryLock(ctx context.Context, name string) (release func() error, ok bool, err error)
}

// Runner is the type independent view of a Loop
type Runner interface {
	Name() string
	State() State
	LastReport() *model.SyncReport
	RunOnce(ctx context.Context) (*model.SyncReport, error)
	Run(ctx context.Context) error
}

// Loop periodically detects stale ids of a target and re-embeds them in batches
type Loop[T any] struct {
	target Target[T]
	config model.SyncConfig
	locker Locker
	logger *slog.Logger

	state      atomic.Int32
	mu         sync.Mutex
	lastReport *model.SyncReport
}

// NewLoop creates a loop for target. locker may be nil.
func NewLoop[T any](target Target[T], config model.SyncConfig, locker Locker, logger *slog.Logger) (*Loop[T], error) {
	if target == nil {
		return nil, helper.NewError("target validation", errors.New("target is nil"))
	}
	if err := config.Validate(); err != nil {
		return nil, helper.NewError("sync config validation", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Loop[T]{
		target: target,
		config: config,
		locker: locker,
		logger: logger.With("target", target.Name()),
	}, nil
}

// Name returns the target name
func (l *Loop[T]) Name() string {
	return l.target.Name()
}

// State returns the current phase
func (l *Loop[T]) State() State {
	return State(l.state.Load())
}

func (l *Loop[T]) setState(s State) {
	l.state.Store(int32(s))
}

// LastReport returns a copy of the report of the last finished iteration, or nil
func (l *Loop[T]) LastReport() *model.SyncReport {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lastReport == nil {
		return nil
	}
	report := *l.lastReport
	return &report
}

// RunOnce runs a single iteration. Failed embedding batches are counted in
// the report and their ids stay stale for the next iteration. Store errors
// and cancellation end the iteration early and are returned.
func (l *Loop[T]) RunOnce(ctx context.Context) (*model.SyncReport, error) {
	report := &model.SyncReport{
		RunID:     uuid.New(),
		Target:    l.target.Name(),
		StartedAt: time.Now(),
	}

	err := l.runOnce(ctx, report)

	report.Duration = time.Since(report.StartedAt)
	if err != nil {
		report.Error = err.Error()
	}
	l.setState(StateIdle)

	l.mu.Lock()
	stored := *report
	l.lastReport = &stored
	l.mu.Unlock()

	l.logger.Info("Sync iteration finished",
		"run_id", report.RunID,
		"stale", report.Stale,
		"embedded", report.Embedded,
		"skipped", report.Skipped,
		"failed_batches", report.FailedBatches,
		"locked", report.Locked,
		"duration", report.Duration,
	)

	return report, err
}

func (l *Loop[T]) runOnce(ctx context.Context, report *model.SyncReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if l.locker != nil {
		release, ok, err := l.locker.TryLock(ctx, l.target.Name())
		if err != nil {
			return helper.NewError("lock", err)
		}
		if !ok {
			l.logger.Info("Sync lock for target held by another syncer, skipping iteration")
			report.Locked = true
			return nil
		}
		defer func() {
			if err := release(); err != nil {
				l.logger.Error("Error releasing sync lock", "error", err)
			}
		}()
	}

	l.setState(StateDetecting)
	ids, err := l.target.Stale(ctx)
	if err != nil {
		return helper.NewError("detect stale", err)
	}
	report.Stale = len(ids)

	for _, batch := range pipeline.Batches(ids, l.config.BatchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.setState(StateEmbedding)
		rows, skipped, err := l.target.Embed(ctx, batch)
		report.Skipped += skipped
		if err != nil {
			if errors.Is(err, ErrStore) || ctx.Err() != nil {
				return helper.NewError("embed", err)
			}
			report.FailedBatches++
			l.logger.Warn("Embedding batch failed, ids stay stale", "size", len(batch), "first_id", batch[0], "error", err)
			continue
		}
		if len(rows) == 0 {
			continue
		}

		l.setState(StatePersisting)
		err = l.target.Persist(ctx, rows)
		if err != nil {
			return helper.NewError("persist", err)
		}
		report.Embedded += len(rows)
	}

	return nil
}

// Run runs an iteration, then one every interval until ctx is cancelled.
// A failed iteration is logged and retried on the next tick.
func (l *Loop[T]) Run(ctx context.Context) error {
	l.logger.Info("Starting sync loop", "interval", l.config.Interval, "batch_size", l.config.BatchSize)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping sync loop")
			return nil
		case <-timer.C:
		}

		_, err := l.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			l.logger.Error("Sync iteration failed", "error", err)
		}

		timer.Reset(l.config.Interval)
	}
}

var _ Runner = (*Loop[*model.CourseEmbedding])(nil)
