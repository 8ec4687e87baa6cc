package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/siherrmann/coursesearch/helper"
	"github.com/siherrmann/coursesearch/model"
)

// ErrUpserterRequired is returned by NewIngester without a course writer
var ErrUpserterRequired = errors.New("course upserter is required")

// Upserter writes courses, see coursesearch.Searcher.UpsertCourse
type Upserter interface {
	UpsertCourse(ctx context.Context, course *model.Course) (bool, error)
}

// Report summarizes one directory import
type Report struct {
	Files     int
	Changed   int
	Unchanged int
	// Errors holds one error per file that could not be read or stored.
	Errors []error
}

// Ingester loads course documents from disk into the store.
// Files are parsed and stored concurrently on a worker pool.
type Ingester struct {
	upserter Upserter
	pool     *ants.Pool
	logger   *slog.Logger
}

// Option configures an Ingester
type Option func(*Ingester) error

// WithPoolSize sets the number of files processed concurrently
func WithPoolSize(size int) Option {
	return func(i *Ingester) error {
		if size < 1 {
			size = 1
		}
		if i.pool != nil {
			i.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		i.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingester) error {
		if logger == nil {
			logger = slog.Default()
		}
		i.logger = logger
		return nil
	}
}

// NewIngester creates an ingester with a pool of runtime.NumCPU() workers unless configured otherwise
func NewIngester(upserter Upserter, opts ...Option) (*Ingester, error) {
	if upserter == nil {
		return nil, ErrUpserterRequired
	}

	pool, err := ants.NewPool(max(runtime.NumCPU(), 1))
	if err != nil {
		return nil, helper.NewError("create pool", err)
	}

	i := &Ingester{
		upserter: upserter,
		pool:     pool,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(i); err != nil {
			i.Release()
			return nil, helper.NewError("apply option", err)
		}
	}

	return i, nil
}

// Release stops the worker pool. The ingester must not be used afterwards.
func (i *Ingester) Release() {
	if i.pool != nil {
		i.pool.Release()
	}
}

// IngestDir upserts every *.json course document in dir.
// A broken file does not stop the import, its error ends up in the report.
func (i *Ingester) IngestDir(ctx context.Context, dir string) (*Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, helper.NewError("read directory", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	return i.IngestFiles(ctx, paths)
}

// IngestFiles upserts the given course documents
func (i *Ingester) IngestFiles(ctx context.Context, paths []string) (*Report, error) {
	report := &Report{Files: len(paths)}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return report, err
		}

		wg.Add(1)
		err := i.pool.Submit(func() {
			defer wg.Done()

			changed, err := i.ingestFile(ctx, path)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Errors = append(report.Errors, err)
			case changed:
				report.Changed++
			default:
				report.Unchanged++
			}
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return report, helper.NewError("submit", err)
		}
	}
	wg.Wait()

	i.logger.Info("Ingested courses",
		"files", report.Files,
		"changed", report.Changed,
		"unchanged", report.Unchanged,
		"failed", len(report.Errors),
	)

	return report, nil
}

func (i *Ingester) ingestFile(ctx context.Context, path string) (bool, error) {
	course, err := model.NewCourseFromFile(path)
	if err != nil {
		i.logger.Warn("Skipping course document", "path", path, "error", err)
		return false, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	changed, err := i.upserter.UpsertCourse(ctx, course)
	if err != nil {
		return false, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return changed, nil
}
