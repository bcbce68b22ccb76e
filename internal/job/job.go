// Package job holds maintenance jobs that walk whole tables. A failing
// record is logged and counted; it never stops the rest of the run.
package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pollpick/internal/logger"
)

const (
	DefaultPageSize    = 200
	DefaultConcurrency = 8
)

// Job is one named maintenance task.
type Job interface {
	Name() string
	Execute(ctx context.Context) (Summary, error)
}

// Summary reports how a run went once every record was attempted.
type Summary struct {
	Job       string        `json:"job"`
	RunID     string        `json:"runId"`
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Err is non-nil when at least one record failed.
func (s Summary) Err() error {
	if s.Failed == 0 {
		return nil
	}
	return fmt.Errorf("job %s: %d of %d records failed", s.Job, s.Failed, s.Attempted)
}

// Options tune how records are fetched and processed.
type Options struct {
	PageSize    int
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// pageFunc returns up to limit records with id greater than afterID, ordered by id.
type pageFunc[T any] func(ctx context.Context, afterID int64, limit int) ([]T, error)

// walk pages through every record and runs process on each with bounded
// concurrency. Only a listing failure ends the walk early.
func walk[T any](
	ctx context.Context,
	name string,
	opts Options,
	list pageFunc[T],
	idOf func(T) int64,
	process func(ctx context.Context, rec T) error,
) (Summary, error) {
	opts = opts.withDefaults()
	log := logger.With("job").With("job", name)
	summary := Summary{Job: name, RunID: uuid.NewString()}
	start := time.Now()

	var succeeded, failed atomic.Int64
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return finish(summary, start, &succeeded, &failed), err
		}

		page, err := list(ctx, afterID, opts.PageSize)
		if err != nil {
			return finish(summary, start, &succeeded, &failed), fmt.Errorf("list %s page after %d: %w", name, afterID, err)
		}
		if len(page) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Concurrency)
		for _, rec := range page {
			g.Go(func() error {
				if err := process(gctx, rec); err != nil {
					failed.Add(1)
					log.Warn("record failed", "id", idOf(rec), "error", err)
					return nil
				}
				succeeded.Add(1)
				return nil
			})
		}
		g.Wait()

		afterID = idOf(page[len(page)-1])
		if len(page) < opts.PageSize {
			break
		}
	}

	summary = finish(summary, start, &succeeded, &failed)
	logSummary(log, summary)
	return summary, summary.Err()
}

func finish(s Summary, start time.Time, succeeded, failed *atomic.Int64) Summary {
	s.Succeeded = int(succeeded.Load())
	s.Failed = int(failed.Load())
	s.Attempted = s.Succeeded + s.Failed
	s.Duration = time.Since(start)
	return s
}

func logSummary(log *slog.Logger, s Summary) {
	level := slog.LevelInfo
	if s.Failed > 0 {
		level = slog.LevelWarn
	}
	log.Log(context.Background(), level, "job finished",
		"run_id", s.RunID,
		"attempted", s.Attempted,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"duration", s.Duration.String())
}
