package job

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"pollpick/internal/logger"
)

// Scheduler runs registered jobs on cron specs. Specs take a leading
// seconds field ("0 0 3 * * *") or a descriptor such as "@daily".
type Scheduler struct {
	engine *cron.Cron
	log    *slog.Logger
}

func NewScheduler() *Scheduler {
	log := logger.With("scheduler")
	return &Scheduler{
		engine: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		log: log,
	}
}

// Register schedules j. An empty spec leaves the job unscheduled.
func (s *Scheduler) Register(spec string, j Job) error {
	if spec == "" {
		s.log.Info("job not scheduled", "job", j.Name())
		return nil
	}
	if _, err := s.engine.AddJob(spec, cronJob{job: j, log: s.log}); err != nil {
		return fmt.Errorf("schedule %s with %q: %w", j.Name(), spec, err)
	}
	s.log.Info("job scheduled", "job", j.Name(), "spec", spec)
	return nil
}

func (s *Scheduler) Start() {
	s.log.Info("scheduler started", "entries", len(s.engine.Entries()))
	s.engine.Start()
}

// Stop stops scheduling and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.engine.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out with jobs still running")
	}
	s.log.Info("scheduler stopped")
}

// cronJob adapts a Job to cron.Job.
type cronJob struct {
	job Job
	log *slog.Logger
}

func (c cronJob) Run() {
	if _, err := c.job.Execute(context.Background()); err != nil {
		c.log.Error("scheduled job failed", "job", c.job.Name(), "error", err)
	}
}
