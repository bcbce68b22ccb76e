// Command jobs runs the maintenance jobs once or on their cron schedules.
//
//	jobs --job search-backfill
//	jobs --cron
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"pollpick/internal/config"
	"pollpick/internal/database"
	"pollpick/internal/facebook"
	"pollpick/internal/job"
	"pollpick/internal/logger"
	"pollpick/internal/repository"
	"pollpick/internal/service"
)

const tokenRetention = 7 * 24 * time.Hour

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("jobs", pflag.ContinueOnError)
	var (
		name        string
		cronMode    bool
		pageSize    int
		concurrency int
	)
	flags.StringVar(&name, "job", "", "run a single job and exit")
	flags.BoolVar(&cronMode, "cron", false, "run every job on its configured schedule until interrupted")
	flags.IntVar(&pageSize, "page-size", job.DefaultPageSize, "rows fetched per page")
	flags.IntVar(&concurrency, "concurrency", job.DefaultConcurrency, "items processed in parallel")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if (name == "") == !cronMode {
		return errors.New("exactly one of --job or --cron is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	opts := job.Options{PageSize: pageSize, Concurrency: concurrency}
	users := repository.NewUserRepository(db)
	auth := service.NewAuthService(repository.NewRefreshTokenRepository(db), cfg)

	jobs := map[string]job.Job{
		job.NameSearchBackfill:   job.NewSearchBackfillJob(users, opts),
		job.NameFacebookProfiles: job.NewFacebookProfilesJob(users, facebook.NewClient(cfg.FacebookGraphURL), cfg.FacebookAppToken, opts),
		job.NamePhotoVisibility:  job.NewPhotoVisibilityJob(repository.NewPhotoRepository(db), opts),
		job.NameTokenCleanup:     job.NewTokenCleanupJob(auth, tokenRetention),
	}

	if !cronMode {
		j, ok := jobs[name]
		if !ok {
			return fmt.Errorf("unknown job %q (known: %s)", name, knownJobs(jobs))
		}
		summary, err := j.Execute(ctx)
		if err != nil {
			return err
		}
		slog.Info("job done", "job", summary.Job, "succeeded", summary.Succeeded, "duration", summary.Duration)
		return nil
	}

	scheduler := job.NewScheduler()
	schedules := map[string]string{
		job.NameSearchBackfill:   cfg.JobScheduleSearch,
		job.NameFacebookProfiles: cfg.JobScheduleFacebook,
		job.NamePhotoVisibility:  cfg.JobSchedulePhotos,
		job.NameTokenCleanup:     cfg.JobScheduleTokens,
	}
	for n, spec := range schedules {
		if err := scheduler.Register(spec, jobs[n]); err != nil {
			return err
		}
	}
	scheduler.Start()

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	scheduler.Stop(stopCtx)
	return nil
}

func knownJobs(jobs map[string]job.Job) string {
	names := make([]string, 0, len(jobs))
	for n := range jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
