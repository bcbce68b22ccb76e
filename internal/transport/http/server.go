package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"pollpick/internal/config"
	"pollpick/internal/database"
	"pollpick/internal/facebook"
	"pollpick/internal/handler"
	"pollpick/internal/logger"
	"pollpick/internal/mail"
	"pollpick/internal/model"
	"pollpick/internal/push"
	"pollpick/internal/queue"
	"pollpick/internal/redis"
	"pollpick/internal/repository"
	"pollpick/internal/service"
	"pollpick/internal/storage"
	"pollpick/internal/worker"
)

const shutdownTimeout = 15 * time.Second

// Run wires every component and serves HTTP until SIGINT or SIGTERM.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	pollRepo := repository.NewPollRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	reportRepo := repository.NewReportRepository()
	blockRepo := repository.NewBlockRepository(db)
	photoRepo := repository.NewPhotoRepository(db)
	installationRepo := repository.NewInstallationRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	txRunner := database.NewTxRunner(db)

	dispatcher, err := newDispatcher(ctx, cfg, installationRepo)
	if err != nil {
		return err
	}

	// With Redis, pushes are queued and delivered by workers; without it, inline.
	var notifier service.Notifier = dispatcher
	var workers *worker.Manager
	if cfg.RedisURL != "" {
		rdb, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()

		notifier = queue.NewPublisher(rdb.Client)
		workers = worker.NewManager(queue.NewConsumer(rdb.Client), worker.NewHandler(dispatcher), worker.ManagerConfig{
			WorkerCount: cfg.PushWorkerCount,
		})
		if err := workers.Start(ctx); err != nil {
			return fmt.Errorf("failed to start push workers: %w", err)
		}
		defer workers.Stop()
		slog.Info("push delivery via redis stream", "stream", queue.StreamPush, "workers", cfg.PushWorkerCount)
	} else {
		slog.Info("push delivery inline, REDIS_URL not set")
	}

	var mailer mail.Mailer = mail.NewLogMailer()
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
	}

	var objectStore service.ObjectStore
	if cfg.StorageEnabled() {
		r2, err := storage.NewR2Store(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to init photo storage: %w", err)
		}
		objectStore = r2
	} else {
		slog.Warn("R2 not configured, photo uploads disabled")
	}

	userService := service.NewUserService(userRepo, blockRepo, installationRepo, facebook.NewClient(cfg.FacebookGraphURL), mailer, cfg.PublicBaseURL)
	authService := service.NewAuthService(refreshTokenRepo, cfg)
	followService := service.NewFollowService(followRepo, userRepo, txRunner, notifier)
	pollService := service.NewPollService(pollRepo, voteRepo, reportRepo, photoRepo, followRepo, userRepo, txRunner, notifier)
	photoService := service.NewPhotoService(objectStore, photoRepo)
	installationService := service.NewInstallationService(installationRepo)

	router := NewRouter(RouterConfig{
		AuthHandler:         handler.NewAuthHandler(userService, authService),
		UserHandler:         handler.NewUserHandler(userService),
		FunctionsHandler:    handler.NewFunctionsHandler(followService, pollService, userService),
		InstallationHandler: handler.NewInstallationHandler(installationService),
		PhotoHandler:        handler.NewPhotoHandler(photoService),
		JWTSecret:           cfg.JWTSecret,
	})

	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newDispatcher builds the push dispatcher with every configured sender.
func newDispatcher(ctx context.Context, cfg *config.Config, store push.InstallationStore) (*push.Dispatcher, error) {
	senders := map[string]push.Sender{}
	if cfg.PushEnabled() {
		fcm, err := push.NewFCMSender(ctx, cfg.FCMProjectID, cfg.FCMClientEmail, cfg.FCMPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to init fcm: %w", err)
		}
		senders[model.PushTypeFCM] = fcm
	} else {
		slog.Warn("FCM not configured, fcm installations will not receive pushes")
	}
	if cfg.ExpoPushURL != "" {
		senders[model.PushTypeExpo] = push.NewExpoSender(cfg.ExpoPushURL)
	}
	return push.NewDispatcher(store, senders), nil
}
