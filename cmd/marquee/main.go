package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/marquee-ott/marquee/internal/app"
	"github.com/marquee-ott/marquee/internal/auth"
	"github.com/marquee-ott/marquee/internal/catalog"
	"github.com/marquee-ott/marquee/internal/clock"
	"github.com/marquee-ott/marquee/internal/observability"
	"github.com/marquee-ott/marquee/internal/platform/cache"
	"github.com/marquee-ott/marquee/internal/platform/db"
	"github.com/marquee-ott/marquee/internal/presence"
	"github.com/marquee-ott/marquee/internal/shared"
	"github.com/marquee-ott/marquee/internal/storage"
	"github.com/marquee-ott/marquee/internal/users"
	"github.com/marquee-ott/marquee/internal/view"
	"github.com/marquee-ott/marquee/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "marquee_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	store, mediaHandler, err := app.NewStore(cfg)
	if err != nil {
		logger.Error("init media store", slog.Any("error", err))
		os.Exit(1)
	}
	uploader := storage.NewUploader(store, cfg.UploadMaxBytes)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	clk := clock.System{}

	presenceRepo := presence.NewRepository(dbpool)
	tracker := presence.NewTracker(presenceRepo, clk, cfg.PresenceThreshold, logger).WithObserver(metrics)
	presenceHandler := presence.NewHandler(logger, tracker, templates, csrfManager)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, clk)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)
	gate := auth.NewGate(authService, sessionManager, logger)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, jobClient, clk, logger)
	usersHandler := users.NewHandler(logger, usersService, uploader)

	auditLogger := shared.NewAuditLogger(dbpool)
	catalogRepo := catalog.NewRepository(dbpool)
	catalogCache := catalog.NewCache(redisClient, cfg.CatalogCacheTTL).WithLogger(logger)
	catalogService := catalog.NewService(catalogRepo, catalogCache, auditLogger, jobClient, clk, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService, uploader, usersService, templates, csrfManager, cfg.AppBaseURL)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Templates:       templates,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		Gate:            gate,
		Tracker:         tracker,
		AuthHandler:     authHandler,
		PresenceHandler: presenceHandler,
		CatalogHandler:  catalogHandler,
		UsersHandler:    usersHandler,
		JobHandler:      jobHandler,
		Media:           mediaHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
