package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-crm/meridian-crm/internal/app"
	"github.com/meridian-crm/meridian-crm/internal/approvals"
	"github.com/meridian-crm/meridian-crm/internal/auth"
	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/crm"
	"github.com/meridian-crm/meridian-crm/internal/modules"
	"github.com/meridian-crm/meridian-crm/internal/notifications"
	"github.com/meridian-crm/meridian-crm/internal/observability"
	"github.com/meridian-crm/meridian-crm/internal/shared"
	"github.com/meridian-crm/meridian-crm/internal/users"
	"github.com/meridian-crm/meridian-crm/internal/workflow"
	"github.com/meridian-crm/meridian-crm/jobs"
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

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "meridian_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	bestEffort := shared.NewBestEffort(logger, cfg.SideEffectTimeout)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	moduleRepo := modules.NewRepository(dbpool)
	moduleGate := modules.NewGate(moduleRepo)
	modulesHandler := modules.NewHandler(logger, moduleGate)

	authzRepo := authz.NewRepository(dbpool)
	resolver := authz.NewResolver(authzRepo, moduleGate)
	authzMiddleware := authz.Middleware{Resolver: resolver, Logger: logger}

	workflowHandler := workflow.NewHandler(logger)

	crmRepo := crm.NewRepository(dbpool)
	crmService := crm.NewService(crmRepo)
	crmHandler := crm.NewHandler(logger, crmService, authzMiddleware)

	notificationRepo := notifications.NewRepository(dbpool)
	notificationService := notifications.NewService(notificationRepo)
	notificationsHandler := notifications.NewHandler(logger, notificationService)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
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

	approvalRepo := approvals.NewRepository(dbpool)
	approvalService := approvals.NewService(logger, approvalRepo, crmRepo, resolver,
		auditLogger, notificationService, jobClient, bestEffort, metrics)
	approvalsHandler := approvals.NewHandler(logger, approvalService, authzMiddleware)

	userRepo := users.NewRepository(dbpool)
	userService := users.NewService(userRepo)
	usersHandler := users.NewHandler(logger, userService, authzMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		SessionManager:       sessionManager,
		CSRFManager:          csrfManager,
		AuthHandler:          authHandler,
		ModulesHandler:       modulesHandler,
		WorkflowHandler:      workflowHandler,
		CRMHandler:           crmHandler,
		ApprovalsHandler:     approvalsHandler,
		NotificationsHandler: notificationsHandler,
		UsersHandler:         usersHandler,
		JobHandler:           jobHandler,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
