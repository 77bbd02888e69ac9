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

	"github.com/amicale/amicale/internal/adherents"
	"github.com/amicale/amicale/internal/app"
	"github.com/amicale/amicale/internal/auth"
	"github.com/amicale/amicale/internal/elections"
	"github.com/amicale/amicale/internal/events"
	"github.com/amicale/amicale/internal/expenses"
	"github.com/amicale/amicale/internal/ledger"
	"github.com/amicale/amicale/internal/payments"
	"github.com/amicale/amicale/internal/platform/cache"
	"github.com/amicale/amicale/internal/platform/db"
	"github.com/amicale/amicale/internal/rbac"
	"github.com/amicale/amicale/internal/relance"
	"github.com/amicale/amicale/internal/shared"
	"github.com/amicale/amicale/internal/synthesis"
	"github.com/amicale/amicale/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "amicale_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	rbacService := rbac.NewService(pool)
	rbacMiddleware := rbac.Middleware{Source: rbacService, Logger: logger}

	reportCache := synthesis.NewCache(redisClient, cfg.SyntheseCacheTTL)

	adherentsRepo := adherents.NewRepository(pool)
	adherentsService := adherents.NewService(adherentsRepo)
	adherentsHandler := adherents.NewHandler(logger, adherentsService, rbacMiddleware)

	eventsRepo := events.NewRepository(pool)
	eventsHandler := events.NewHandler(logger, eventsRepo, rbacMiddleware)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, logger, reportCache)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, rbacMiddleware)

	paymentsRepo := payments.NewRepository(pool)
	paymentsService := payments.NewService(paymentsRepo, ledgerService, logger)
	paymentsHandler := payments.NewHandler(logger, paymentsService, rbacMiddleware)

	expensesRepo := expenses.NewRepository(pool)
	expensesService := expenses.NewService(expensesRepo, logger, reportCache)
	expensesHandler := expenses.NewHandler(logger, expensesService, rbacMiddleware)

	synthesisRepo := synthesis.NewRepository(pool)
	synthesisService := synthesis.NewService(synthesisRepo, reportCache, logger, synthesis.CreancesPolicy(cfg.CreancesPolicy))
	synthesisHandler := synthesis.NewHandler(logger, synthesisService, rbacMiddleware)

	electionsRepo := elections.NewRepository(pool)
	electionsService := elections.NewService(electionsRepo)
	electionsHandler := elections.NewHandler(logger, electionsService, rbacMiddleware)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	relanceRepo := relance.NewRepository(pool)
	relanceService := relance.NewService(relanceRepo, jobsClient, logger)
	relanceHandler := relance.NewHandler(logger, relanceService, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		AdherentsHandler: adherentsHandler,
		EventsHandler:    eventsHandler,
		PaymentsHandler:  paymentsHandler,
		ExpensesHandler:  expensesHandler,
		LedgerHandler:    ledgerHandler,
		SynthesisHandler: synthesisHandler,
		ElectionsHandler: electionsHandler,
		RelanceHandler:   relanceHandler,
		JobHandler:       jobHandler,
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
