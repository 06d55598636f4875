package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/accounts"
	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/autojournal"
	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/fiscal"
	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/journals"
	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/reports"
	"github.com/ak-rocksdev/hyperbiz-core/internal/aging"
	"github.com/ak-rocksdev/hyperbiz-core/internal/app"
	"github.com/ak-rocksdev/hyperbiz-core/internal/banking"
	"github.com/ak-rocksdev/hyperbiz-core/internal/observability"
	"github.com/ak-rocksdev/hyperbiz-core/internal/platform/cache"
	"github.com/ak-rocksdev/hyperbiz-core/internal/platform/db"
	"github.com/ak-rocksdev/hyperbiz-core/internal/shared"
	"github.com/ak-rocksdev/hyperbiz-core/jobs"
)

// adjustmentJournal bridges bank reconciliation adjustments to the
// auto-journal service.
type adjustmentJournal struct {
	service *autojournal.Service
}

func (a adjustmentJournal) PostBankAdjustment(ctx context.Context, id uuid.UUID, date time.Time, amount decimal.Decimal, currency string, glAccountID int64, description string, actorID int64) (int64, error) {
	entry, err := a.service.PostBankAdjustment(ctx, autojournal.BankAdjustmentSource{
		ID:              id,
		Date:            date,
		Amount:          amount,
		Currency:        currency,
		BankGLAccountID: glAccountID,
		Description:     description,
		CreatedBy:       actorID,
	})
	if err != nil {
		return 0, err
	}
	return entry.ID, nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	auditLogger := shared.NewAuditLogger(dbpool)
	locker := shared.NewLocker(redisClient, cfg.ReconLockTTL)

	fiscalService := fiscal.NewService(fiscal.NewRepository(dbpool))
	accountsService := accounts.NewService(accounts.NewRepository(dbpool))

	journalService := journals.NewService(journals.NewRepository(dbpool), fiscalService, auditLogger).WithAccounts(accountsService)
	journalHandler := journals.NewHandler(logger, journalService)

	autoService := autojournal.NewService(journalService, autojournal.NewMappingRepository(dbpool))

	reportService := reports.NewService(reports.NewRepository(dbpool), fiscalService)
	reportHandler := reports.NewHandler(logger, reportService)

	agingService := aging.NewService(logger, aging.NewRepository(dbpool))
	agingHandler := aging.NewHandler(logger, agingService)

	bankingService := banking.NewService(logger, banking.NewRepository(dbpool), locker, auditLogger, adjustmentJournal{service: autoService})
	bankingHandler := banking.NewHandler(logger, bankingService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:   logger,
		Config:   cfg,
		Metrics:  metrics,
		Journals: journalHandler,
		Reports:  reportHandler,
		Aging:    agingHandler,
		Banking:  bankingHandler,
		Jobs:     jobHandler,
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
