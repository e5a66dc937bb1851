package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sheikh-saqib/banking-ledger/internal/accounts"
	"github.com/sheikh-saqib/banking-ledger/internal/config"
	"github.com/sheikh-saqib/banking-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/banking-ledger/internal/history"
	"github.com/sheikh-saqib/banking-ledger/internal/httpapi"
	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/ledger"
	"github.com/sheikh-saqib/banking-ledger/internal/logger"
	"github.com/sheikh-saqib/banking-ledger/internal/storage/bolt"
	"github.com/sheikh-saqib/banking-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/banking-ledger/internal/storage/postgres"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, appLogger *zap.Logger) error {
	store, closeStore, err := openStore(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer closeStore()

	accountService := accounts.NewService(store,
		accounts.WithOpeningBalance(cfg.OpeningBalance),
		accounts.WithLogger(appLogger.Named("accounts")),
	)

	ledgerOpts := []ledger.Option{
		ledger.WithLockTimeout(cfg.LockTimeout),
		ledger.WithLogger(appLogger.Named("ledger")),
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers)
		defer func() {
			if err := publisher.Close(); err != nil {
				appLogger.Warn("close kafka publisher", zap.Error(err))
			}
		}()
		ledgerOpts = append(ledgerOpts, ledger.WithPublisher(publisher))
		appLogger.Info("publishing transfer events", zap.Strings("brokers", cfg.KafkaBrokers))
	}
	ledgerService := ledger.NewLedger(store, accountService, ledgerOpts...)

	historyService := history.NewService(store, accountService, history.WithLogger(appLogger.Named("history")))

	router := httpapi.NewRouter(httpapi.Services{
		Accounts:      accountService,
		Authenticator: accountService,
		Transfers:     ledgerService,
		History:       historyService,
		Resolver:      accountService,
	}, appLogger.Named("http"))

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLogger.Info("starting server",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("store", cfg.StoreDriver),
			zap.String("environment", cfg.Environment),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, appLogger *zap.Logger) (interfaces.LedgerStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		if err := postgres.RunMigrations(ctx, db, appLogger.Named("migrations")); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		return postgres.NewPostgresLedgerStore(db), closer(db, appLogger), nil
	case config.StoreBolt:
		store, err := bolt.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open bolt store: %w", err)
		}
		return store, closer(store, appLogger), nil
	default:
		return memory.NewMemoryLedgerStore(), func() {}, nil
	}
}

func closer(c io.Closer, appLogger *zap.Logger) func() {
	return func() {
		if err := c.Close(); err != nil {
			appLogger.Warn("close store", zap.Error(err))
		}
	}
}
