package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lnwallet-ledger/internal/api_gateway"
	"github.com/lnwallet-ledger/internal/config"
	"github.com/lnwallet-ledger/internal/data/mongo"
	"github.com/lnwallet-ledger/internal/data/postgres"
	"github.com/lnwallet-ledger/internal/data/redis"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/ledger_service"
	"github.com/lnwallet-ledger/internal/logger"
	"github.com/lnwallet-ledger/internal/payments"
	"github.com/lnwallet-ledger/internal/platform/cache"
	"github.com/lnwallet-ledger/internal/platform/lnd"
	"github.com/lnwallet-ledger/internal/platform/metrics"
	"github.com/lnwallet-ledger/internal/platform/persistence"
	"github.com/lnwallet-ledger/internal/platform/scheduler"
	"github.com/lnwallet-ledger/internal/price_oracle"
	"github.com/lnwallet-ledger/internal/wallets"
	"github.com/lnwallet-ledger/internal/workers"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("wallet_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)
	m := metrics.New()

	log.Info("Starting Wallet API",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	if err := mongo.EnsureIndexes(appCtx, mongoDB); err != nil {
		log.Error("Failed to ensure MongoDB indexes", "error", err)
		os.Exit(1)
	}

	redisClient, err := cache.NewRedisClient(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	node, err := lnd.Dial(appCtx, log, &cfg.Lightning)
	if err != nil {
		log.Error("Failed to connect to LND", "error", err)
		os.Exit(1)
	}

	// Repositories
	walletRepo := mongo.NewWalletRepository(log, mongoDB.Database())
	invoiceRepo := mongo.NewInvoiceRepository(log, mongoDB.Database())
	pendingRepo := mongo.NewPendingOnChainRepository(log, mongoDB.Database())
	lnPaymentRepo := postgres.NewLnPaymentRepository(log, postgresDB)
	paymentLock := redis.NewPaymentLock(log, redisClient, cfg.Redis.PaymentLockTTL)

	ledgerSvc := ledger_service.NewService(log, postgresDB,
		postgres.NewLedgerAccountRepository(log, postgresDB),
		postgres.NewLedgerEntryRepository(log, postgresDB),
		postgres.NewOutboxRepository(log, postgresDB),
		cfg.Wallet.BankOwnerWalletID,
		m,
	)

	// Prices: start from the snapshot shared in redis, refresh on schedule.
	oracle := price_oracle.NewOracle(cfg.Price.MaxAge)
	refresher := price_oracle.NewRefresher(log, oracle,
		price_oracle.NewSpotPriceClient(log, cfg.Price.SourceURL, cfg.Price.RequestTimeout),
		redis.NewPriceCache(log, redisClient, cfg.Redis.PriceKey),
	)

	sched := scheduler.New(appCtx, log, m)
	if err := refresher.Warm(appCtx); err != nil {
		log.Warn("No cached price snapshot, fetching one now", "error", err)
		_ = sched.RunNow(refresher)
	}
	if err := sched.AddJob(cfg.Price.RefreshSchedule, refresher); err != nil {
		log.Error("Failed to schedule price refresh", "error", err)
		os.Exit(1)
	}

	pool, err := workers.NewPool(log, &cfg.WorkerPool)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	manager := wallets.NewManager(log, node, walletRepo, invoiceRepo, pendingRepo, ledgerSvc, oracle,
		pool, &cfg.Wallet, cfg.WorkerPool.Concurrency)

	orchestrator := payments.NewOrchestrator(log, node, walletRepo, invoiceRepo, lnPaymentRepo, ledgerSvc, paymentLock,
		lightning.NewFeeCalculator(
			shared.Satoshis(cfg.Fees.BaseFeeFloor),
			cfg.Fees.FeeRateBasisPoints,
			shared.Satoshis(cfg.Fees.MaxFeeCeiling),
		),
		payments.NewChannelOpener(log, node),
		cfg.Wallet.FunderWalletID,
		m,
	)

	server := api_gateway.NewServer(log, cfg, manager, orchestrator, ledgerSvc, m)
	sched.Start()

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case serverErr = <-errChan:
		log.Error("Server error occurred", "error", serverErr)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Drain requests first: in-flight payments must be able to book their outcome.
	var shutdownErr error
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
		shutdownErr = err
	}

	cancelAppCtx()
	sched.Stop()
	pool.Shutdown()

	if err := node.Close(); err != nil {
		log.Error("Error closing LND connection", "error", err)
		shutdownErr = err
	}
	if err := redisClient.Close(); err != nil {
		log.Error("Error closing Redis client", "error", err)
		shutdownErr = err
	}
	postgresDB.Close()
	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		shutdownErr = err
	}

	if serverErr != nil || shutdownErr != nil {
		log.Error("Wallet API shutdown completed with errors", "server_error", serverErr, "shutdown_error", shutdownErr)
		os.Exit(1)
	}
	log.Info("Wallet API shutdown completed successfully")
}
