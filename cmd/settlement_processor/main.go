package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lnwallet-ledger/internal/config"
	"github.com/lnwallet-ledger/internal/data/mongo"
	"github.com/lnwallet-ledger/internal/data/postgres"
	"github.com/lnwallet-ledger/internal/data/redis"
	"github.com/lnwallet-ledger/internal/ledger_service"
	"github.com/lnwallet-ledger/internal/logger"
	"github.com/lnwallet-ledger/internal/payments"
	"github.com/lnwallet-ledger/internal/platform/cache"
	"github.com/lnwallet-ledger/internal/platform/lnd"
	"github.com/lnwallet-ledger/internal/platform/messaging/consumers"
	"github.com/lnwallet-ledger/internal/platform/messaging/producers"
	"github.com/lnwallet-ledger/internal/platform/metrics"
	"github.com/lnwallet-ledger/internal/platform/persistence"
	"github.com/lnwallet-ledger/internal/platform/scheduler"
	"github.com/lnwallet-ledger/internal/price_oracle"
	"github.com/lnwallet-ledger/internal/settlement_processor/consumer"
	"github.com/lnwallet-ledger/internal/settlement_processor/outbox_poller"
	"github.com/lnwallet-ledger/internal/wallets"
	"github.com/lnwallet-ledger/internal/workers"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("settlement_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)
	m := metrics.New()

	log.Info("Starting Settlement Processor",
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
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)

	ledgerSvc := ledger_service.NewService(log, postgresDB,
		postgres.NewLedgerAccountRepository(log, postgresDB),
		postgres.NewLedgerEntryRepository(log, postgresDB),
		outboxRepo,
		cfg.Wallet.BankOwnerWalletID,
		m,
	)

	// Kafka producers
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	walletEventsProducer, err := producers.NewJSONProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.WalletEventsTopic)
	if err != nil {
		log.Error("Failed to initialize wallet events producer", "error", err)
		os.Exit(1)
	}
	notificationsProducer, err := producers.NewJSONProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.NotificationsTopic)
	if err != nil {
		log.Error("Failed to initialize notifications producer", "error", err)
		os.Exit(1)
	}

	// Prices
	oracle := price_oracle.NewOracle(cfg.Price.MaxAge)
	refresher := price_oracle.NewRefresher(log, oracle,
		price_oracle.NewSpotPriceClient(log, cfg.Price.SourceURL, cfg.Price.RequestTimeout),
		redis.NewPriceCache(log, redisClient, cfg.Redis.PriceKey),
	)

	pool, err := workers.NewPool(log, &cfg.WorkerPool)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	manager := wallets.NewManager(log, node, walletRepo, invoiceRepo, pendingRepo, ledgerSvc, oracle,
		pool, &cfg.Wallet, cfg.WorkerPool.Concurrency)

	notifier := workers.NewBalanceNotifier(log, pool, walletRepo,
		workers.NewActiveUserScanner(log, ledgerSvc, &cfg.Wallet),
		manager,
		notificationsProducer,
		cfg.WorkerPool.Concurrency,
	)

	// A dispatch the node has not seen after its full timeout never left.
	staleAfter := cfg.Lightning.PaymentTimeout + cfg.Lightning.RequestTimeout
	reconciler := payments.NewReconciler(log, node, lnPaymentRepo, ledgerSvc, pool,
		cfg.Reconciler.BatchSize, cfg.WorkerPool.Concurrency, staleAfter, m)

	// Scheduled jobs
	sched := scheduler.New(appCtx, log, m)
	if err := refresher.Warm(appCtx); err != nil {
		log.Warn("No cached price snapshot, fetching one now", "error", err)
		_ = sched.RunNow(refresher)
	}
	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.Price.RefreshSchedule, refresher},
		{cfg.Jobs.DailyBalanceSchedule, notifier},
		{cfg.Jobs.InvoiceSweepSchedule, wallets.NewInvoiceSweep(manager)},
		{"@every " + cfg.Reconciler.Interval.String(), reconciler},
	}
	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			log.Error("Failed to schedule job", "job", j.job.Name(), "schedule", j.schedule, "error", err)
			os.Exit(1)
		}
	}

	// Consumers
	invoiceConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka, cfg.Kafka.InvoiceTopic, m)
	onChainConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka, cfg.Kafka.OnChainTopic, m)
	invoiceHandler := consumer.NewInvoiceSettledHandler(log, manager, dlqProducer)
	onChainHandler := consumer.NewOnChainHandler(log, manager, dlqProducer)

	// Outbox
	poller := outbox_poller.NewPoller(&cfg.Outbox, outboxRepo,
		outbox_poller.NewWalletEventPublisher(outboxRepo, walletEventsProducer, log),
		log,
	)

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	if err := invoiceConsumer.Subscribe(appCtx, invoiceHandler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("invoice consumer error: %w", err)
	}
	if err := onChainConsumer.Subscribe(appCtx, onChainHandler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("on-chain consumer error: %w", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case serviceErr = <-errChan:
		log.Error("Service error occurred", "error", serviceErr)
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Jobs stop first so nothing new is submitted to the pool.
	sched.Stop()
	log.Info("Shutting down worker pool", "running_workers", pool.Running())
	pool.Shutdown()

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()
	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	var shutdownErr error
	closers := []struct {
		name  string
		close func() error
	}{
		{"invoice consumer", invoiceConsumer.Close},
		{"on-chain consumer", onChainConsumer.Close},
		{"wallet events producer", walletEventsProducer.Close},
		{"notifications producer", notificationsProducer.Close},
		{"DLQ producer", dlqProducer.Close},
		{"LND connection", node.Close},
		{"Redis client", redisClient.Close},
	}
	for _, c := range closers {
		if err := c.close(); err != nil {
			log.Error("Error closing "+c.name, "error", err)
			shutdownErr = err
		}
	}
	postgresDB.Close()
	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		shutdownErr = err
	}

	if serviceErr != nil || shutdownErr != nil {
		log.Error("Settlement Processor shutdown completed with errors", "service_error", serviceErr, "shutdown_error", shutdownErr)
		os.Exit(1)
	}
	log.Info("Settlement Processor shutdown completed successfully")
}
