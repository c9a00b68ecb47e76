package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wallet-ledger/internal/balance"
	"github.com/wallet-ledger/internal/config"
	"github.com/wallet-ledger/internal/data/mongo"
	"github.com/wallet-ledger/internal/data/postgres"
	rediscache "github.com/wallet-ledger/internal/data/redis"
	"github.com/wallet-ledger/internal/logger"
	"github.com/wallet-ledger/internal/platform/messaging/consumers"
	"github.com/wallet-ledger/internal/platform/messaging/producers"
	"github.com/wallet-ledger/internal/platform/persistence"
	"github.com/wallet-ledger/internal/settlement_processor/archive_poller"
	"github.com/wallet-ledger/internal/settlement_processor/components"
	"github.com/wallet-ledger/internal/settlement_processor/consumer"
	"github.com/wallet-ledger/internal/settlement_processor/reconciler"
	"github.com/wallet-ledger/internal/settlement_processor/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("settlement_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Settlement Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize databases with app context
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

	redisClient, err := persistence.NewRedisClient(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	// Initialize repositories and the balance engine
	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	ledgerRepo := postgres.NewLedgerRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	archiveRepo := mongo.NewArchiveRepository(log, mongoDB.Database())
	balanceCache := rediscache.NewBalanceCache(log, redisClient, cfg.Redis.CacheTTL)
	engine := balance.NewEngine(log, ledgerRepo, walletRepo, balanceCache)

	// Initialize Kafka consumers, one per settlement topic
	depositConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka, cfg.Kafka.DepositTopic)
	transferConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka, cfg.Kafka.TransferTopic)

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	// Producers for the reconciliation sweep
	depositProducer, err := producers.NewSettlementProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.DepositTopic)
	if err != nil {
		log.Error("Failed to initialize deposit Kafka producer", "error", err)
		os.Exit(1)
	}
	transferProducer, err := producers.NewSettlementProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.TransferTopic)
	if err != nil {
		log.Error("Failed to initialize transfer Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize settlement service with separated concerns
	settlementService := components.CreateSettlementService(
		postgresDB,
		ledgerRepo,
		outboxRepo,
		engine,
		log,
		cfg,
	)

	// Initialize settlement event handler, shared by both consumers
	settlementEventHandler := consumer.NewSettlementEventHandler(
		log,
		settlementService,
		dlqProducer,
	)

	// Initialize archive poller
	archivePublisher := archive_poller.NewArchivePublisher(
		outboxRepo,
		archiveRepo,
		log,
	)
	poller := archive_poller.NewPoller(
		&cfg.Archive,
		outboxRepo,
		archivePublisher,
		log,
	)

	// Initialize reconciler for stale PROCESSING groups
	sweep := reconciler.NewReconciler(
		&cfg.Reconciler,
		ledgerRepo,
		depositProducer,
		transferProducer,
		log,
	)

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumers
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting deposit consumer",
			"topic", cfg.Kafka.DepositTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := depositConsumer.Subscribe(appCtx, settlementEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("deposit consumer error: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting transfer consumer",
			"topic", cfg.Kafka.TransferTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := transferConsumer.Subscribe(appCtx, settlementEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("transfer consumer error: %w", err)
		}
	}()

	// Start archive poller
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	// Start reconciler
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweep.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Shutdown the worker pool if it's a WorkerPoolSettlementService
	if wpService, ok := settlementService.(*service.WorkerPoolSettlementService); ok {
		wpService.Shutdown()
	}

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

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

	// Close Kafka clients
	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}
	if err = depositProducer.Close(); err != nil {
		log.Error("Error closing deposit Kafka producer", "error", err)
	}
	if err = transferProducer.Close(); err != nil {
		log.Error("Error closing transfer Kafka producer", "error", err)
	}
	if err = depositConsumer.Close(); err != nil {
		log.Error("Error closing deposit Kafka consumer", "error", err)
	}
	if err = transferConsumer.Close(); err != nil {
		log.Error("Error closing transfer Kafka consumer", "error", err)
	}

	if err = redisClient.Close(); err != nil {
		log.Error("Error closing Redis client", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Settlement Processor shutdown with errors", "error", serviceErr)
	} else {
		log.Info("Settlement Processor shutdown completed successfully")
	}
}
