package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wallet-ledger/internal/api_gateway"
	"github.com/wallet-ledger/internal/api_gateway/service"
	"github.com/wallet-ledger/internal/balance"
	"github.com/wallet-ledger/internal/config"
	"github.com/wallet-ledger/internal/data/postgres"
	rediscache "github.com/wallet-ledger/internal/data/redis"
	"github.com/wallet-ledger/internal/logger"
	"github.com/wallet-ledger/internal/platform/messaging/producers"
	"github.com/wallet-ledger/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	redisClient, err := persistence.NewRedisClient(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producers, one per settlement queue
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

	// Initialize repositories and the balance engine
	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	ledgerRepo := postgres.NewLedgerRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	balanceCache := rediscache.NewBalanceCache(log, redisClient, cfg.Redis.CacheTTL)
	engine := balance.NewEngine(log, ledgerRepo, walletRepo, balanceCache)

	// Initialize services
	walletService := service.NewWalletService(log, walletRepo, engine)
	transactionService := service.NewTransactionService(
		log,
		postgresDB,
		walletRepo,
		ledgerRepo,
		outboxRepo,
		engine,
		depositProducer,
		transferProducer,
	)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, walletService, transactionService)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = depositProducer.Close(); err != nil {
		log.Error("Error closing deposit Kafka producer", "error", err)
	}
	if err = transferProducer.Close(); err != nil {
		log.Error("Error closing transfer Kafka producer", "error", err)
	}

	if err = redisClient.Close(); err != nil {
		log.Error("Error closing Redis client", "error", err)
	}

	postgresDB.Close()

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
