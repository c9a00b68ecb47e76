package components

import (
	"log/slog"

	"github.com/wallet-ledger/internal/balance"
	"github.com/wallet-ledger/internal/config"
	"github.com/wallet-ledger/internal/domain/ledger"
	"github.com/wallet-ledger/internal/domain/outbox"
	"github.com/wallet-ledger/internal/platform/persistence"
	"github.com/wallet-ledger/internal/settlement_processor/service"
)

// CreateSettlementService assembles the settlement service with all its
// dependencies, wrapped in a worker pool
func CreateSettlementService(
	pgDB *persistence.PostgresDB,
	store ledger.Store,
	outboxRepo outbox.Repository,
	engine *balance.Engine,
	logger *slog.Logger,
	cfg *config.Config,
) service.SettlementService {
	verifier := NewFundsVerifier(logger, engine)
	finalizer := NewGroupFinalizer(logger, pgDB, store, outboxRepo)

	baseService := service.NewSettlementService(
		logger,
		store,
		verifier,
		finalizer,
		engine,
	)

	workerPoolService, err := service.NewWorkerPoolSettlementService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService
	}

	logger.Info("Created worker pool settlement service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService
}
