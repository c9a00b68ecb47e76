// Package balance derives wallet balances from the ledger. There is no stored
// balance anywhere in the system; every figure produced here is a sum over
// SUCCESS entries at a point in time.
package balance

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wallet-ledger/internal/domain/ledger"
	"github.com/wallet-ledger/internal/domain/wallet"
)

// Cache stores current balances. Implemented by the Redis balance cache;
// the engine works without one (nil cache disables caching).
type Cache interface {
	Get(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, bool, error)
	Set(ctx context.Context, walletID uuid.UUID, balance decimal.Decimal) error
	Invalidate(ctx context.Context, walletID uuid.UUID) error
}

// Engine computes current and historical balances from the ledger store
type Engine struct {
	store    ledger.Store
	registry wallet.Registry
	cache    Cache
	logger   *slog.Logger
}

// NewEngine creates a balance engine. cache may be nil.
func NewEngine(logger *slog.Logger, store ledger.Store, registry wallet.Registry, cache Cache) *Engine {
	return &Engine{
		store:    store,
		registry: registry,
		cache:    cache,
		logger:   logger,
	}
}

// HistoricalAt computes the wallet's balance as of the given instant:
// deposits plus received transfers, minus withdrawals and sent transfers,
// over SUCCESS entries created at or before asOf. Never served from cache.
func (e *Engine) HistoricalAt(ctx context.Context, walletID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	if _, err := e.registry.GetByID(ctx, walletID); err != nil {
		return decimal.Zero, err
	}

	deposits, err := e.store.SumByOperation(ctx, walletID, ledger.OperationDeposit, asOf)
	if err != nil {
		return decimal.Zero, err
	}

	received, err := e.store.SumReceivedTransfers(ctx, walletID, asOf)
	if err != nil {
		return decimal.Zero, err
	}

	withdrawals, err := e.store.SumByOperation(ctx, walletID, ledger.OperationWithdraw, asOf)
	if err != nil {
		return decimal.Zero, err
	}

	sent, err := e.store.SumByOperation(ctx, walletID, ledger.OperationTransfer, asOf)
	if err != nil {
		return decimal.Zero, err
	}

	return deposits.Add(received).Sub(withdrawals).Sub(sent), nil
}

// Current computes the wallet's present balance, reading through the cache
// when one is configured. Cache failures degrade to a ledger read, never to
// an error.
func (e *Engine) Current(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	if e.cache != nil {
		cached, hit, err := e.cache.Get(ctx, walletID)
		if err != nil {
			e.logger.Warn("Balance cache read failed, falling back to ledger", "wallet_id", walletID.String(), "error", err)
		} else if hit {
			return cached, nil
		}
	}

	current, err := e.HistoricalAt(ctx, walletID, time.Now().UTC())
	if err != nil {
		return decimal.Zero, err
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, walletID, current); err != nil {
			e.logger.Warn("Failed to cache balance", "wallet_id", walletID.String(), "error", err)
		}
	}

	return current, nil
}

// InvalidateCache drops the cached balance for each wallet. Called after a
// settlement makes entries terminal.
func (e *Engine) InvalidateCache(ctx context.Context, walletIDs ...uuid.UUID) {
	if e.cache == nil {
		return
	}
	for _, id := range walletIDs {
		if err := e.cache.Invalidate(ctx, id); err != nil {
			e.logger.Warn("Failed to invalidate cached balance", "wallet_id", id.String(), "error", err)
		}
	}
}
