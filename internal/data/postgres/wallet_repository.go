// Package postgres provides PostgreSQL implementations of the domain
// repositories. Wallets and the ledger share one database so that saga legs
// and their archive outbox rows can be written in a single transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wallet-ledger/internal/domain/wallet"
	"github.com/wallet-ledger/internal/platform/persistence"
)

// WalletRepository implements the wallet.Registry interface for PostgreSQL
type WalletRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewWalletRepository creates a new PostgreSQL wallet repository
func NewWalletRepository(logger *slog.Logger, db *persistence.PostgresDB) wallet.Registry {
	return &WalletRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *WalletRepository) WithTx(tx pgx.Tx) wallet.Registry {
	return &WalletRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a wallet for the owner. A unique constraint on owner_id makes
// the call idempotent: when the owner already has a wallet the insert is a
// no-op and the existing wallet is returned.
func (r *WalletRepository) Create(ctx context.Context, ownerID uuid.UUID) (*wallet.Wallet, error) {
	w := wallet.New(ownerID)

	query := `
		INSERT INTO wallets (id, owner_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id) DO NOTHING
	`

	result, err := r.querier.Exec(ctx, query, w.ID, w.OwnerID, w.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create wallet", "owner_id", ownerID.String(), "error", err)
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Lost to an earlier creation for the same owner
		return r.GetByOwner(ctx, ownerID)
	}

	return w, nil
}

// GetByID retrieves a wallet by its ID
func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	query := `
		SELECT id, owner_id, created_at
		FROM wallets
		WHERE id = $1
	`

	var w wallet.Wallet
	err := r.querier.QueryRow(ctx, query, id).Scan(&w.ID, &w.OwnerID, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{WalletID: id}
		}
		r.logger.Error("Failed to get wallet", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &w, nil
}

// Lock acquires a row-level lock on the wallet, held until the surrounding
// transaction commits or rolls back
func (r *WalletRepository) Lock(ctx context.Context, id uuid.UUID) error {
	query := `
		SELECT id
		FROM wallets
		WHERE id = $1
		FOR UPDATE
	`

	var locked uuid.UUID
	err := r.querier.QueryRow(ctx, query, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return wallet.ErrWalletNotFound{WalletID: id}
		}
		r.logger.Error("Failed to lock wallet", "id", id.String(), "error", err)
		return fmt.Errorf("failed to lock wallet: %w", err)
	}

	return nil
}

// GetByOwner retrieves the wallet belonging to the owner
func (r *WalletRepository) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*wallet.Wallet, error) {
	query := `
		SELECT id, owner_id, created_at
		FROM wallets
		WHERE owner_id = $1
	`

	var w wallet.Wallet
	err := r.querier.QueryRow(ctx, query, ownerID).Scan(&w.ID, &w.OwnerID, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{OwnerID: ownerID}
		}
		r.logger.Error("Failed to get wallet by owner", "owner_id", ownerID.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet by owner: %w", err)
	}

	return &w, nil
}
