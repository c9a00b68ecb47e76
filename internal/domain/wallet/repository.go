package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Registry owns wallet identity and ownership. One wallet per owner.
type Registry interface {
	// Create persists a wallet for the owner. It is idempotent: when the
	// owner already has a wallet, that wallet is returned instead.
	Create(ctx context.Context, ownerID uuid.UUID) (*Wallet, error)

	// GetByID retrieves a wallet by its id.
	// Returns ErrWalletNotFound if the wallet doesn't exist.
	GetByID(ctx context.Context, id uuid.UUID) (*Wallet, error)

	// GetByOwner retrieves the wallet belonging to the owner.
	// Returns ErrWalletNotFound if the owner has no wallet.
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*Wallet, error)

	// Lock takes a row-level lock on the wallet, held until the surrounding
	// transaction ends. Serializes check-then-write sequences such as the
	// synchronous withdrawal's funds check. Only meaningful on a registry
	// bound to a transaction via WithTx.
	// Returns ErrWalletNotFound if the wallet doesn't exist.
	Lock(ctx context.Context, id uuid.UUID) error

	// WithTx wraps the registry with a transaction.
	WithTx(tx pgx.Tx) Registry
}

// ErrWalletNotFound indicates an unknown wallet id or owner
type ErrWalletNotFound struct {
	WalletID uuid.UUID
	OwnerID  uuid.UUID
}

func (e ErrWalletNotFound) Error() string {
	if e.OwnerID != uuid.Nil {
		return "wallet not found for owner: " + e.OwnerID.String()
	}
	return "wallet not found: " + e.WalletID.String()
}

// Is implements the errors.Is interface for ErrWalletNotFound
func (e ErrWalletNotFound) Is(target error) bool {
	t, ok := target.(ErrWalletNotFound)
	if !ok {
		return false
	}
	// An empty target matches any ErrWalletNotFound
	if t.WalletID == uuid.Nil && t.OwnerID == uuid.Nil {
		return true
	}
	return e.WalletID == t.WalletID && e.OwnerID == t.OwnerID
}
