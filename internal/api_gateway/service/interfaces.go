package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wallet-ledger/internal/domain/ledger"
	"github.com/wallet-ledger/internal/domain/money"
	"github.com/wallet-ledger/internal/domain/wallet"
)

// WalletService defines the interface for wallet and balance operations
type WalletService interface {
	// CreateWallet creates a wallet for the owner. Idempotent: returns the
	// existing wallet when the owner already has one.
	CreateWallet(ctx context.Context, ownerID uuid.UUID) (*wallet.Wallet, error)

	// GetWallet retrieves a wallet by its ID
	// Returns ErrWalletNotFound if the wallet doesn't exist
	GetWallet(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error)

	// CurrentBalance returns the wallet's present ledger-derived balance
	CurrentBalance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)

	// HistoricalBalance returns the wallet's balance as of the given instant,
	// always recomputed from the ledger
	HistoricalBalance(ctx context.Context, walletID uuid.UUID, asOf time.Time) (decimal.Decimal, error)
}

// TransactionService defines the interface for balance-affecting operations.
// Deposit and Transfer are asynchronous sagas: they write PROCESSING legs,
// publish a settlement message, and return the correlation id immediately.
// Withdraw settles inline.
type TransactionService interface {
	// Deposit records a pending deposit into the owner's wallet and queues
	// it for settlement. Returns the saga's correlation id.
	Deposit(ctx context.Context, targetWalletID, ownerID uuid.UUID, amount money.Amount) (uuid.UUID, error)

	// Withdraw debits the wallet synchronously. Fails with
	// ErrInsufficientFunds when the balance is zero or smaller than amount;
	// withdrawing the exact balance is allowed.
	Withdraw(ctx context.Context, walletID, ownerID uuid.UUID, amount money.Amount) (*ledger.Entry, error)

	// Transfer moves funds between wallets of two distinct owners by
	// writing three linked PROCESSING legs and queueing them for
	// settlement. Returns the saga's correlation id.
	Transfer(ctx context.Context, sourceWalletID, sourceOwnerID, targetOwnerID uuid.UUID, amount money.Amount) (uuid.UUID, error)

	// GetOperation returns all ledger legs recorded under a correlation id
	GetOperation(ctx context.Context, correlationID uuid.UUID) ([]*ledger.Entry, error)
}

// TransferError indicates a transfer business-rule violation detected before
// any ledger write
type TransferError struct {
	Reason string
}

func (e TransferError) Error() string {
	return "transfer rejected: " + e.Reason
}

// Is implements the errors.Is interface for TransferError
func (e TransferError) Is(target error) bool {
	t, ok := target.(TransferError)
	if !ok {
		return false
	}
	return t.Reason == "" || e.Reason == t.Reason
}
