// Package ledger defines the immutable transaction ledger at the heart of the
// wallet service. Every balance-affecting operation is recorded as one or more
// entries (legs) grouped by a correlation id; balances are always derived from
// these entries, never from a stored counter.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wallet-ledger/internal/domain/money"
)

// Operation identifies the kind of a ledger leg
type Operation string

const (
	OperationDeposit  Operation = "DEPOSIT"
	OperationWithdraw Operation = "WITHDRAW"
	OperationTransfer Operation = "TRANSFER"
)

// Status is the lifecycle state of a ledger entry. PROCESSING is the only
// non-terminal state; the transition to SUCCESS or ERROR happens exactly once.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusError      Status = "ERROR"
)

// Terminal reports whether the status is an end state
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// Validation errors for entry invariants
var (
	ErrMissingSourceWallet = errors.New("source wallet is required for this operation")
	ErrMissingTargetWallet = errors.New("target wallet is required for this operation")
	ErrUnexpectedWallet    = errors.New("operation references a wallet leg it must not have")
	ErrSameWalletTransfer  = errors.New("transfer source and target wallets must differ")
)

// Entry is one immutable leg of a ledger operation. Only Status and
// ErrorMessage ever change after creation, and only once.
type Entry struct {
	ID             uuid.UUID    `json:"id"`
	CorrelationID  uuid.UUID    `json:"correlation_id"`
	SourceWalletID *uuid.UUID   `json:"source_wallet_id,omitempty"`
	TargetWalletID *uuid.UUID   `json:"target_wallet_id,omitempty"`
	Operation      Operation    `json:"operation"`
	Amount         money.Amount `json:"amount"`
	Status         Status       `json:"status"`
	ErrorMessage   string       `json:"error_message,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// NewDeposit builds a deposit leg crediting the target wallet
func NewDeposit(correlationID, targetWalletID uuid.UUID, amount money.Amount, status Status) *Entry {
	return &Entry{
		ID:             uuid.New(),
		CorrelationID:  correlationID,
		TargetWalletID: &targetWalletID,
		Operation:      OperationDeposit,
		Amount:         amount,
		Status:         status,
		CreatedAt:      time.Now().UTC(),
	}
}

// NewWithdraw builds a withdrawal leg debiting the source wallet
func NewWithdraw(correlationID, sourceWalletID uuid.UUID, amount money.Amount, status Status) *Entry {
	return &Entry{
		ID:             uuid.New(),
		CorrelationID:  correlationID,
		SourceWalletID: &sourceWalletID,
		Operation:      OperationWithdraw,
		Amount:         amount,
		Status:         status,
		CreatedAt:      time.Now().UTC(),
	}
}

// NewTransfer builds the audit leg linking a transfer's withdrawal and deposit
func NewTransfer(correlationID, sourceWalletID, targetWalletID uuid.UUID, amount money.Amount, status Status) *Entry {
	return &Entry{
		ID:             uuid.New(),
		CorrelationID:  correlationID,
		SourceWalletID: &sourceWalletID,
		TargetWalletID: &targetWalletID,
		Operation:      OperationTransfer,
		Amount:         amount,
		Status:         status,
		CreatedAt:      time.Now().UTC(),
	}
}

// TransferLegs builds the three linked PROCESSING legs of a transfer saga
// under one correlation id: the withdrawal debiting the source, the deposit
// crediting the target, and the transfer audit record.
func TransferLegs(correlationID, sourceWalletID, targetWalletID uuid.UUID, amount money.Amount) []*Entry {
	return []*Entry{
		NewWithdraw(correlationID, sourceWalletID, amount, StatusProcessing),
		NewDeposit(correlationID, targetWalletID, amount, StatusProcessing),
		NewTransfer(correlationID, sourceWalletID, targetWalletID, amount, StatusProcessing),
	}
}

// Validate checks the leg-shape invariants for the entry's operation
func (e *Entry) Validate() error {
	if e.Amount.IsZero() {
		return money.ErrInvalidAmount
	}

	switch e.Operation {
	case OperationDeposit:
		if e.SourceWalletID != nil {
			return ErrUnexpectedWallet
		}
		if e.TargetWalletID == nil {
			return ErrMissingTargetWallet
		}
	case OperationWithdraw:
		if e.TargetWalletID != nil {
			return ErrUnexpectedWallet
		}
		if e.SourceWalletID == nil {
			return ErrMissingSourceWallet
		}
	case OperationTransfer:
		if e.SourceWalletID == nil {
			return ErrMissingSourceWallet
		}
		if e.TargetWalletID == nil {
			return ErrMissingTargetWallet
		}
		if *e.SourceWalletID == *e.TargetWalletID {
			return ErrSameWalletTransfer
		}
	default:
		return errors.New("unknown ledger operation: " + string(e.Operation))
	}

	return nil
}
