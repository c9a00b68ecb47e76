package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/wallet-ledger/internal/domain/ledger"
)

// SettlementService settles one correlation group: it re-reads the legs,
// re-validates, and advances them to a terminal status exactly once.
type SettlementService interface {
	Settle(ctx context.Context, correlationID uuid.UUID) error
}

// FundsVerifier re-checks that a transfer's source wallet can cover the
// amount at settlement time
type FundsVerifier interface {
	VerifyTransferFunds(ctx context.Context, legs []*ledger.Entry) error
}

// GroupFinalizer atomically advances a correlation group to a terminal
// status and records the archive outbox rows. The returned bool reports
// whether this caller won the transition.
type GroupFinalizer interface {
	Finalize(ctx context.Context, legs []*ledger.Entry, to ledger.Status, errorMessage string) (bool, error)
}
