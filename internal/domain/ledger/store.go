package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Store is the append-only persistence and aggregation surface over ledger
// entries. It is the only shared mutable resource in the system; AdvanceStatus
// is its sole serialization primitive.
type Store interface {
	// Append atomically persists a batch of entries. The whole batch fails
	// if any entry violates its invariants; partial leg sets are never
	// observable.
	Append(ctx context.Context, entries []*Entry) error

	// FindByCorrelationID returns all legs of one logical operation,
	// ordered by creation.
	FindByCorrelationID(ctx context.Context, correlationID uuid.UUID) ([]*Entry, error)

	// AdvanceStatus conditionally moves entries from one status to another
	// in a single compare-and-swap update, recording errorMessage on ERROR
	// transitions. Only rows currently in `from` transition; the returned
	// count tells concurrent settlers apart (zero means someone else won).
	AdvanceStatus(ctx context.Context, ids []uuid.UUID, from, to Status, errorMessage string) (int64, error)

	// SumByOperation sums SUCCESS-status amounts of one operation for a
	// wallet up to asOf. Deposits are summed by target wallet, withdrawals
	// and transfers by source wallet. The WITHDRAW and DEPOSIT legs of a
	// transfer group are excluded; the TRANSFER leg alone carries the
	// transfer's balance effect. Returns zero when nothing matches.
	SumByOperation(ctx context.Context, walletID uuid.UUID, op Operation, asOf time.Time) (decimal.Decimal, error)

	// SumReceivedTransfers sums SUCCESS-status transfer amounts credited
	// to the wallet up to asOf.
	SumReceivedTransfers(ctx context.Context, walletID uuid.UUID, asOf time.Time) (decimal.Decimal, error)

	// FindStaleProcessing returns correlation groups whose legs have been
	// stuck in PROCESSING since before the deadline, oldest first. Used by
	// the reconciliation sweep.
	FindStaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]StaleGroup, error)

	// WithTx wraps the store with a transaction for atomic operations
	// spanning multiple calls.
	WithTx(tx pgx.Tx) Store
}

// StaleGroup identifies a PROCESSING correlation group awaiting settlement
type StaleGroup struct {
	CorrelationID uuid.UUID
	Legs          int
	OldestCreated time.Time
}

// WriteError indicates an append or status-advance failure at the store layer
type WriteError struct {
	Op  string
	Err error
}

func (e WriteError) Error() string {
	return "ledger write failed (" + e.Op + "): " + e.Err.Error()
}

func (e WriteError) Unwrap() error {
	return e.Err
}
