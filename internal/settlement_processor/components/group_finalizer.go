package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wallet-ledger/internal/domain/ledger"
	"github.com/wallet-ledger/internal/domain/outbox"
	"github.com/wallet-ledger/internal/settlement_processor/service"
)

// TxRunner runs a function within a database transaction.
// Satisfied by *persistence.PostgresDB.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// GroupFinalizerImpl implements the GroupFinalizer interface. The conditional
// status advance and the archive outbox rows commit in one transaction, so a
// group is never terminal without its archive trail queued.
type GroupFinalizerImpl struct {
	db         TxRunner
	store      ledger.Store
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

// NewGroupFinalizer creates a new group finalizer
func NewGroupFinalizer(logger *slog.Logger, db TxRunner, store ledger.Store, outboxRepo outbox.Repository) service.GroupFinalizer {
	return &GroupFinalizerImpl{
		db:         db,
		store:      store,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// Finalize advances all legs from PROCESSING to the terminal status with a
// single compare-and-swap update. Zero updated rows means a concurrent
// settler won; the transaction commits empty and won=false is returned.
func (f *GroupFinalizerImpl) Finalize(ctx context.Context, legs []*ledger.Entry, to ledger.Status, errorMessage string) (bool, error) {
	if !to.Terminal() {
		return false, fmt.Errorf("finalize target status %s is not terminal", to)
	}

	ids := make([]uuid.UUID, 0, len(legs))
	for _, leg := range legs {
		ids = append(ids, leg.ID)
	}

	won := false
	err := f.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		updated, err := f.store.WithTx(tx).AdvanceStatus(ctx, ids, ledger.StatusProcessing, to, errorMessage)
		if err != nil {
			return err
		}
		if updated == 0 {
			return nil
		}
		if updated != int64(len(ids)) {
			// Legs always advance together; a partial update means the
			// group is corrupt and must not be committed
			return fmt.Errorf("advanced %d of %d legs", updated, len(ids))
		}
		won = true

		outboxRepo := f.outboxRepo.WithTx(tx)
		for _, leg := range legs {
			leg.Status = to
			leg.ErrorMessage = errorMessage

			message, err := outbox.NewMessage(leg)
			if err != nil {
				return fmt.Errorf("failed to build archive message for entry %s: %w", leg.ID.String(), err)
			}
			if err := outboxRepo.Create(ctx, message); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		f.logger.Error("Failed to finalize correlation group",
			"correlation_id", legs[0].CorrelationID.String(),
			"to", string(to),
			"error", err,
		)
		return false, err
	}

	return won, nil
}
