// Package reconciler sweeps the ledger for correlation groups stuck in
// PROCESSING. A group gets stuck when its settlement message was lost, most
// likely because the queue publish failed after the legs were committed.
// Republishing the correlation id is safe: settlement is idempotent.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wallet-ledger/internal/config"
	"github.com/wallet-ledger/internal/domain/ledger"
	"github.com/wallet-ledger/internal/domain/shared"
	"github.com/wallet-ledger/internal/platform/messaging/producers"
)

// Reconciler periodically republishes settlement messages for stale
// PROCESSING groups
type Reconciler struct {
	store            ledger.Store
	depositProducer  producers.MessagePublisher
	transferProducer producers.MessagePublisher
	logger           *slog.Logger
	interval         time.Duration
	staleAfter       time.Duration
	batchSize        int
}

func NewReconciler(
	cfg *config.ReconcilerConfig,
	store ledger.Store,
	depositProducer producers.MessagePublisher,
	transferProducer producers.MessagePublisher,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		store:            store,
		depositProducer:  depositProducer,
		transferProducer: transferProducer,
		logger:           logger,
		interval:         cfg.Interval,
		staleAfter:       cfg.StaleAfter,
		batchSize:        cfg.BatchSize,
	}
}

// Start begins sweeping until the context is canceled
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("Starting reconciler",
		"interval", r.interval.String(),
		"stale_after", r.staleAfter.String(),
		"batch_size", r.batchSize,
	)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopping due to context cancellation")
			return
		case <-ticker.C:
			if err := r.sweep(ctx); err != nil {
				r.logger.Error("Reconciliation sweep failed", "error", err)
			}
		}
	}
}

// sweep republishes the settlement message for each stale group. The leg
// count identifies the saga kind: one leg is a deposit, three a transfer.
func (r *Reconciler) sweep(ctx context.Context) error {
	deadline := time.Now().UTC().Add(-r.staleAfter)

	groups, err := r.store.FindStaleProcessing(ctx, deadline, r.batchSize)
	if err != nil {
		return fmt.Errorf("failed to find stale groups: %w", err)
	}
	if len(groups) == 0 {
		return nil
	}

	r.logger.Info("Found stale PROCESSING groups", "count", len(groups))

	for _, group := range groups {
		logger := r.logger.With("correlation_id", group.CorrelationID.String())

		var producer producers.MessagePublisher
		switch group.Legs {
		case 1:
			producer = r.depositProducer
		case 3:
			producer = r.transferProducer
		default:
			logger.Error("Stale group has an unexpected leg count, skipping", "legs", group.Legs)
			continue
		}

		msg := shared.SettlementMessage{CorrelationID: group.CorrelationID}
		if err := producer.Publish(ctx, group.CorrelationID.String(), msg); err != nil {
			logger.Error("Failed to republish settlement message, will retry next sweep", "error", err)
			continue
		}

		logger.Info("Republished settlement message for stale group",
			"legs", group.Legs,
			"stale_since", group.OldestCreated.Format(time.RFC3339),
		)
	}

	return nil
}
