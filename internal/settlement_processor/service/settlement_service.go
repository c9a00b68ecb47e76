package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/wallet-ledger/internal/balance"
	"github.com/wallet-ledger/internal/domain/ledger"
	"github.com/wallet-ledger/internal/domain/wallet"
)

// SettlementServiceImpl implements the SettlementService interface. It is the
// consumer-side half of the saga: everything the orchestrator committed in
// PROCESSING state terminates here, exactly once, regardless of how many
// times the message is delivered.
type SettlementServiceImpl struct {
	store     ledger.Store
	verifier  FundsVerifier
	finalizer GroupFinalizer
	engine    *balance.Engine
	logger    *slog.Logger
}

// NewSettlementService creates a new settlement service
func NewSettlementService(
	logger *slog.Logger,
	store ledger.Store,
	verifier FundsVerifier,
	finalizer GroupFinalizer,
	engine *balance.Engine,
) SettlementService {
	return &SettlementServiceImpl{
		store:     store,
		verifier:  verifier,
		finalizer: finalizer,
		engine:    engine,
		logger:    logger,
	}
}

// Settle loads the correlation group and drives it to a terminal status.
// Business failures are recorded into the ledger as ERROR and return nil so
// the message is acknowledged; infrastructure failures return an error so
// the message is redelivered.
func (s *SettlementServiceImpl) Settle(ctx context.Context, correlationID uuid.UUID) error {
	logger := s.logger.With("correlation_id", correlationID.String())

	legs, err := s.store.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		return fmt.Errorf("failed to load correlation group %s: %w", correlationID.String(), err)
	}

	if len(legs) == 0 {
		logger.Warn("Settlement message references unknown correlation id, acknowledging")
		return nil
	}

	// Idempotency guard: legs advance together, so one terminal leg means
	// the whole group was already settled (duplicate delivery)
	if legs[0].Status.Terminal() {
		logger.Debug("Correlation group already settled, acknowledging duplicate delivery",
			"status", string(legs[0].Status),
		)
		return nil
	}

	terminalStatus := ledger.StatusSuccess
	errorMessage := ""

	switch {
	case isDepositGroup(legs):
		// Nothing to re-validate: the money arrives from outside
	case isTransferGroup(legs):
		if err := s.verifier.VerifyTransferFunds(ctx, legs); err != nil {
			if !errors.Is(err, wallet.ErrInsufficientFunds) {
				return fmt.Errorf("failed to verify transfer funds for %s: %w", correlationID.String(), err)
			}
			logger.Info("Transfer source cannot cover amount at settlement time, recording ERROR")
			terminalStatus = ledger.StatusError
			errorMessage = "insufficient funds at settlement time"
		}
	default:
		logger.Error("Correlation group has an unexpected leg set, recording ERROR", "legs", len(legs))
		terminalStatus = ledger.StatusError
		errorMessage = fmt.Sprintf("unexpected leg set: %d legs", len(legs))
	}

	won, err := s.finalizer.Finalize(ctx, legs, terminalStatus, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to finalize correlation group %s: %w", correlationID.String(), err)
	}
	if !won {
		logger.Debug("Another settler finalized this group first, acknowledging")
		return nil
	}

	s.engine.InvalidateCache(ctx, walletIDs(legs)...)

	logger.Info("Correlation group settled",
		"status", string(terminalStatus),
		"legs", len(legs),
	)
	return nil
}

// isDepositGroup reports whether legs form a one-leg deposit saga
func isDepositGroup(legs []*ledger.Entry) bool {
	return len(legs) == 1 && legs[0].Operation == ledger.OperationDeposit
}

// isTransferGroup reports whether legs form the three-leg transfer saga
func isTransferGroup(legs []*ledger.Entry) bool {
	if len(legs) != 3 {
		return false
	}
	var withdraw, deposit, transfer int
	for _, leg := range legs {
		switch leg.Operation {
		case ledger.OperationWithdraw:
			withdraw++
		case ledger.OperationDeposit:
			deposit++
		case ledger.OperationTransfer:
			transfer++
		}
	}
	return withdraw == 1 && deposit == 1 && transfer == 1
}

// walletIDs collects the distinct wallets referenced by the legs
func walletIDs(legs []*ledger.Entry) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, leg := range legs {
		for _, ref := range []*uuid.UUID{leg.SourceWalletID, leg.TargetWalletID} {
			if ref == nil {
				continue
			}
			if _, ok := seen[*ref]; !ok {
				seen[*ref] = struct{}{}
				ids = append(ids, *ref)
			}
		}
	}
	return ids
}
