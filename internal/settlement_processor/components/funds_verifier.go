// Package components holds the building blocks the settlement service is
// assembled from. Each one covers a single concern so it can be replaced in
// tests.
package components

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wallet-ledger/internal/balance"
	"github.com/wallet-ledger/internal/domain/ledger"
	"github.com/wallet-ledger/internal/domain/wallet"
	"github.com/wallet-ledger/internal/settlement_processor/service"
)

// FundsVerifierImpl implements the FundsVerifier interface on top of the
// balance engine
type FundsVerifierImpl struct {
	engine *balance.Engine
	logger *slog.Logger
}

// NewFundsVerifier creates a new funds verifier
func NewFundsVerifier(logger *slog.Logger, engine *balance.Engine) service.FundsVerifier {
	return &FundsVerifierImpl{
		engine: engine,
		logger: logger,
	}
}

// VerifyTransferFunds checks that the source wallet's balance covers the
// transfer amount at this moment. The balance is recomputed from the ledger,
// never served from cache, because the PROCESSING legs being settled do not
// count toward it.
func (v *FundsVerifierImpl) VerifyTransferFunds(ctx context.Context, legs []*ledger.Entry) error {
	var withdrawLeg *ledger.Entry
	for _, leg := range legs {
		if leg.Operation == ledger.OperationWithdraw {
			withdrawLeg = leg
			break
		}
	}
	if withdrawLeg == nil || withdrawLeg.SourceWalletID == nil {
		return fmt.Errorf("transfer group is missing its withdraw leg")
	}

	sourceID := *withdrawLeg.SourceWalletID
	current, err := v.engine.HistoricalAt(ctx, sourceID, time.Now().UTC())
	if err != nil {
		return err
	}

	if current.IsZero() || withdrawLeg.Amount.Decimal().GreaterThan(current) {
		v.logger.Info("Source wallet cannot cover transfer",
			"wallet_id", sourceID.String(),
			"balance", current.String(),
			"amount", withdrawLeg.Amount.String(),
		)
		return wallet.ErrInsufficientFunds
	}

	return nil
}
