package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wallet-ledger/internal/balance"
	"github.com/wallet-ledger/internal/domain/ledger"
	"github.com/wallet-ledger/internal/domain/money"
	"github.com/wallet-ledger/internal/domain/outbox"
	"github.com/wallet-ledger/internal/domain/shared"
	"github.com/wallet-ledger/internal/domain/wallet"
	"github.com/wallet-ledger/internal/platform/messaging/producers"
)

// TxRunner runs a function within a database transaction.
// Satisfied by *persistence.PostgresDB.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// TransactionServiceImpl implements the TransactionService interface. It is
// the saga orchestrator: it validates requests, writes PROCESSING legs, and
// hands settlement off to the queue. Withdrawals are the exception and settle
// inline.
type TransactionServiceImpl struct {
	db               TxRunner
	registry         wallet.Registry
	store            ledger.Store
	outboxRepo       outbox.Repository
	engine           *balance.Engine
	depositProducer  producers.MessagePublisher
	transferProducer producers.MessagePublisher
	logger           *slog.Logger
}

// NewTransactionService creates a new transaction service
func NewTransactionService(
	logger *slog.Logger,
	db TxRunner,
	registry wallet.Registry,
	store ledger.Store,
	outboxRepo outbox.Repository,
	engine *balance.Engine,
	depositProducer producers.MessagePublisher,
	transferProducer producers.MessagePublisher,
) TransactionService {
	return &TransactionServiceImpl{
		db:               db,
		registry:         registry,
		store:            store,
		outboxRepo:       outboxRepo,
		engine:           engine,
		depositProducer:  depositProducer,
		transferProducer: transferProducer,
		logger:           logger,
	}
}

// Deposit writes one PROCESSING deposit leg and publishes its correlation id
// to the deposit queue. The call returns before settlement happens.
func (s *TransactionServiceImpl) Deposit(ctx context.Context, targetWalletID, ownerID uuid.UUID, amount money.Amount) (uuid.UUID, error) {
	w, err := s.registry.GetByID(ctx, targetWalletID)
	if err != nil {
		return uuid.Nil, err
	}
	if !w.OwnedBy(ownerID) {
		return uuid.Nil, wallet.ErrNotOwner
	}

	correlationID := uuid.New()
	entry := ledger.NewDeposit(correlationID, targetWalletID, amount, ledger.StatusProcessing)

	if err := s.store.Append(ctx, []*ledger.Entry{entry}); err != nil {
		s.logger.Error("Failed to append deposit leg",
			"wallet_id", targetWalletID.String(),
			"error", err,
		)
		return uuid.Nil, err
	}

	if err := s.publishSettlement(ctx, s.depositProducer, correlationID); err != nil {
		// The leg is committed; the reconciler will republish it
		return correlationID, err
	}

	s.logger.Info("Deposit queued for settlement",
		"correlation_id", correlationID.String(),
		"wallet_id", targetWalletID.String(),
		"amount", amount.String(),
	)
	return correlationID, nil
}

// Withdraw settles inline: it locks the wallet row, validates funds against
// the ledger, and appends a terminal SUCCESS leg together with its archive
// outbox row, all in one database transaction. The lock serializes concurrent
// withdrawals on the same wallet so the funds check and the append observe
// each other. No queue is involved.
func (s *TransactionServiceImpl) Withdraw(ctx context.Context, walletID, ownerID uuid.UUID, amount money.Amount) (*ledger.Entry, error) {
	w, err := s.registry.GetByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if !w.OwnedBy(ownerID) {
		return nil, wallet.ErrNotOwner
	}

	correlationID := uuid.New()
	entry := ledger.NewWithdraw(correlationID, walletID, amount, ledger.StatusSuccess)

	message, err := outbox.NewMessage(entry)
	if err != nil {
		return nil, err
	}

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.registry.WithTx(tx).Lock(ctx, walletID); err != nil {
			return err
		}

		// Read under the lock: a concurrent withdrawal either committed
		// before the lock was granted or waits behind it
		current, err := s.engine.HistoricalAt(ctx, walletID, time.Now().UTC())
		if err != nil {
			return err
		}
		// Withdrawing the exact balance is allowed; zero balance never is
		if current.IsZero() || amount.Decimal().GreaterThan(current) {
			return wallet.ErrInsufficientFunds
		}

		if err := s.store.WithTx(tx).Append(ctx, []*ledger.Entry{entry}); err != nil {
			return err
		}
		return s.outboxRepo.WithTx(tx).Create(ctx, message)
	})
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			return nil, err
		}
		s.logger.Error("Failed to record withdrawal",
			"wallet_id", walletID.String(),
			"error", err,
		)
		return nil, err
	}

	s.engine.InvalidateCache(ctx, walletID)

	s.logger.Info("Withdrawal settled",
		"correlation_id", correlationID.String(),
		"wallet_id", walletID.String(),
		"amount", amount.String(),
	)
	return entry, nil
}

// Transfer validates the request and writes the three linked PROCESSING legs
// atomically, then publishes the correlation id to the transfer queue
func (s *TransactionServiceImpl) Transfer(ctx context.Context, sourceWalletID, sourceOwnerID, targetOwnerID uuid.UUID, amount money.Amount) (uuid.UUID, error) {
	if sourceOwnerID == targetOwnerID {
		return uuid.Nil, TransferError{Reason: "cannot transfer to the same user"}
	}

	source, err := s.registry.GetByID(ctx, sourceWalletID)
	if err != nil {
		return uuid.Nil, err
	}
	if !source.OwnedBy(sourceOwnerID) {
		return uuid.Nil, TransferError{Reason: "wallet does not belong to the requesting user"}
	}

	target, err := s.registry.GetByOwner(ctx, targetOwnerID)
	if err != nil {
		return uuid.Nil, err
	}

	correlationID := uuid.New()
	legs := ledger.TransferLegs(correlationID, source.ID, target.ID, amount)

	if err := s.store.Append(ctx, legs); err != nil {
		s.logger.Error("Failed to append transfer legs",
			"source_wallet_id", source.ID.String(),
			"target_wallet_id", target.ID.String(),
			"error", err,
		)
		return uuid.Nil, err
	}

	if err := s.publishSettlement(ctx, s.transferProducer, correlationID); err != nil {
		return correlationID, err
	}

	s.logger.Info("Transfer queued for settlement",
		"correlation_id", correlationID.String(),
		"source_wallet_id", source.ID.String(),
		"target_wallet_id", target.ID.String(),
		"amount", amount.String(),
	)
	return correlationID, nil
}

// GetOperation returns all ledger legs recorded under a correlation id
func (s *TransactionServiceImpl) GetOperation(ctx context.Context, correlationID uuid.UUID) ([]*ledger.Entry, error) {
	return s.store.FindByCorrelationID(ctx, correlationID)
}

// publishSettlement sends the correlation id to the given queue. A failure
// here leaves committed legs in PROCESSING; the reconciliation sweep picks
// them up, so the error is reported but nothing is rolled back.
func (s *TransactionServiceImpl) publishSettlement(ctx context.Context, producer producers.MessagePublisher, correlationID uuid.UUID) error {
	msg := shared.SettlementMessage{CorrelationID: correlationID}
	if err := producer.Publish(ctx, correlationID.String(), msg); err != nil {
		s.logger.Error("Failed to publish settlement message, legs remain PROCESSING until reconciled",
			"correlation_id", correlationID.String(),
			"error", err,
		)
		return err
	}
	return nil
}
