package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wallet-ledger/internal/balance"
	"github.com/wallet-ledger/internal/domain/ledger"
	"github.com/wallet-ledger/internal/domain/money"
	"github.com/wallet-ledger/internal/domain/outbox"
	"github.com/wallet-ledger/internal/domain/shared"
	"github.com/wallet-ledger/internal/domain/wallet"
)

// MockWalletRegistry mocks wallet.Registry
type MockWalletRegistry struct {
	mock.Mock
}

func (m *MockWalletRegistry) Create(ctx context.Context, ownerID uuid.UUID) (*wallet.Wallet, error) {
	args := m.Called(ctx, ownerID)
	if w, ok := args.Get(0).(*wallet.Wallet); ok {
		return w, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWalletRegistry) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	args := m.Called(ctx, id)
	if w, ok := args.Get(0).(*wallet.Wallet); ok {
		return w, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWalletRegistry) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*wallet.Wallet, error) {
	args := m.Called(ctx, ownerID)
	if w, ok := args.Get(0).(*wallet.Wallet); ok {
		return w, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWalletRegistry) Lock(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockWalletRegistry) WithTx(tx pgx.Tx) wallet.Registry {
	args := m.Called(tx)
	return args.Get(0).(wallet.Registry)
}

// MockLedgerStore mocks ledger.Store
type MockLedgerStore struct {
	mock.Mock
}

func (m *MockLedgerStore) Append(ctx context.Context, entries []*ledger.Entry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockLedgerStore) FindByCorrelationID(ctx context.Context, correlationID uuid.UUID) ([]*ledger.Entry, error) {
	args := m.Called(ctx, correlationID)
	if entries, ok := args.Get(0).([]*ledger.Entry); ok {
		return entries, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedgerStore) AdvanceStatus(ctx context.Context, ids []uuid.UUID, from, to ledger.Status, errorMessage string) (int64, error) {
	args := m.Called(ctx, ids, from, to, errorMessage)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerStore) SumByOperation(ctx context.Context, walletID uuid.UUID, op ledger.Operation, asOf time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, walletID, op, asOf)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerStore) SumReceivedTransfers(ctx context.Context, walletID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, walletID, asOf)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerStore) FindStaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]ledger.StaleGroup, error) {
	args := m.Called(ctx, olderThan, limit)
	if groups, ok := args.Get(0).([]ledger.StaleGroup); ok {
		return groups, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedgerStore) WithTx(tx pgx.Tx) ledger.Store {
	args := m.Called(tx)
	return args.Get(0).(ledger.Store)
}

// MockOutboxRepository mocks outbox.Repository
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if messages, ok := args.Get(0).([]*outbox.Message); ok {
		return messages, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOutboxRepository) UpdateStatus(ctx context.Context, id int64, status outbox.Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	args := m.Called(tx)
	return args.Get(0).(outbox.Repository)
}

// MockPublisher mocks producers.MessagePublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// fakeTxRunner runs the transaction function directly with a nil tx
type fakeTxRunner struct {
	err error
}

func (f *fakeTxRunner) ExecuteTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type txFixture struct {
	registry   *MockWalletRegistry
	store      *MockLedgerStore
	outboxRepo *MockOutboxRepository
	deposits   *MockPublisher
	transfers  *MockPublisher
	db         *fakeTxRunner
	svc        TransactionService
}

func newTxFixture() *txFixture {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := &txFixture{
		registry:   new(MockWalletRegistry),
		store:      new(MockLedgerStore),
		outboxRepo: new(MockOutboxRepository),
		deposits:   new(MockPublisher),
		transfers:  new(MockPublisher),
		db:         &fakeTxRunner{},
	}
	engine := balance.NewEngine(logger, f.store, f.registry, nil)
	f.svc = NewTransactionService(logger, f.db, f.registry, f.store, f.outboxRepo, engine, f.deposits, f.transfers)
	return f
}

func (f *txFixture) expectBalance(walletID uuid.UUID, deposits, received, withdrawals, sent string) {
	f.registry.On("GetByID", mock.Anything, walletID).Return(&wallet.Wallet{ID: walletID}, nil)
	f.store.On("SumByOperation", mock.Anything, walletID, ledger.OperationDeposit, mock.AnythingOfType("time.Time")).Return(decimal.RequireFromString(deposits), nil)
	f.store.On("SumReceivedTransfers", mock.Anything, walletID, mock.AnythingOfType("time.Time")).Return(decimal.RequireFromString(received), nil)
	f.store.On("SumByOperation", mock.Anything, walletID, ledger.OperationWithdraw, mock.AnythingOfType("time.Time")).Return(decimal.RequireFromString(withdrawals), nil)
	f.store.On("SumByOperation", mock.Anything, walletID, ledger.OperationTransfer, mock.AnythingOfType("time.Time")).Return(decimal.RequireFromString(sent), nil)
}

func amountOf(t *testing.T, raw string) money.Amount {
	t.Helper()
	a, err := money.Parse(raw)
	require.NoError(t, err)
	return a
}

func TestTransactionService_Deposit(t *testing.T) {
	ctx := context.Background()
	walletID := uuid.New()
	ownerID := uuid.New()
	amount := amountOf(t, "100.00")

	t.Run("AppendsOneProcessingLegAndPublishes", func(t *testing.T) {
		f := newTxFixture()
		f.registry.On("GetByID", ctx, walletID).Return(&wallet.Wallet{ID: walletID, OwnerID: ownerID}, nil).Once()

		var appended []*ledger.Entry
		f.store.On("Append", ctx, mock.MatchedBy(func(entries []*ledger.Entry) bool {
			appended = entries
			return len(entries) == 1 &&
				entries[0].Operation == ledger.OperationDeposit &&
				entries[0].Status == ledger.StatusProcessing &&
				*entries[0].TargetWalletID == walletID
		})).Return(nil).Once()

		f.deposits.On("Publish", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("shared.SettlementMessage")).Return(nil).Once()

		correlationID, err := f.svc.Deposit(ctx, walletID, ownerID, amount)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, correlationID)
		require.Len(t, appended, 1)
		assert.Equal(t, correlationID, appended[0].CorrelationID)

		// The queue key is the correlation id, for partition affinity
		f.deposits.AssertCalled(t, "Publish", ctx, correlationID.String(), shared.SettlementMessage{CorrelationID: correlationID})
		f.store.AssertExpectations(t)
		f.transfers.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("RejectsForeignWalletWithoutWriting", func(t *testing.T) {
		f := newTxFixture()
		f.registry.On("GetByID", ctx, walletID).Return(&wallet.Wallet{ID: walletID, OwnerID: uuid.New()}, nil).Once()

		_, err := f.svc.Deposit(ctx, walletID, ownerID, amount)
		assert.ErrorIs(t, err, wallet.ErrNotOwner)
		f.store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("UnknownWallet", func(t *testing.T) {
		f := newTxFixture()
		f.registry.On("GetByID", ctx, walletID).Return(nil, wallet.ErrWalletNotFound{WalletID: walletID}).Once()

		_, err := f.svc.Deposit(ctx, walletID, ownerID, amount)
		assert.ErrorIs(t, err, wallet.ErrWalletNotFound{})
	})

	t.Run("PublishFailureStillReturnsCorrelationID", func(t *testing.T) {
		f := newTxFixture()
		f.registry.On("GetByID", ctx, walletID).Return(&wallet.Wallet{ID: walletID, OwnerID: ownerID}, nil).Once()
		f.store.On("Append", ctx, mock.Anything).Return(nil).Once()

		publishErr := fmt.Errorf("%w: topic deposits: broker down", shared.ErrQueuePublish)
		f.deposits.On("Publish", ctx, mock.Anything, mock.Anything).Return(publishErr).Once()

		correlationID, err := f.svc.Deposit(ctx, walletID, ownerID, amount)
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrQueuePublish)
		assert.NotEqual(t, uuid.Nil, correlationID, "committed legs must stay addressable for reconciliation")
	})
}

func TestTransactionService_Withdraw(t *testing.T) {
	ctx := context.Background()
	walletID := uuid.New()
	ownerID := uuid.New()

	t.Run("RejectsOverdraw", func(t *testing.T) {
		f := newTxFixture()
		f.registry.On("GetByID", ctx, walletID).Return(&wallet.Wallet{ID: walletID, OwnerID: ownerID}, nil).Once()
		f.registry.On("WithTx", mock.Anything).Return(f.registry)
		f.registry.On("Lock", ctx, walletID).Return(nil)
		f.expectBalance(walletID, "50.00", "0", "0", "0")

		_, err := f.svc.Withdraw(ctx, walletID, ownerID, amountOf(t, "60.00"))
		assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)
		f.store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("RejectsWithdrawalFromEmptyWallet", func(t *testing.T) {
		f := newTxFixture()
		f.registry.On("GetByID", ctx, walletID).Return(&wallet.Wallet{ID: walletID, OwnerID: ownerID}, nil).Once()
		f.registry.On("WithTx", mock.Anything).Return(f.registry)
		f.registry.On("Lock", ctx, walletID).Return(nil)
		f.expectBalance(walletID, "0", "0", "0", "0")

		_, err := f.svc.Withdraw(ctx, walletID, ownerID, amountOf(t, "0.01"))
		assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)
	})

	t.Run("AllowsWithdrawingExactBalance", func(t *testing.T) {
		f := newTxFixture()
		f.registry.On("GetByID", ctx, walletID).Return(&wallet.Wallet{ID: walletID, OwnerID: ownerID}, nil).Once()
		f.registry.On("WithTx", mock.Anything).Return(f.registry)
		f.registry.On("Lock", ctx, walletID).Return(nil).Once()
		f.expectBalance(walletID, "50.00", "0", "0", "0")

		f.store.On("WithTx", mock.Anything).Return(f.store).Once()
		f.store.On("Append", ctx, mock.MatchedBy(func(entries []*ledger.Entry) bool {
			return len(entries) == 1 &&
				entries[0].Operation == ledger.OperationWithdraw &&
				entries[0].Status == ledger.StatusSuccess &&
				*entries[0].SourceWalletID == walletID
		})).Return(nil).Once()
		f.outboxRepo.On("WithTx", mock.Anything).Return(f.outboxRepo).Once()
		f.outboxRepo.On("Create", ctx, mock.AnythingOfType("*outbox.Message")).Return(nil).Once()

		entry, err := f.svc.Withdraw(ctx, walletID, ownerID, amountOf(t, "50.00"))
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusSuccess, entry.Status)
		assert.True(t, entry.Amount.Equal(amountOf(t, "50.00")))

		f.registry.AssertExpectations(t)
		f.store.AssertExpectations(t)
		f.outboxRepo.AssertExpectations(t)
	})

	t.Run("LocksWalletBeforeCheckingFunds", func(t *testing.T) {
		f := newTxFixture()
		f.registry.On("GetByID", ctx, walletID).Return(&wallet.Wallet{ID: walletID, OwnerID: ownerID}, nil).Once()
		f.registry.On("WithTx", mock.Anything).Return(f.registry)

		lockErr := errors.New("lock wait timeout")
		f.registry.On("Lock", ctx, walletID).Return(lockErr).Once()

		_, err := f.svc.Withdraw(ctx, walletID, ownerID, amountOf(t, "10.00"))
		assert.ErrorIs(t, err, lockErr)

		// Without the row lock the balance read could race a concurrent
		// withdrawal, so a failed lock must stop everything downstream.
		f.store.AssertNotCalled(t, "SumByOperation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("RejectsForeignWallet", func(t *testing.T) {
		f := newTxFixture()
		f.registry.On("GetByID", ctx, walletID).Return(&wallet.Wallet{ID: walletID, OwnerID: uuid.New()}, nil).Once()

		_, err := f.svc.Withdraw(ctx, walletID, ownerID, amountOf(t, "10.00"))
		assert.ErrorIs(t, err, wallet.ErrNotOwner)
	})

	t.Run("TransactionFailureSurfacesAndWritesNothing", func(t *testing.T) {
		f := newTxFixture()
		f.db.err = errors.New("serialization failure")
		f.registry.On("GetByID", ctx, walletID).Return(&wallet.Wallet{ID: walletID, OwnerID: ownerID}, nil).Once()

		_, err := f.svc.Withdraw(ctx, walletID, ownerID, amountOf(t, "10.00"))
		assert.ErrorIs(t, err, f.db.err)
		f.store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})
}

func TestTransactionService_Transfer(t *testing.T) {
	ctx := context.Background()
	sourceWalletID := uuid.New()
	sourceOwnerID := uuid.New()
	targetOwnerID := uuid.New()
	amount := amountOf(t, "25.00")

	t.Run("AppendsThreeLegsAndPublishes", func(t *testing.T) {
		f := newTxFixture()
		targetWalletID := uuid.New()

		f.registry.On("GetByID", ctx, sourceWalletID).Return(&wallet.Wallet{ID: sourceWalletID, OwnerID: sourceOwnerID}, nil).Once()
		f.registry.On("GetByOwner", ctx, targetOwnerID).Return(&wallet.Wallet{ID: targetWalletID, OwnerID: targetOwnerID}, nil).Once()

		var appended []*ledger.Entry
		f.store.On("Append", ctx, mock.MatchedBy(func(entries []*ledger.Entry) bool {
			appended = entries
			return len(entries) == 3
		})).Return(nil).Once()

		f.transfers.On("Publish", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("shared.SettlementMessage")).Return(nil).Once()

		correlationID, err := f.svc.Transfer(ctx, sourceWalletID, sourceOwnerID, targetOwnerID, amount)
		require.NoError(t, err)

		require.Len(t, appended, 3)
		for _, leg := range appended {
			assert.Equal(t, correlationID, leg.CorrelationID)
			assert.Equal(t, ledger.StatusProcessing, leg.Status)
		}
		f.transfers.AssertCalled(t, "Publish", ctx, correlationID.String(), shared.SettlementMessage{CorrelationID: correlationID})
		f.deposits.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("RejectsTransferToSameUser", func(t *testing.T) {
		f := newTxFixture()

		_, err := f.svc.Transfer(ctx, sourceWalletID, sourceOwnerID, sourceOwnerID, amount)
		assert.ErrorIs(t, err, TransferError{})
		f.registry.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
		f.store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("RejectsForeignSourceWallet", func(t *testing.T) {
		f := newTxFixture()
		f.registry.On("GetByID", ctx, sourceWalletID).Return(&wallet.Wallet{ID: sourceWalletID, OwnerID: uuid.New()}, nil).Once()

		_, err := f.svc.Transfer(ctx, sourceWalletID, sourceOwnerID, targetOwnerID, amount)
		assert.ErrorIs(t, err, TransferError{Reason: "wallet does not belong to the requesting user"})
		f.store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("UnknownRecipient", func(t *testing.T) {
		f := newTxFixture()
		f.registry.On("GetByID", ctx, sourceWalletID).Return(&wallet.Wallet{ID: sourceWalletID, OwnerID: sourceOwnerID}, nil).Once()
		f.registry.On("GetByOwner", ctx, targetOwnerID).Return(nil, wallet.ErrWalletNotFound{OwnerID: targetOwnerID}).Once()

		_, err := f.svc.Transfer(ctx, sourceWalletID, sourceOwnerID, targetOwnerID, amount)
		assert.ErrorIs(t, err, wallet.ErrWalletNotFound{})
	})

	t.Run("PublishFailureStillReturnsCorrelationID", func(t *testing.T) {
		f := newTxFixture()
		f.registry.On("GetByID", ctx, sourceWalletID).Return(&wallet.Wallet{ID: sourceWalletID, OwnerID: sourceOwnerID}, nil).Once()
		f.registry.On("GetByOwner", ctx, targetOwnerID).Return(&wallet.Wallet{ID: uuid.New(), OwnerID: targetOwnerID}, nil).Once()
		f.store.On("Append", ctx, mock.Anything).Return(nil).Once()
		f.transfers.On("Publish", ctx, mock.Anything, mock.Anything).Return(shared.ErrQueuePublish).Once()

		correlationID, err := f.svc.Transfer(ctx, sourceWalletID, sourceOwnerID, targetOwnerID, amount)
		assert.ErrorIs(t, err, shared.ErrQueuePublish)
		assert.NotEqual(t, uuid.Nil, correlationID)
	})
}

func TestTransactionService_GetOperation(t *testing.T) {
	ctx := context.Background()
	f := newTxFixture()
	correlationID := uuid.New()
	legs := ledger.TransferLegs(correlationID, uuid.New(), uuid.New(), amountOf(t, "5.00"))

	f.store.On("FindByCorrelationID", ctx, correlationID).Return(legs, nil).Once()

	got, err := f.svc.GetOperation(ctx, correlationID)
	require.NoError(t, err)
	assert.Equal(t, legs, got)
}
