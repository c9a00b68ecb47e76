package components

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wallet-ledger/internal/domain/ledger"
	"github.com/wallet-ledger/internal/domain/money"
	"github.com/wallet-ledger/internal/domain/outbox"
	"github.com/wallet-ledger/internal/domain/wallet"
)

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

func componentTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func componentAmount(t *testing.T, raw string) money.Amount {
	t.Helper()
	a, err := money.Parse(raw)
	require.NoError(t, err)
	return a
}
