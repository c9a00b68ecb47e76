package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wallet-ledger/internal/balance"
	"github.com/wallet-ledger/internal/domain/wallet"
)

// WalletServiceImpl implements the WalletService interface
type WalletServiceImpl struct {
	registry wallet.Registry
	engine   *balance.Engine
	logger   *slog.Logger
}

// NewWalletService creates a new wallet service
func NewWalletService(logger *slog.Logger, registry wallet.Registry, engine *balance.Engine) WalletService {
	return &WalletServiceImpl{
		registry: registry,
		engine:   engine,
		logger:   logger,
	}
}

// CreateWallet creates a wallet for the owner, returning the existing one if
// the owner already has a wallet
func (s *WalletServiceImpl) CreateWallet(ctx context.Context, ownerID uuid.UUID) (*wallet.Wallet, error) {
	w, err := s.registry.Create(ctx, ownerID)
	if err != nil {
		s.logger.Error("Failed to create wallet", "owner_id", ownerID.String(), "error", err)
		return nil, err
	}

	s.logger.Info("Wallet ready", "wallet_id", w.ID.String(), "owner_id", ownerID.String())
	return w, nil
}

// GetWallet retrieves a wallet by its ID
func (s *WalletServiceImpl) GetWallet(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	return s.registry.GetByID(ctx, id)
}

// CurrentBalance returns the wallet's present ledger-derived balance
func (s *WalletServiceImpl) CurrentBalance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	return s.engine.Current(ctx, walletID)
}

// HistoricalBalance returns the wallet's balance as of the given instant
func (s *WalletServiceImpl) HistoricalBalance(ctx context.Context, walletID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	return s.engine.HistoricalAt(ctx, walletID, asOf)
}
