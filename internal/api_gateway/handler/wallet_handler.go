package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wallet-ledger/internal/api_gateway/service"
	"github.com/wallet-ledger/internal/domain/wallet"
)

// WalletHandler handles HTTP requests for wallet and balance operations
type WalletHandler struct {
	walletService service.WalletService
	logger        *slog.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(logger *slog.Logger, walletService service.WalletService) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		logger:        logger,
	}
}

// Create handles wallet creation. Creating a wallet for an owner that already
// has one returns the existing wallet.
func (h *WalletHandler) Create(c *gin.Context) {
	var req CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		RespondBadRequest(c, "Invalid owner ID")
		return
	}

	w, err := h.walletService.CreateWallet(c.Request.Context(), ownerID)
	if err != nil {
		h.logger.Error("Failed to create wallet", "owner_id", req.OwnerID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, mapWalletToResponse(w))
}

// GetByID retrieves a wallet by its ID, returning 404 if not found
func (h *WalletHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid wallet ID")
		return
	}

	w, err := h.walletService.GetWallet(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound{}) {
			RespondNotFound(c, "Wallet not found")
			return
		}
		h.logger.Error("Failed to get wallet", "id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapWalletToResponse(w))
}

// GetBalance returns the wallet's current ledger-derived balance
func (h *WalletHandler) GetBalance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid wallet ID")
		return
	}

	balance, err := h.walletService.CurrentBalance(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound{}) {
			RespondNotFound(c, "Wallet not found")
			return
		}
		h.logger.Error("Failed to get balance", "wallet_id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, BalanceResponse{
		WalletID: id.String(),
		Balance:  balance.String(),
		AsOf:     time.Now().UTC().Format(time.RFC3339),
	})
}

// GetHistoricalBalance returns the wallet's balance as of the instant given
// by the required `at` query parameter (RFC 3339)
func (h *WalletHandler) GetHistoricalBalance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid wallet ID")
		return
	}

	atParam := c.Query("at")
	if atParam == "" {
		RespondBadRequest(c, "Query parameter 'at' is required")
		return
	}
	asOf, err := time.Parse(time.RFC3339, atParam)
	if err != nil {
		RespondBadRequest(c, "Query parameter 'at' must be an RFC 3339 timestamp")
		return
	}

	balance, err := h.walletService.HistoricalBalance(c.Request.Context(), id, asOf)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound{}) {
			RespondNotFound(c, "Wallet not found")
			return
		}
		h.logger.Error("Failed to get historical balance", "wallet_id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, BalanceResponse{
		WalletID: id.String(),
		Balance:  balance.String(),
		AsOf:     asOf.UTC().Format(time.RFC3339),
	})
}

// mapWalletToResponse maps a wallet entity to a wallet response DTO
func mapWalletToResponse(w *wallet.Wallet) WalletResponse {
	return WalletResponse{
		ID:        w.ID.String(),
		OwnerID:   w.OwnerID.String(),
		CreatedAt: w.CreatedAt.Format(time.RFC3339),
	}
}
