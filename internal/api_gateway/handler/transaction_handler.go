package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wallet-ledger/internal/api_gateway/service"
	"github.com/wallet-ledger/internal/domain/ledger"
	"github.com/wallet-ledger/internal/domain/money"
	"github.com/wallet-ledger/internal/domain/shared"
	"github.com/wallet-ledger/internal/domain/wallet"
)

// TransactionHandler handles HTTP requests for balance-affecting operations
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// Deposit queues a deposit saga and responds 202 with its correlation id
func (h *TransactionHandler) Deposit(c *gin.Context) {
	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid wallet ID")
		return
	}

	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ownerID, amount, ok := h.parseOwnerAndAmount(c, req.OwnerID, req.Amount)
	if !ok {
		return
	}

	correlationID, err := h.transactionService.Deposit(c.Request.Context(), walletID, ownerID, amount)
	if err != nil {
		h.respondOperationError(c, err, correlationID)
		return
	}

	RespondAccepted(c, OperationAcceptedResponse{
		CorrelationID: correlationID.String(),
		Status:        string(ledger.StatusProcessing),
	})
}

// Withdraw settles a withdrawal inline and responds 200 with the terminal leg
func (h *TransactionHandler) Withdraw(c *gin.Context) {
	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid wallet ID")
		return
	}

	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ownerID, amount, ok := h.parseOwnerAndAmount(c, req.OwnerID, req.Amount)
	if !ok {
		return
	}

	entry, err := h.transactionService.Withdraw(c.Request.Context(), walletID, ownerID, amount)
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			RespondUnprocessable(c, "Insufficient funds")
			return
		}
		h.respondOperationError(c, err, uuid.Nil)
		return
	}

	RespondOK(c, mapEntryToResponse(entry))
}

// Transfer queues a three-leg transfer saga and responds 202 with its
// correlation id
func (h *TransactionHandler) Transfer(c *gin.Context) {
	sourceWalletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid wallet ID")
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	sourceOwnerID, amount, ok := h.parseOwnerAndAmount(c, req.SourceOwnerID, req.Amount)
	if !ok {
		return
	}
	targetOwnerID, err := uuid.Parse(req.TargetOwnerID)
	if err != nil {
		RespondBadRequest(c, "Invalid target owner ID")
		return
	}

	correlationID, err := h.transactionService.Transfer(c.Request.Context(), sourceWalletID, sourceOwnerID, targetOwnerID, amount)
	if err != nil {
		h.respondOperationError(c, err, correlationID)
		return
	}

	RespondAccepted(c, OperationAcceptedResponse{
		CorrelationID: correlationID.String(),
		Status:        string(ledger.StatusProcessing),
	})
}

// GetOperation returns all ledger legs recorded under a correlation id
func (h *TransactionHandler) GetOperation(c *gin.Context) {
	correlationID, err := uuid.Parse(c.Param("correlation_id"))
	if err != nil {
		RespondBadRequest(c, "Invalid correlation ID")
		return
	}

	entries, err := h.transactionService.GetOperation(c.Request.Context(), correlationID)
	if err != nil {
		h.logger.Error("Failed to get operation", "correlation_id", correlationID.String(), "error", err)
		RespondInternalError(c)
		return
	}
	if len(entries) == 0 {
		RespondNotFound(c, "Operation not found")
		return
	}

	responses := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, mapEntryToResponse(e))
	}
	RespondOK(c, responses)
}

// parseOwnerAndAmount validates the owner id and amount shared by all
// operation requests, responding 400 on failure
func (h *TransactionHandler) parseOwnerAndAmount(c *gin.Context, rawOwnerID, rawAmount string) (uuid.UUID, money.Amount, bool) {
	ownerID, err := uuid.Parse(rawOwnerID)
	if err != nil {
		RespondBadRequest(c, "Invalid owner ID")
		return uuid.Nil, money.Amount{}, false
	}

	amount, err := money.Parse(rawAmount)
	if err != nil {
		RespondBadRequest(c, "Invalid amount: must be a positive decimal with at most two decimal places")
		return uuid.Nil, money.Amount{}, false
	}

	return ownerID, amount, true
}

// respondOperationError maps domain errors to HTTP statuses. A queue publish
// failure after the legs were committed still reports the correlation id so
// the caller can poll the operation.
func (h *TransactionHandler) respondOperationError(c *gin.Context, err error, correlationID uuid.UUID) {
	var transferErr service.TransferError
	switch {
	case errors.Is(err, wallet.ErrWalletNotFound{}):
		RespondNotFound(c, "Wallet not found")
	case errors.Is(err, wallet.ErrNotOwner):
		RespondForbidden(c, "Wallet does not belong to the requesting user")
	case errors.As(err, &transferErr):
		RespondUnprocessable(c, transferErr.Error())
	case errors.Is(err, shared.ErrQueuePublish) && correlationID != uuid.Nil:
		h.logger.Warn("Settlement publish failed, legs await reconciliation",
			"correlation_id", correlationID.String(),
		)
		RespondAccepted(c, OperationAcceptedResponse{
			CorrelationID: correlationID.String(),
			Status:        string(ledger.StatusProcessing),
		})
	default:
		h.logger.Error("Operation failed", "error", err)
		RespondInternalError(c)
	}
}

// mapEntryToResponse maps a ledger entry to an entry response DTO
func mapEntryToResponse(e *ledger.Entry) EntryResponse {
	resp := EntryResponse{
		ID:            e.ID.String(),
		CorrelationID: e.CorrelationID.String(),
		Operation:     string(e.Operation),
		Amount:        e.Amount.String(),
		Status:        string(e.Status),
		ErrorMessage:  e.ErrorMessage,
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
	}
	if e.SourceWalletID != nil {
		resp.SourceWalletID = e.SourceWalletID.String()
	}
	if e.TargetWalletID != nil {
		resp.TargetWalletID = e.TargetWalletID.String()
	}
	return resp
}
