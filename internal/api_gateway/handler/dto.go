package handler

// CreateWalletRequest represents a request to create a wallet
type CreateWalletRequest struct {
	OwnerID string `json:"owner_id" binding:"required,uuid"`
}

// WalletResponse represents a wallet in API responses
type WalletResponse struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	CreatedAt string `json:"created_at"`
}

// DepositRequest represents a request to deposit into a wallet
type DepositRequest struct {
	OwnerID string `json:"owner_id" binding:"required,uuid"`
	Amount  string `json:"amount" binding:"required"`
}

// WithdrawRequest represents a request to withdraw from a wallet
type WithdrawRequest struct {
	OwnerID string `json:"owner_id" binding:"required,uuid"`
	Amount  string `json:"amount" binding:"required"`
}

// TransferRequest represents a request to transfer between two owners
type TransferRequest struct {
	SourceOwnerID string `json:"source_owner_id" binding:"required,uuid"`
	TargetOwnerID string `json:"target_owner_id" binding:"required,uuid"`
	Amount        string `json:"amount" binding:"required"`
}

// OperationAcceptedResponse acknowledges an asynchronous saga. The legs are
// committed in PROCESSING state; settlement happens later.
type OperationAcceptedResponse struct {
	CorrelationID string `json:"correlation_id"`
	Status        string `json:"status"`
}

// EntryResponse represents one ledger leg in API responses
type EntryResponse struct {
	ID             string `json:"id"`
	CorrelationID  string `json:"correlation_id"`
	SourceWalletID string `json:"source_wallet_id,omitempty"`
	TargetWalletID string `json:"target_wallet_id,omitempty"`
	Operation      string `json:"operation"`
	Amount         string `json:"amount"`
	Status         string `json:"status"`
	ErrorMessage   string `json:"error_message,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// BalanceResponse represents a ledger-derived balance in API responses
type BalanceResponse struct {
	WalletID string `json:"wallet_id"`
	Balance  string `json:"balance"`
	AsOf     string `json:"as_of"`
}
