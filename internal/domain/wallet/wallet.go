package wallet

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrNotOwner          = errors.New("wallet does not belong to the requesting user")
	ErrInsufficientFunds = errors.New("insufficient funds for withdrawal")
)

// Wallet holds the identity of a user's single wallet. Balance is not a field:
// it is derived from the ledger (see the balance package).
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// New creates a wallet for the given owner
func New(ownerID uuid.UUID) *Wallet {
	return &Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}
}

// OwnedBy reports whether the wallet belongs to the given owner
func (w *Wallet) OwnedBy(ownerID uuid.UUID) bool {
	return w.OwnerID == ownerID
}
