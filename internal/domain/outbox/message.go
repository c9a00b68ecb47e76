// Package outbox implements the transactional outbox feeding the MongoDB
// audit archive. Rows are written in the same database transaction that makes
// a ledger entry terminal, then shipped asynchronously by the archive poller.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/wallet-ledger/internal/domain/ledger"
)

// Status defines archive publishing states
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusProcessed       Status = "PROCESSED"
	StatusFailedToPublish Status = "FAILED_TO_PUBLISH"
)

// Message stores a terminal ledger entry awaiting archival
type Message struct {
	ID            int64           `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	EntryID       uuid.UUID       `json:"entry_id"`
	Payload       json.RawMessage `json:"payload"`
	Status        Status          `json:"status"`
	Attempts      int             `json:"attempts"`
	CreatedAt     time.Time       `json:"created_at"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
}

// NewMessage wraps a terminal ledger entry into a pending archive message
func NewMessage(entry *ledger.Entry) (*Message, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}

	return &Message{
		CorrelationID: entry.CorrelationID,
		EntryID:       entry.ID,
		Payload:       payload,
		Status:        StatusPending,
		Attempts:      0,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Entry extracts the ledger entry from the payload
func (m *Message) Entry() (*ledger.Entry, error) {
	var entry ledger.Entry
	if err := json.Unmarshal(m.Payload, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
