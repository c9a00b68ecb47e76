// Package shared holds the types crossing the queue boundary between the API
// gateway and the settlement processor.
package shared

import (
	"errors"

	"github.com/google/uuid"
)

// ErrQueuePublish indicates a settlement message could not be published after
// its ledger legs were already committed in PROCESSING state. The legs are not
// lost: the reconciliation sweep re-publishes stale PROCESSING groups.
var ErrQueuePublish = errors.New("failed to publish settlement message")

// SettlementMessage is the queue payload for one saga: just the correlation id
// grouping its ledger legs. The consumer re-reads everything else from the
// ledger.
type SettlementMessage struct {
	CorrelationID uuid.UUID `json:"correlation_id"`
}
