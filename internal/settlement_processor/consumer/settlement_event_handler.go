package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/wallet-ledger/internal/domain/shared"
	"github.com/wallet-ledger/internal/platform/messaging/producers"
	"github.com/wallet-ledger/internal/settlement_processor/service"
)

// SettlementEventHandler handles incoming settlement messages from Kafka.
// The same handler serves both the deposit and transfer topics; the message
// only carries a correlation id either way.
type SettlementEventHandler struct {
	settlementService service.SettlementService
	producer          producers.DeadLetterPublisher
	logger            *slog.Logger
}

// NewSettlementEventHandler creates a new handler
func NewSettlementEventHandler(
	logger *slog.Logger,
	settlementService service.SettlementService,
	producer producers.DeadLetterPublisher,
) *SettlementEventHandler {
	return &SettlementEventHandler{
		settlementService: settlementService,
		producer:          producer,
		logger:            logger,
	}
}

// HandleMessage decodes a settlement message and settles its correlation
// group. Malformed messages go to the DLQ and are acknowledged; settlement
// errors are returned so the message is redelivered.
func (h *SettlementEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var msg shared.SettlementMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return h.deadLetter(ctx, key, value, fmt.Sprintf("failed to unmarshal settlement message: %s", err.Error()), err)
	}
	if msg.CorrelationID == uuid.Nil {
		return h.deadLetter(ctx, key, value, "settlement message has no correlation id", fmt.Errorf("missing correlation id"))
	}

	logger := h.logger.With("correlation_id", msg.CorrelationID.String())
	logger.Info("Received settlement message")

	if err := h.settlementService.Settle(ctx, msg.CorrelationID); err != nil {
		logger.Error("Failed to settle correlation group", "error", err)
		return fmt.Errorf("settling %s failed: %w", msg.CorrelationID.String(), err)
	}

	return nil // Success, commit offset
}

// deadLetter routes an unprocessable message to the DLQ. When the DLQ write
// itself fails the original error is returned so Kafka redelivers.
func (h *SettlementEventHandler) deadLetter(ctx context.Context, key, value []byte, reason string, cause error) error {
	h.logger.Error("Unprocessable settlement message",
		"message_key", string(key),
		"reason", reason,
	)

	if h.producer == nil {
		return fmt.Errorf("unprocessable settlement message and no DLQ configured: %w", cause)
	}

	if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, reason); dlqErr != nil {
		h.logger.Error("Failed to publish message to DLQ",
			"dlq_error", dlqErr,
			"original_error", cause,
			"message_key", string(key),
		)
		return fmt.Errorf("dlq publish failed: %w", cause)
	}

	// Message handled, commit offset
	return nil
}
