// Package archive_poller ships terminal ledger entries from the archive
// outbox to the MongoDB audit archive.
package archive_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wallet-ledger/internal/domain/ledger"
	"github.com/wallet-ledger/internal/domain/outbox"
)

// Archiver is the slice of the MongoDB archive repository the publisher
// needs. Duplicate archiving must be a no-op.
type Archiver interface {
	Archive(ctx context.Context, entry *ledger.Entry) error
}

// ArchivePublisher processes one outbox message into the archive
type ArchivePublisher interface {
	PublishToArchive(ctx context.Context, message *outbox.Message) error
}

// ArchivePublisherImpl implements ArchivePublisher
type ArchivePublisherImpl struct {
	outboxRepo  outbox.Repository
	archiveRepo Archiver
	logger      *slog.Logger
}

// NewArchivePublisher creates a new publisher
func NewArchivePublisher(
	outboxRepo outbox.Repository,
	archiveRepo Archiver,
	logger *slog.Logger,
) ArchivePublisher {
	return &ArchivePublisherImpl{
		outboxRepo:  outboxRepo,
		archiveRepo: archiveRepo,
		logger:      logger,
	}
}

// PublishToArchive decodes the outbox payload, writes it to the archive, and
// marks the outbox row processed
func (p *ArchivePublisherImpl) PublishToArchive(ctx context.Context, message *outbox.Message) error {
	entry, err := message.Entry()
	if err != nil {
		p.logger.Error("Failed to decode ledger entry from outbox payload",
			"outbox_id", message.ID, "entry_id", message.EntryID.String(), "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, outbox.StatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to mark outbox message FAILED_TO_PUBLISH after decode error",
				"outbox_id", message.ID, "update_error", updateErr,
			)
		}
		return fmt.Errorf("decode payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger.With("correlation_id", entry.CorrelationID.String())

	if err := p.archiveRepo.Archive(ctx, entry); err != nil {
		return fmt.Errorf("failed to archive entry %s: %w", entry.ID.String(), err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, outbox.StatusProcessed); err != nil {
		logger.Error("Archive write succeeded but failed to mark outbox message PROCESSED",
			"outbox_id", message.ID, "error", err,
		)
		return fmt.Errorf("archive for %s OK, but failed to mark outbox %d as PROCESSED: %w", entry.ID.String(), message.ID, err)
	}

	logger.Debug("Outbox message archived", "outbox_id", message.ID, "entry_id", entry.ID.String())
	return nil
}
