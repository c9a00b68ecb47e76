// Package mongo persists the audit archive of terminal ledger entries.
// The archive is a denormalized mirror fed by the outbox poller; the
// PostgreSQL ledger remains the source of truth.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wallet-ledger/internal/domain/ledger"
)

const (
	// ArchiveCollectionName is the name of the archive collection in MongoDB
	ArchiveCollectionName = "ledger_archive"
)

// ArchiveRepository stores archived ledger entries in MongoDB
type ArchiveRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewArchiveRepository creates a new MongoDB archive repository
func NewArchiveRepository(logger *slog.Logger, db *mongo.Database) *ArchiveRepository {
	return &ArchiveRepository{
		db:     db,
		logger: logger,
	}
}

// Archive stores a terminal ledger entry. A unique index on the entry id
// makes redelivery by the poller safe; duplicate inserts are treated as
// success.
func (r *ArchiveRepository) Archive(ctx context.Context, entry *ledger.Entry) error {
	collection := r.db.Collection(ArchiveCollectionName)

	doc := bson.M{
		"_id":            entry.ID,
		"correlation_id": entry.CorrelationID,
		"operation":      entry.Operation,
		"amount":         entry.Amount.String(),
		"status":         entry.Status,
		"error_message":  entry.ErrorMessage,
		"created_at":     entry.CreatedAt,
	}
	if entry.SourceWalletID != nil {
		doc["source_wallet_id"] = *entry.SourceWalletID
	}
	if entry.TargetWalletID != nil {
		doc["target_wallet_id"] = *entry.TargetWalletID
	}

	_, err := collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		r.logger.Error("Failed to archive ledger entry",
			"entry_id", entry.ID.String(),
			"error", err)
		return fmt.Errorf("failed to archive ledger entry: %w", err)
	}

	return nil
}

// GetByEntryID retrieves an archived entry by its ledger id.
// Returns nil when the entry has not been archived.
func (r *ArchiveRepository) GetByEntryID(ctx context.Context, entryID uuid.UUID) (bson.M, error) {
	collection := r.db.Collection(ArchiveCollectionName)

	var doc bson.M
	err := collection.FindOne(ctx, bson.M{"_id": entryID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		r.logger.Error("Failed to get archived entry",
			"entry_id", entryID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get archived entry: %w", err)
	}

	return doc, nil
}

// GetByCorrelationID retrieves all archived legs of one logical operation,
// oldest first
func (r *ArchiveRepository) GetByCorrelationID(ctx context.Context, correlationID uuid.UUID) ([]bson.M, error) {
	collection := r.db.Collection(ArchiveCollectionName)

	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cursor, err := collection.Find(ctx, bson.M{"correlation_id": correlationID}, opts)
	if err != nil {
		r.logger.Error("Failed to query archived entries",
			"correlation_id", correlationID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to query archived entries: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode archived entries: %w", err)
	}

	return docs, nil
}
