package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/wallet-ledger/internal/domain/ledger"
	"github.com/wallet-ledger/internal/domain/money"
	"github.com/wallet-ledger/internal/platform/persistence"
)

// LedgerRepository implements the ledger.Store interface for PostgreSQL.
// Entries are append-only; the only mutation ever issued is the conditional
// status advance in AdvanceStatus.
type LedgerRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Store {
	return &LedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic
// operations across multiple repository calls
func (r *LedgerRepository) WithTx(tx pgx.Tx) ledger.Store {
	return &LedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Append atomically persists a batch of entries with a single multi-row
// insert. Each entry is validated first so that a malformed leg can never
// reach the ledger. Amounts travel as text and are cast to NUMERIC by the
// database.
func (r *LedgerRepository) Append(ctx context.Context, entries []*ledger.Entry) error {
	if len(entries) == 0 {
		return ledger.WriteError{Op: "append", Err: fmt.Errorf("empty entry batch")}
	}

	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return ledger.WriteError{Op: "append", Err: err}
		}
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`INSERT INTO ledger_entries (id, correlation_id, source_wallet_id, target_wallet_id, operation, amount, current_status, error_message, created_at) VALUES `)
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 9
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d::numeric, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9)
		args = append(args,
			e.ID,
			e.CorrelationID,
			e.SourceWalletID,
			e.TargetWalletID,
			e.Operation,
			e.Amount.String(),
			e.Status,
			e.ErrorMessage,
			e.CreatedAt,
		)
	}

	if _, err := r.querier.Exec(ctx, sb.String(), args...); err != nil {
		r.logger.Error("Failed to append ledger entries",
			"correlation_id", entries[0].CorrelationID.String(),
			"legs", len(entries),
			"error", err,
		)
		return ledger.WriteError{Op: "append", Err: err}
	}

	return nil
}

// FindByCorrelationID returns all legs of one logical operation, ordered by
// creation time
func (r *LedgerRepository) FindByCorrelationID(ctx context.Context, correlationID uuid.UUID) ([]*ledger.Entry, error) {
	query := `
		SELECT id, correlation_id, source_wallet_id, target_wallet_id, operation, amount::text, current_status, error_message, created_at
		FROM ledger_entries
		WHERE correlation_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.querier.Query(ctx, query, correlationID)
	if err != nil {
		r.logger.Error("Failed to find ledger entries", "correlation_id", correlationID.String(), "error", err)
		return nil, fmt.Errorf("failed to find ledger entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// AdvanceStatus conditionally moves entries from one status to another in a
// single compare-and-swap update. The returned count is the number of rows
// that actually transitioned; zero means a concurrent settler got there first.
func (r *LedgerRepository) AdvanceStatus(ctx context.Context, ids []uuid.UUID, from, to ledger.Status, errorMessage string) (int64, error) {
	query := `
		UPDATE ledger_entries
		SET current_status = $1, error_message = $2
		WHERE id = ANY($3) AND current_status = $4
	`

	result, err := r.querier.Exec(ctx, query, to, errorMessage, ids, from)
	if err != nil {
		r.logger.Error("Failed to advance ledger entry status",
			"from", string(from),
			"to", string(to),
			"error", err,
		)
		return 0, ledger.WriteError{Op: "advance_status", Err: err}
	}

	return result.RowsAffected(), nil
}

// SumByOperation sums SUCCESS-status amounts of one operation for a wallet up
// to asOf. Deposit legs carry the wallet as target, withdrawal and transfer
// legs as source. The WITHDRAW and DEPOSIT legs of a settled transfer are
// excluded: a transfer's balance effect is carried entirely by its TRANSFER
// leg (sent and received terms), so counting its sibling legs too would
// debit the source and credit the target twice. The exclusion matches any
// entry whose correlation group contains a TRANSFER leg other than itself,
// which leaves standalone deposits, standalone withdrawals, and the TRANSFER
// leg proper unaffected.
func (r *LedgerRepository) SumByOperation(ctx context.Context, walletID uuid.UUID, op ledger.Operation, asOf time.Time) (decimal.Decimal, error) {
	walletColumn := "source_wallet_id"
	if op == ledger.OperationDeposit {
		walletColumn = "target_wallet_id"
	}

	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(amount), 0)::text
		FROM ledger_entries e
		WHERE e.%s = $1 AND e.operation = $2 AND e.current_status = $3 AND e.created_at <= $4
		AND NOT EXISTS (
			SELECT 1 FROM ledger_entries t
			WHERE t.correlation_id = e.correlation_id AND t.operation = $5 AND t.id <> e.id
		)
	`, walletColumn)

	return r.scanSum(ctx, query, walletID, op, ledger.StatusSuccess, asOf, ledger.OperationTransfer)
}

// SumReceivedTransfers sums SUCCESS-status transfer amounts credited to the
// wallet up to asOf
func (r *LedgerRepository) SumReceivedTransfers(ctx context.Context, walletID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM ledger_entries
		WHERE target_wallet_id = $1 AND operation = $2 AND current_status = $3 AND created_at <= $4
	`

	return r.scanSum(ctx, query, walletID, ledger.OperationTransfer, ledger.StatusSuccess, asOf)
}

// FindStaleProcessing returns correlation groups whose legs have been stuck in
// PROCESSING since before the deadline, oldest first
func (r *LedgerRepository) FindStaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]ledger.StaleGroup, error) {
	query := `
		SELECT correlation_id, COUNT(*), MIN(created_at)
		FROM ledger_entries
		WHERE current_status = $1 AND created_at < $2
		GROUP BY correlation_id
		ORDER BY MIN(created_at) ASC
		LIMIT $3
	`

	rows, err := r.querier.Query(ctx, query, ledger.StatusProcessing, olderThan, limit)
	if err != nil {
		r.logger.Error("Failed to find stale processing entries", "error", err)
		return nil, fmt.Errorf("failed to find stale processing entries: %w", err)
	}
	defer rows.Close()

	var groups []ledger.StaleGroup
	for rows.Next() {
		var g ledger.StaleGroup
		if err := rows.Scan(&g.CorrelationID, &g.Legs, &g.OldestCreated); err != nil {
			r.logger.Error("Failed to scan stale group", "error", err)
			return nil, fmt.Errorf("failed to scan stale group: %w", err)
		}
		groups = append(groups, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over stale groups: %w", err)
	}

	return groups, nil
}

func (r *LedgerRepository) scanSum(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	var raw string
	if err := r.querier.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		r.logger.Error("Failed to sum ledger entries", "error", err)
		return decimal.Zero, fmt.Errorf("failed to sum ledger entries: %w", err)
	}

	sum, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse ledger sum %q: %w", raw, err)
	}

	return sum, nil
}

func scanEntries(rows pgx.Rows) ([]*ledger.Entry, error) {
	var entries []*ledger.Entry
	for rows.Next() {
		var (
			e      ledger.Entry
			rawAmt string
		)
		err := rows.Scan(
			&e.ID,
			&e.CorrelationID,
			&e.SourceWalletID,
			&e.TargetWalletID,
			&e.Operation,
			&rawAmt,
			&e.Status,
			&e.ErrorMessage,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}

		amount, err := money.Parse(rawAmt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ledger entry amount %q: %w", rawAmt, err)
		}
		e.Amount = amount

		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over ledger entries: %w", err)
	}

	return entries, nil
}
