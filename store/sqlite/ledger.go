package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/timekeeping/ledger"
	"github.com/warp/timekeeping/timeutil"
)

// =============================================================================
// LEDGER FACET - implements ledger.Ledger (append-only)
// =============================================================================
// The reconciliation and settings facets reuse the same append helpers so
// credits and grants commit inside the caller's transaction.

// Ledger is the comp-time / leave-balance ledger facet.
type Ledger struct {
	s *Store
	q querier
}

// Ledger returns the facet implementing ledger.Ledger.
func (s *Store) Ledger() *Ledger { return &Ledger{s: s, q: s.db} }

func (l *Ledger) CreditOvertime(ctx context.Context, userID string, amount timeutil.HMS, idempotencyKey string) error {
	return creditOvertime(ctx, l.q, userID, amount, idempotencyKey)
}

func (l *Ledger) GrantLeave(ctx context.Context, userID, leaveType string, days decimal.Decimal, idempotencyKey string) error {
	return grantLeave(ctx, l.q, userID, leaveType, days, idempotencyKey)
}

// TransactionsForUser returns a user's ledger history, newest first.
func (l *Ledger) TransactionsForUser(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	query := `
		SELECT id, user_id, kind, leave_type, amount_seconds, amount_days,
		       idempotency_key, created_at
		FROM ledger_transactions
		WHERE user_id = ?
		ORDER BY created_at DESC
	`
	rows, err := l.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		var (
			tx         ledger.Transaction
			leaveType  *string
			amountDays string
			createdAt  string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Kind, &leaveType,
			&tx.AmountSeconds, &amountDays, &tx.IdempotencyKey, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		if leaveType != nil {
			tx.LeaveType = *leaveType
		}
		tx.AmountDays, _ = decimal.NewFromString(amountDays)
		tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// =============================================================================
// SHARED APPEND HELPERS (exactly-once via the UNIQUE idempotency key)
// =============================================================================

func creditOvertime(ctx context.Context, q querier, userID string, amount timeutil.HMS, idempotencyKey string) error {
	return appendLedgerRow(ctx, q, ledger.Transaction{
		ID:             uuid.NewString(),
		UserID:         userID,
		Kind:           ledger.KindOvertimeCredit,
		AmountSeconds:  amount.TotalSeconds(),
		AmountDays:     decimal.Zero,
		IdempotencyKey: idempotencyKey,
	})
}

func grantLeave(ctx context.Context, q querier, userID, leaveType string, days decimal.Decimal, idempotencyKey string) error {
	return appendLedgerRow(ctx, q, ledger.Transaction{
		ID:             uuid.NewString(),
		UserID:         userID,
		Kind:           ledger.KindLeaveGrant,
		LeaveType:      leaveType,
		AmountDays:     days,
		IdempotencyKey: idempotencyKey,
	})
}

func appendLedgerRow(ctx context.Context, q querier, tx ledger.Transaction) error {
	query := `
		INSERT INTO ledger_transactions
		(id, user_id, kind, leave_type, amount_seconds, amount_days, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		tx.ID,
		tx.UserID,
		string(tx.Kind),
		nullString(tx.LeaveType),
		tx.AmountSeconds,
		tx.AmountDays.String(),
		tx.IdempotencyKey,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		// A replayed idempotency key means the credit/grant was already
		// applied; that is a success, not a failure.
		if isUniqueConstraintError(err) && constraintTarget(err, "ledger_transactions.idempotency_key") {
			return nil
		}
		return fmt.Errorf("failed to append ledger transaction: %w", err)
	}
	return nil
}
