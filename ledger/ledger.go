/*
Package ledger defines the comp-time / leave-balance ledger contract.

PURPOSE:
  The reconciliation calculator credits confirmed overtime here, and the
  auto-grant scheduler issues recurring leave grants here. Both callers
  supply an idempotency key derived from the triggering record and a
  monotonic version, so a retried call never double-applies: an
  implementation must treat a replayed key as an already-applied success.

  The SQLite implementation appends immutable rows with a UNIQUE
  idempotency key and performs the write inside the caller's transaction,
  so a credit/grant commits atomically with the state transition that
  triggered it.

SEE ALSO:
  - store/sqlite/ledger.go: the append-only implementation
  - reconcile/calculator.go, leavegrant/service.go: the two callers
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timekeeping/timeutil"
)

// Kind distinguishes ledger transaction types.
type Kind string

const (
	KindOvertimeCredit Kind = "overtime_credit"
	KindLeaveGrant     Kind = "leave_grant"
)

// Transaction is one immutable ledger row.
type Transaction struct {
	ID             string
	UserID         string
	Kind           Kind
	LeaveType      string          // set for leave grants
	AmountSeconds  int64           // set for overtime credits
	AmountDays     decimal.Decimal // set for leave grants
	IdempotencyKey string
	CreatedAt      time.Time
}

// Ledger is the balance collaborator. Both methods are exactly-once per
// idempotency key: replaying a key succeeds without applying again.
type Ledger interface {
	CreditOvertime(ctx context.Context, userID string, amount timeutil.HMS, idempotencyKey string) error
	GrantLeave(ctx context.Context, userID, leaveType string, days decimal.Decimal, idempotencyKey string) error
}
