// Package ledger mutates account balances and appends the audit history.
//
// Apply always runs on the caller's transaction-bound Queries and never opens
// its own: the balance write and the history entry must commit or roll back
// together, and only the enclosing operation knows the full atomic unit.
// Business validation (funds sufficiency, ownership) is the caller's job.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Change describes one balance mutation. Amount is a magnitude; Credit
// decides the sign.
type Change struct {
	AccountID     string
	Amount        core.Money
	Credit        bool
	Reason        core.BalanceChangeReason
	Description   string
	TransactionID *string
	At            time.Time
}

// Result reports the balances around the mutation.
type Result struct {
	Previous core.Money
	New      core.Money
}

// Apply reads the account under the enclosing transaction's isolation,
// writes the new balance and appends one history entry.
func Apply(ctx context.Context, q *storage.Queries, ch Change) (Result, error) {
	acc, err := q.GetAccountByID(ctx, ch.AccountID)
	if err != nil {
		return Result{}, fmt.Errorf("load account %s: %w", ch.AccountID, err)
	}

	delta := ch.Amount.Abs()
	if !ch.Credit {
		delta = delta.Neg()
	}
	previous := acc.Balance
	next := previous.Add(delta)

	if err := q.UpdateAccountBalance(ctx, ch.AccountID, next); err != nil {
		return Result{}, fmt.Errorf("write balance: %w", err)
	}

	at := ch.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	entry := core.BalanceHistoryEntry{
		ID:            uuid.NewString(),
		AccountID:     ch.AccountID,
		TransactionID: ch.TransactionID,
		Previous:      previous,
		New:           next,
		Delta:         delta,
		Reason:        ch.Reason,
		Currency:      acc.Currency,
		Description:   ch.Description,
		CreatedAt:     at,
	}
	if err := q.CreateBalanceHistory(ctx, entry); err != nil {
		return Result{}, fmt.Errorf("append balance history: %w", err)
	}

	return Result{Previous: previous, New: next}, nil
}
