package storage

import (
	"context"
	"database/sql"
	"fmt"

	"fintrack/internal/core"
)

func (q *Queries) CreateBalanceHistory(ctx context.Context, e core.BalanceHistoryEntry) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO balance_history (id, account_id, transaction_id,
			previous_cents, new_cents, delta_cents, reason, currency, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AccountID, nullString(e.TransactionID),
		e.Previous.Cents, e.New.Cents, e.Delta.Cents,
		string(e.Reason), e.Currency, e.Description, encodeTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert balance history: %w", err)
	}
	return nil
}

func (q *Queries) ListBalanceHistory(ctx context.Context, accountID string) ([]core.BalanceHistoryEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, account_id, transaction_id, previous_cents, new_cents,
			delta_cents, reason, currency, description, created_at
		FROM balance_history
		WHERE account_id = ?
		ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list balance history: %w", err)
	}
	defer rows.Close()

	var out []core.BalanceHistoryEntry
	for rows.Next() {
		var (
			e             core.BalanceHistoryEntry
			transactionID sql.NullString
			prev, nw, d   int64
			reason        string
			createdAt     string
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &transactionID, &prev, &nw, &d,
			&reason, &e.Currency, &e.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scan balance history: %w", err)
		}
		e.TransactionID = stringPtr(transactionID)
		e.Previous = core.Money{Cents: prev}
		e.New = core.Money{Cents: nw}
		e.Delta = core.Money{Cents: d}
		e.Reason = core.BalanceChangeReason(reason)
		if e.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, fmt.Errorf("decode history created_at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
