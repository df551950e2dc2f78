package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
)

const transactionColumns = `id, user_id, from_account_id, to_account_id,
	amount_cents, currency, kind, created_at, deleted_at`

func (q *Queries) CreateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, nullString(t.FromAccountID), nullString(t.ToAccountID),
		t.Amount.Cents, t.Currency, string(t.Kind), encodeTime(t.CreatedAt),
		encodeNullTime(t.DeletedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (q *Queries) AttachTransactionCategory(ctx context.Context, transactionID, categoryID string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO transaction_categories (transaction_id, category_id)
		VALUES (?, ?)`, transactionID, categoryID)
	if err != nil {
		return fmt.Errorf("attach transaction category: %w", err)
	}
	return nil
}

func (q *Queries) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE id = ? AND deleted_at IS NULL`, id)

	t, err := scanTransactionRow(row.Scan)
	if err != nil {
		return core.Transaction{}, err
	}

	t.CategoryIDs, err = q.transactionCategoryIDs(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// ListExpensesByCategories returns a user's live expense transactions inside
// [from, to) whose categories intersect categoryIDs, each with its category
// set loaded. This feeds the budget recompute sweep.
func (q *Queries) ListExpensesByCategories(ctx context.Context, userID string, categoryIDs []string, from, to time.Time) ([]core.Transaction, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}

	args := []any{userID, encodeTime(from), encodeTime(to)}
	for _, id := range categoryIDs {
		args = append(args, id)
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT DISTINCT t.id, t.user_id, t.from_account_id, t.to_account_id,
			t.amount_cents, t.currency, t.kind, t.created_at, t.deleted_at
		FROM transactions t
		JOIN transaction_categories tc ON tc.transaction_id = t.id
		WHERE t.user_id = ?
			AND t.kind = 'EXPENSE'
			AND t.deleted_at IS NULL
			AND t.created_at >= ? AND t.created_at < ?
			AND tc.category_id IN (`+placeholders(len(categoryIDs))+`)
		ORDER BY t.created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses by categories: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransactionRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *Queries) transactionCategoryIDs(ctx context.Context, transactionID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT category_id FROM transaction_categories
		WHERE transaction_id = ? ORDER BY category_id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list transaction categories: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanTransactionRow(scan func(dest ...any) error) (core.Transaction, error) {
	var (
		t         core.Transaction
		from, to  sql.NullString
		cents     int64
		kind      string
		createdAt string
		deletedAt sql.NullString
	)
	err := scan(&t.ID, &t.UserID, &from, &to, &cents, &t.Currency, &kind, &createdAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, sql.ErrNoRows
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	t.FromAccountID = stringPtr(from)
	t.ToAccountID = stringPtr(to)
	t.Amount = core.Money{Cents: cents}
	t.Kind = core.TransactionKind(kind)

	if t.CreatedAt, err = decodeTime(createdAt); err != nil {
		return core.Transaction{}, fmt.Errorf("decode transaction created_at: %w", err)
	}
	if t.DeletedAt, err = decodeNullTime(deletedAt); err != nil {
		return core.Transaction{}, fmt.Errorf("decode transaction deleted_at: %w", err)
	}
	return t, nil
}
