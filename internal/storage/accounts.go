package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
)

const accountColumns = `id, user_id, kind, currency, balance_cents,
	savings_target_cents, savings_target_due, savings_completed, created_at, deleted_at`

func (q *Queries) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, string(a.Kind), a.Currency, a.Balance.Cents,
		a.SavingsTarget.Cents, encodeNullTime(nonZeroTime(a.SavingsTargetDue)),
		encodeBool(a.SavingsCompleted), encodeTime(a.CreatedAt), encodeNullTime(a.DeletedAt))
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetAccountForUser loads a live account scoped by owner. A missing row and
// a row owned by someone else are indistinguishable to the caller.
func (q *Queries) GetAccountForUser(ctx context.Context, id, userID string) (core.Account, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`, id, userID)
	return scanAccount(row)
}

func (q *Queries) GetAccountByID(ctx context.Context, id string) (core.Account, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE id = ? AND deleted_at IS NULL`, id)
	return scanAccount(row)
}

func (q *Queries) UpdateAccountBalance(ctx context.Context, id string, balance core.Money) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = ? WHERE id = ?`, balance.Cents, id)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	return requireRow(res)
}

func (q *Queries) MarkSavingsCompleted(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET savings_completed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark savings completed: %w", err)
	}
	return requireRow(res)
}

func scanAccount(row *sql.Row) (core.Account, error) {
	var (
		a            core.Account
		kind         string
		targetDue    sql.NullString
		completed    int64
		createdAt    string
		deletedAt    sql.NullString
		balanceCents int64
		targetCents  int64
	)
	err := row.Scan(&a.ID, &a.UserID, &kind, &a.Currency, &balanceCents,
		&targetCents, &targetDue, &completed, &createdAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("scan account: %w", err)
	}

	a.Kind = core.AccountKind(kind)
	a.Balance = core.Money{Cents: balanceCents}
	a.SavingsTarget = core.Money{Cents: targetCents}
	a.SavingsCompleted = completed != 0

	if a.CreatedAt, err = decodeTime(createdAt); err != nil {
		return core.Account{}, fmt.Errorf("decode account created_at: %w", err)
	}
	if due, err := decodeNullTime(targetDue); err != nil {
		return core.Account{}, fmt.Errorf("decode savings target due: %w", err)
	} else if due != nil {
		a.SavingsTargetDue = *due
	}
	if a.DeletedAt, err = decodeNullTime(deletedAt); err != nil {
		return core.Account{}, fmt.Errorf("decode account deleted_at: %w", err)
	}
	return a, nil
}

func nonZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
