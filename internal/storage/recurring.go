package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
)

const recurringColumns = `id, user_id, account_id, amount_cents, currency, kind,
	frequency, next_execution, active, auto_execute, notify, notify_lead_days, deleted_at`

func (q *Queries) CreateRecurringPayment(ctx context.Context, r core.RecurringPayment) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO recurring_payments (`+recurringColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.AccountID, r.Amount.Cents, r.Currency, string(r.Kind),
		string(r.Frequency), encodeNullTime(r.NextExecution), encodeBool(r.Active),
		encodeBool(r.AutoExecute), encodeBool(r.Notify), r.NotifyLeadDays,
		encodeNullTime(r.DeletedAt))
	if err != nil {
		return fmt.Errorf("insert recurring payment: %w", err)
	}
	for _, catID := range r.CategoryIDs {
		if _, err := q.db.ExecContext(ctx, `
			INSERT INTO recurring_categories (recurring_id, category_id)
			VALUES (?, ?)`, r.ID, catID); err != nil {
			return fmt.Errorf("attach recurring category: %w", err)
		}
	}
	return nil
}

func (q *Queries) GetRecurringForUser(ctx context.Context, id, userID string) (core.RecurringPayment, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+recurringColumns+` FROM recurring_payments
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`, id, userID)

	r, err := scanRecurringRow(row.Scan)
	if err != nil {
		return core.RecurringPayment{}, err
	}
	r.CategoryIDs, err = q.recurringCategoryIDs(ctx, id)
	if err != nil {
		return core.RecurringPayment{}, err
	}
	return r, nil
}

func (q *Queries) UpdateRecurringNextExecution(ctx context.Context, id string, next time.Time) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE recurring_payments SET next_execution = ?
		WHERE id = ? AND deleted_at IS NULL`, encodeTime(next), id)
	if err != nil {
		return fmt.Errorf("update recurring next execution: %w", err)
	}
	return requireRow(res)
}

// TerminateRecurring ends a one-shot record: the schedule is cleared and the
// row soft-deleted in one statement.
func (q *Queries) TerminateRecurring(ctx context.Context, id string, now time.Time) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE recurring_payments
		SET next_execution = NULL, active = 0, deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL`, encodeTime(now), id)
	if err != nil {
		return fmt.Errorf("terminate recurring payment: %w", err)
	}
	return requireRow(res)
}

// ListDueAutoExecute returns active auto-execute records whose schedule has
// come due, for the periodic sweep.
func (q *Queries) ListDueAutoExecute(ctx context.Context, now time.Time) ([]core.RecurringPayment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+recurringColumns+` FROM recurring_payments
		WHERE active = 1 AND auto_execute = 1 AND deleted_at IS NULL
			AND next_execution IS NOT NULL AND next_execution <= ?
		ORDER BY next_execution`, encodeTime(now))
	if err != nil {
		return nil, fmt.Errorf("list due recurring payments: %w", err)
	}
	return collectRecurring(ctx, q, rows)
}

// ListNotifiable returns active records with notifications enabled and a
// schedule still pending. Lead-window filtering happens in the caller.
func (q *Queries) ListNotifiable(ctx context.Context) ([]core.RecurringPayment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+recurringColumns+` FROM recurring_payments
		WHERE active = 1 AND notify = 1 AND deleted_at IS NULL
			AND next_execution IS NOT NULL
		ORDER BY next_execution`)
	if err != nil {
		return nil, fmt.Errorf("list notifiable recurring payments: %w", err)
	}
	return collectRecurring(ctx, q, rows)
}

func collectRecurring(ctx context.Context, q *Queries, rows *sql.Rows) ([]core.RecurringPayment, error) {
	defer rows.Close()

	var out []core.RecurringPayment
	for rows.Next() {
		r, err := scanRecurringRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		ids, err := q.recurringCategoryIDs(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].CategoryIDs = ids
	}
	return out, nil
}

func (q *Queries) recurringCategoryIDs(ctx context.Context, recurringID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT category_id FROM recurring_categories
		WHERE recurring_id = ? ORDER BY category_id`, recurringID)
	if err != nil {
		return nil, fmt.Errorf("list recurring categories: %w", err)
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

func scanRecurringRow(scan func(dest ...any) error) (core.RecurringPayment, error) {
	var (
		r          core.RecurringPayment
		cents      int64
		kind, freq string
		next       sql.NullString
		active     int64
		autoExec   int64
		notify     int64
		deletedAt  sql.NullString
	)
	err := scan(&r.ID, &r.UserID, &r.AccountID, &cents, &r.Currency, &kind,
		&freq, &next, &active, &autoExec, &notify, &r.NotifyLeadDays, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringPayment{}, core.ErrRecurringNotFound
	}
	if err != nil {
		return core.RecurringPayment{}, fmt.Errorf("scan recurring payment: %w", err)
	}

	r.Amount = core.Money{Cents: cents}
	r.Kind = core.TransactionKind(kind)
	r.Frequency = core.Frequency(freq)
	r.Active = active != 0
	r.AutoExecute = autoExec != 0
	r.Notify = notify != 0

	if r.NextExecution, err = decodeNullTime(next); err != nil {
		return core.RecurringPayment{}, fmt.Errorf("decode next execution: %w", err)
	}
	if r.DeletedAt, err = decodeNullTime(deletedAt); err != nil {
		return core.RecurringPayment{}, fmt.Errorf("decode recurring deleted_at: %w", err)
	}
	return r, nil
}
