package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
)

func (q *Queries) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO budgets (id, user_id, name, limit_cents, current_spent_cents, currency, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Name, b.Limit.Cents, b.CurrentSpent.Cents,
		b.Currency, encodeNullTime(b.DeletedAt))
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	for _, catID := range b.CategoryIDs {
		if _, err := q.db.ExecContext(ctx, `
			INSERT INTO budget_categories (budget_id, category_id)
			VALUES (?, ?)`, b.ID, catID); err != nil {
			return fmt.Errorf("attach budget category: %w", err)
		}
	}
	return nil
}

func (q *Queries) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, limit_cents, current_spent_cents, currency, deleted_at
		FROM budgets WHERE id = ? AND deleted_at IS NULL`, id)

	b, err := scanBudgetRow(row.Scan)
	if err != nil {
		return core.Budget{}, err
	}
	b.CategoryIDs, err = q.budgetCategoryIDs(ctx, id)
	if err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

// ListBudgetsByCategories returns the user's live budgets whose category set
// intersects categoryIDs, categories loaded.
func (q *Queries) ListBudgetsByCategories(ctx context.Context, userID string, categoryIDs []string) ([]core.Budget, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}

	args := []any{userID}
	for _, id := range categoryIDs {
		args = append(args, id)
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT DISTINCT b.id, b.user_id, b.name, b.limit_cents,
			b.current_spent_cents, b.currency, b.deleted_at
		FROM budgets b
		JOIN budget_categories bc ON bc.budget_id = b.id
		WHERE b.user_id = ? AND b.deleted_at IS NULL
			AND bc.category_id IN (`+placeholders(len(categoryIDs))+`)
		ORDER BY b.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets by categories: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudgetRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].CategoryIDs, err = q.budgetCategoryIDs(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// IncrementBudgetSpent adds delta to the cached spend in one statement, so
// concurrent expense creations on the same budget never lose an update.
func (q *Queries) IncrementBudgetSpent(ctx context.Context, id string, delta core.Money) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE budgets SET current_spent_cents = current_spent_cents + ?
		WHERE id = ? AND deleted_at IS NULL`, delta.Cents, id)
	if err != nil {
		return fmt.Errorf("increment budget spent: %w", err)
	}
	return requireRow(res)
}

func (q *Queries) SetBudgetSpent(ctx context.Context, id string, spent core.Money) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE budgets SET current_spent_cents = ?
		WHERE id = ? AND deleted_at IS NULL`, spent.Cents, id)
	if err != nil {
		return fmt.Errorf("set budget spent: %w", err)
	}
	return requireRow(res)
}

func (q *Queries) budgetCategoryIDs(ctx context.Context, budgetID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT category_id FROM budget_categories
		WHERE budget_id = ? ORDER BY category_id`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("list budget categories: %w", err)
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

func scanBudgetRow(scan func(dest ...any) error) (core.Budget, error) {
	var (
		b          core.Budget
		limitCents int64
		spentCents int64
		deletedAt  sql.NullString
	)
	err := scan(&b.ID, &b.UserID, &b.Name, &limitCents, &spentCents, &b.Currency, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.ErrBudgetNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("scan budget: %w", err)
	}
	b.Limit = core.Money{Cents: limitCents}
	b.CurrentSpent = core.Money{Cents: spentCents}
	if b.DeletedAt, err = decodeNullTime(deletedAt); err != nil {
		return core.Budget{}, fmt.Errorf("decode budget deleted_at: %w", err)
	}
	return b, nil
}
