package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
)

func (q *Queries) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, kind)
		VALUES (?, ?, ?, ?)`,
		c.ID, nullString(c.UserID), c.Name, string(c.Kind))
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (q *Queries) GetCategory(ctx context.Context, id string) (core.Category, error) {
	var (
		c      core.Category
		userID sql.NullString
		kind   string
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, kind FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &userID, &c.Name, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrInvalidCategory
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	c.UserID = stringPtr(userID)
	c.Kind = core.CategoryKind(kind)
	return c, nil
}
