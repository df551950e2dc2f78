package services

import (
	"context"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/rates"
	"fintrack/internal/storage"
)

// BudgetAggregator recomputes a budget's cached spend from source data. The
// cache is incremented inline by the movement engine on every categorized
// expense; this full recompute runs when a budget's category set or currency
// changes, and both paths converge on the same result for the same inputs.
type BudgetAggregator struct {
	repo  *storage.Repository
	rates RateSource
	now   func() time.Time
}

func NewBudgetAggregator(repo *storage.Repository, rateSource RateSource) *BudgetAggregator {
	return &BudgetAggregator{
		repo:  repo,
		rates: rateSource,
		now:   time.Now,
	}
}

// Recompute rebuilds currentSpent from the budget's owner's expense
// transactions of the current calendar month whose categories intersect the
// budget's, converted into the budget's currency. Transactions whose
// currency is missing from the snapshot are skipped with a warning rather
// than failing the sweep.
func (a *BudgetAggregator) Recompute(ctx context.Context, budgetID string) (core.Money, error) {
	budget, err := a.repo.Queries().GetBudget(ctx, budgetID)
	if err != nil {
		return core.Money{}, err
	}

	snap, err := a.rates.Snapshot(ctx)
	if err != nil {
		return core.Money{}, err
	}

	from, to := monthWindow(a.now())
	expenses, err := a.repo.Queries().ListExpensesByCategories(ctx, budget.UserID, budget.CategoryIDs, from, to)
	if err != nil {
		return core.Money{}, err
	}

	var spent core.Money
	skipped := 0
	for _, txn := range expenses {
		contribution, err := rates.Convert(txn.Amount.Abs(), txn.Currency, budget.Currency, snap)
		if err != nil {
			skipped++
			slog.WarnContext(ctx, "Skipping transaction in budget recompute, conversion unavailable",
				"budget_id", budget.ID,
				"transaction_id", txn.ID,
				"from", txn.Currency,
				"to", budget.Currency)
			continue
		}
		spent = spent.Add(contribution)
	}

	if err := a.repo.Queries().SetBudgetSpent(ctx, budget.ID, spent); err != nil {
		return core.Money{}, err
	}

	slog.InfoContext(ctx, "Budget recomputed",
		"budget_id", budget.ID,
		"spent_cents", spent.Cents,
		"transactions", len(expenses),
		"skipped", skipped)

	return spent, nil
}

// monthWindow returns the current calendar month as [first instant of the
// month, first instant of the next month).
func monthWindow(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}
