package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func newTestAggregator(t *testing.T, repo *storage.Repository, rates RateSource) *BudgetAggregator {
	t.Helper()
	agg := NewBudgetAggregator(repo, rates)
	agg.now = func() time.Time {
		return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	}
	return agg
}

func mustCreateExpenseRow(t *testing.T, q *storage.Queries, userID, accountID, currency string, cents int64, categoryID string, at time.Time) {
	t.Helper()
	ctx := context.Background()
	txn := core.Transaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		FromAccountID: &accountID,
		Amount:        core.Money{Cents: cents},
		Currency:      currency,
		Kind:          core.TransactionExpense,
		CreatedAt:     at,
	}
	if err := q.CreateTransaction(ctx, txn); err != nil {
		t.Fatal(err)
	}
	if err := q.AttachTransactionCategory(ctx, txn.ID, categoryID); err != nil {
		t.Fatal(err)
	}
}

func TestRecomputeSumsCurrentMonth(t *testing.T) {
	_, repo := newTestService(t, &fakeRates{snap: ronSnapshot()})
	agg := newTestAggregator(t, repo, &fakeRates{snap: ronSnapshot()})
	ctx := context.Background()
	q := repo.Queries()

	acc := mustCreateAccount(t, repo, core.Account{UserID: "u1", Currency: "RON", Balance: core.Money{Cents: 0}})
	cat := core.Category{ID: uuid.NewString(), Name: "food", Kind: core.CategorySystem}
	if err := q.CreateCategory(ctx, cat); err != nil {
		t.Fatal(err)
	}
	budget := core.Budget{
		ID:          uuid.NewString(),
		UserID:      "u1",
		Name:        "Food",
		Limit:       core.Money{Cents: 100000},
		Currency:    "RON",
		CategoryIDs: []string{cat.ID},
	}
	if err := q.CreateBudget(ctx, budget); err != nil {
		t.Fatal(err)
	}

	inMonth := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2024, 2, 28, 9, 0, 0, 0, time.UTC)
	mustCreateExpenseRow(t, q, "u1", acc.ID, "RON", 2500, cat.ID, inMonth)
	mustCreateExpenseRow(t, q, "u1", acc.ID, "RON", 1000, cat.ID, inMonth)
	// Out of window, must not count.
	mustCreateExpenseRow(t, q, "u1", acc.ID, "RON", 99999, cat.ID, lastMonth)
	// Another user's expense, must not count.
	mustCreateExpenseRow(t, q, "u2", acc.ID, "RON", 5000, cat.ID, inMonth)

	spent, err := agg.Recompute(ctx, budget.ID)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if spent.Cents != 3500 {
		t.Errorf("spent = %d, want 3500", spent.Cents)
	}

	got, err := q.GetBudget(ctx, budget.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentSpent.Cents != 3500 {
		t.Errorf("stored spent = %d, want 3500", got.CurrentSpent.Cents)
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	_, repo := newTestService(t, &fakeRates{snap: ronSnapshot()})
	agg := newTestAggregator(t, repo, &fakeRates{snap: ronSnapshot()})
	ctx := context.Background()
	q := repo.Queries()

	acc := mustCreateAccount(t, repo, core.Account{UserID: "u1", Currency: "RON", Balance: core.Money{Cents: 0}})
	cat := core.Category{ID: uuid.NewString(), Name: "food", Kind: core.CategorySystem}
	if err := q.CreateCategory(ctx, cat); err != nil {
		t.Fatal(err)
	}
	budget := core.Budget{
		ID:          uuid.NewString(),
		UserID:      "u1",
		Name:        "Food",
		Limit:       core.Money{Cents: 100000},
		Currency:    "RON",
		CategoryIDs: []string{cat.ID},
	}
	if err := q.CreateBudget(ctx, budget); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	mustCreateExpenseRow(t, q, "u1", acc.ID, "RON", 2500, cat.ID, at)

	first, err := agg.Recompute(ctx, budget.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := agg.Recompute(ctx, budget.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("recompute not idempotent: %d then %d", first.Cents, second.Cents)
	}
	if first.Cents != 2500 {
		t.Errorf("spent = %d, want 2500", first.Cents)
	}
}

func TestRecomputeConvertsIntoBudgetCurrency(t *testing.T) {
	_, repo := newTestService(t, &fakeRates{snap: ronSnapshot()})
	agg := newTestAggregator(t, repo, &fakeRates{snap: ronSnapshot()})
	ctx := context.Background()
	q := repo.Queries()

	acc := mustCreateAccount(t, repo, core.Account{UserID: "u1", Currency: "RON", Balance: core.Money{Cents: 0}})
	cat := core.Category{ID: uuid.NewString(), Name: "travel", Kind: core.CategorySystem}
	if err := q.CreateCategory(ctx, cat); err != nil {
		t.Fatal(err)
	}
	budget := core.Budget{
		ID:          uuid.NewString(),
		UserID:      "u1",
		Name:        "Travel",
		Limit:       core.Money{Cents: 50000},
		Currency:    "EUR",
		CategoryIDs: []string{cat.ID},
	}
	if err := q.CreateBudget(ctx, budget); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	// 100 RON at 5 RON/EUR is 20 EUR.
	mustCreateExpenseRow(t, q, "u1", acc.ID, "RON", 10000, cat.ID, at)

	spent, err := agg.Recompute(ctx, budget.ID)
	if err != nil {
		t.Fatal(err)
	}
	if spent.Cents != 2000 {
		t.Errorf("spent = %d EUR cents, want 2000", spent.Cents)
	}
}

func TestRecomputeSkipsUnconvertibleTransactions(t *testing.T) {
	_, repo := newTestService(t, &fakeRates{snap: ronSnapshot()})
	agg := newTestAggregator(t, repo, &fakeRates{snap: ronSnapshot()})
	ctx := context.Background()
	q := repo.Queries()

	acc := mustCreateAccount(t, repo, core.Account{UserID: "u1", Currency: "RON", Balance: core.Money{Cents: 0}})
	cat := core.Category{ID: uuid.NewString(), Name: "misc", Kind: core.CategorySystem}
	if err := q.CreateCategory(ctx, cat); err != nil {
		t.Fatal(err)
	}
	budget := core.Budget{
		ID:          uuid.NewString(),
		UserID:      "u1",
		Name:        "Misc",
		Limit:       core.Money{Cents: 100000},
		Currency:    "RON",
		CategoryIDs: []string{cat.ID},
	}
	if err := q.CreateBudget(ctx, budget); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	mustCreateExpenseRow(t, q, "u1", acc.ID, "RON", 2500, cat.ID, at)
	// JPY is not in the snapshot; this one is skipped, not fatal.
	mustCreateExpenseRow(t, q, "u1", acc.ID, "JPY", 77777, cat.ID, at)

	spent, err := agg.Recompute(ctx, budget.ID)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if spent.Cents != 2500 {
		t.Errorf("spent = %d, want 2500 (unconvertible skipped)", spent.Cents)
	}
}

func TestRecomputeConvergesWithInlineIncrements(t *testing.T) {
	svc, repo := newTestService(t, &fakeRates{snap: ronSnapshot()})
	agg := newTestAggregator(t, repo, &fakeRates{snap: ronSnapshot()})
	ctx := context.Background()
	q := repo.Queries()

	acc := mustCreateAccount(t, repo, core.Account{UserID: "u1", Currency: "RON", Balance: core.Money{Cents: 100000}})
	cat := core.Category{ID: uuid.NewString(), Name: "food", Kind: core.CategorySystem}
	if err := q.CreateCategory(ctx, cat); err != nil {
		t.Fatal(err)
	}
	budget := core.Budget{
		ID:          uuid.NewString(),
		UserID:      "u1",
		Name:        "Food",
		Limit:       core.Money{Cents: 100000},
		Currency:    "EUR",
		CategoryIDs: []string{cat.ID},
	}
	if err := q.CreateBudget(ctx, budget); err != nil {
		t.Fatal(err)
	}

	for _, cents := range []int64{10000, 2500, 4000} {
		if _, err := svc.CreateExpense(ctx, MovementParams{
			UserID:      "u1",
			AccountID:   acc.ID,
			Amount:      core.Money{Cents: cents},
			Currency:    "RON",
			CategoryIDs: []string{cat.ID},
		}); err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
	}

	inline, err := q.GetBudget(ctx, budget.ID)
	if err != nil {
		t.Fatal(err)
	}
	recomputed, err := agg.Recompute(ctx, budget.ID)
	if err != nil {
		t.Fatal(err)
	}
	if inline.CurrentSpent != recomputed {
		t.Errorf("inline spent %d diverges from recomputed %d", inline.CurrentSpent.Cents, recomputed.Cents)
	}
	// 165 RON at 5 RON/EUR is 33 EUR.
	if recomputed.Cents != 3300 {
		t.Errorf("spent = %d EUR cents, want 3300", recomputed.Cents)
	}
}

func TestMonthWindow(t *testing.T) {
	from, to := monthWindow(time.Date(2024, 3, 15, 23, 45, 0, 0, time.UTC))
	if !from.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("from = %v", from)
	}
	if !to.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("to = %v", to)
	}

	// December rolls into the next year.
	from, to = monthWindow(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC))
	if !from.Equal(time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("from = %v", from)
	}
	if !to.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("to = %v", to)
	}
}
