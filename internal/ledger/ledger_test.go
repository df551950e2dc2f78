package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func setup(t *testing.T, balanceCents int64) (*storage.Repository, core.Account) {
	t.Helper()
	repo, err := storage.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	acc := core.Account{
		ID:        uuid.NewString(),
		UserID:    "u1",
		Kind:      core.AccountDefault,
		Currency:  "RON",
		Balance:   core.Money{Cents: balanceCents},
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Queries().CreateAccount(context.Background(), acc); err != nil {
		t.Fatal(err)
	}
	return repo, acc
}

func TestApplyCreditAndDebit(t *testing.T) {
	repo, acc := setup(t, 10000)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(q *storage.Queries) error {
		res, err := Apply(ctx, q, Change{
			AccountID:   acc.ID,
			Amount:      core.Money{Cents: 2500},
			Credit:      true,
			Reason:      core.ReasonIncome,
			Description: "salary",
		})
		if err != nil {
			return err
		}
		if res.Previous.Cents != 10000 || res.New.Cents != 12500 {
			t.Errorf("credit result = %+v, want 10000 -> 12500", res)
		}

		res, err = Apply(ctx, q, Change{
			AccountID:   acc.ID,
			Amount:      core.Money{Cents: 500},
			Credit:      false,
			Reason:      core.ReasonExpense,
			Description: "coffee",
		})
		if err != nil {
			return err
		}
		if res.Previous.Cents != 12500 || res.New.Cents != 12000 {
			t.Errorf("debit result = %+v, want 12500 -> 12000", res)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	got, err := repo.Queries().GetAccountByID(ctx, acc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Balance.Cents != 12000 {
		t.Errorf("stored balance = %d, want 12000", got.Balance.Cents)
	}
}

func TestApplyWritesHistoryEntry(t *testing.T) {
	repo, acc := setup(t, 10000)
	ctx := context.Background()

	txID := uuid.NewString()
	err := repo.WithTx(ctx, func(q *storage.Queries) error {
		_, err := Apply(ctx, q, Change{
			AccountID:     acc.ID,
			Amount:        core.Money{Cents: 3000},
			Credit:        false,
			Reason:        core.ReasonExpense,
			Description:   "rent",
			TransactionID: &txID,
		})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := repo.Queries().ListBalanceHistory(ctx, acc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Previous.Cents != 10000 || e.New.Cents != 7000 || e.Delta.Cents != -3000 {
		t.Errorf("entry amounts = prev %d new %d delta %d", e.Previous.Cents, e.New.Cents, e.Delta.Cents)
	}
	if e.Reason != core.ReasonExpense || e.Currency != "RON" || e.Description != "rent" {
		t.Errorf("entry metadata wrong: %+v", e)
	}
	if e.TransactionID == nil || *e.TransactionID != txID {
		t.Errorf("entry transaction id = %v, want %s", e.TransactionID, txID)
	}
}

func TestBalanceConservation(t *testing.T) {
	const initial = 50000
	repo, acc := setup(t, initial)
	ctx := context.Background()

	changes := []Change{
		{AccountID: acc.ID, Amount: core.Money{Cents: 1200}, Credit: false, Reason: core.ReasonExpense},
		{AccountID: acc.ID, Amount: core.Money{Cents: 80000}, Credit: true, Reason: core.ReasonIncome},
		{AccountID: acc.ID, Amount: core.Money{Cents: 999}, Credit: false, Reason: core.ReasonTransferOut},
		{AccountID: acc.ID, Amount: core.Money{Cents: 45}, Credit: true, Reason: core.ReasonTransferIn},
		{AccountID: acc.ID, Amount: core.Money{Cents: 30000}, Credit: false, Reason: core.ReasonExpense},
	}
	for _, ch := range changes {
		err := repo.WithTx(ctx, func(q *storage.Queries) error {
			_, err := Apply(ctx, q, ch)
			return err
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	entries, err := repo.Queries().ListBalanceHistory(ctx, acc.ID)
	if err != nil {
		t.Fatal(err)
	}
	var deltaSum int64
	for _, e := range entries {
		deltaSum += e.Delta.Cents
		if e.New.Cents-e.Previous.Cents != e.Delta.Cents {
			t.Errorf("entry %s: delta %d does not match %d -> %d", e.ID, e.Delta.Cents, e.Previous.Cents, e.New.Cents)
		}
	}

	got, err := repo.Queries().GetAccountByID(ctx, acc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Balance.Cents != initial+deltaSum {
		t.Errorf("balance %d != creation balance %d + delta sum %d", got.Balance.Cents, int64(initial), deltaSum)
	}
}
