package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/rates"
	"fintrack/internal/storage"
)

// RateSource yields the current rate snapshot. The production implementation
// is the rates.Provider; tests substitute a fixed snapshot.
type RateSource interface {
	Snapshot(ctx context.Context) (core.RateSnapshot, error)
}

// MovementService orchestrates every money movement. Each operation runs as
// one database transaction: the transaction row, every ledger write, category
// attachment and budget increments commit or roll back together. Errors are
// surfaced to the caller unmodified and never retried here.
type MovementService struct {
	repo   *storage.Repository
	rates  RateSource
	events *amqp.Client
	now    func() time.Time
}

func NewMovementService(repo *storage.Repository, rateSource RateSource, events *amqp.Client) *MovementService {
	return &MovementService{
		repo:   repo,
		rates:  rateSource,
		events: events,
		now:    time.Now,
	}
}

// MovementParams drives single-account operations (expense, income).
type MovementParams struct {
	UserID      string
	AccountID   string
	Amount      core.Money
	Currency    string
	CategoryIDs []string
	Description string
}

func (p MovementParams) validate() error {
	if strings.TrimSpace(p.UserID) == "" || strings.TrimSpace(p.AccountID) == "" {
		return fmt.Errorf("%w: missing user or account id", core.ErrValidation)
	}
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if !core.ValidCurrency(p.Currency) {
		return fmt.Errorf("%w: %q", core.ErrValidation, p.Currency)
	}
	for _, id := range p.CategoryIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: empty category id", core.ErrValidation)
		}
	}
	return nil
}

// TransferParams drives two-account operations.
type TransferParams struct {
	UserID        string
	FromAccountID string
	ToAccountID   string
	Amount        core.Money
	Currency      string
	Description   string
}

func (p TransferParams) validate() error {
	if strings.TrimSpace(p.UserID) == "" ||
		strings.TrimSpace(p.FromAccountID) == "" || strings.TrimSpace(p.ToAccountID) == "" {
		return fmt.Errorf("%w: missing user or account id", core.ErrValidation)
	}
	if p.FromAccountID == p.ToAccountID {
		return fmt.Errorf("%w: transfer accounts must be distinct", core.ErrValidation)
	}
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if !core.ValidCurrency(p.Currency) {
		return fmt.Errorf("%w: %q", core.ErrValidation, p.Currency)
	}
	return nil
}

// RecurringExecParams drives the execution of one due recurring record.
type RecurringExecParams struct {
	UserID      string
	RecurringID string
	AccountID   string
	Amount      core.Money
	Currency    string
	CategoryIDs []string
	Description string
}

func (p RecurringExecParams) movement() MovementParams {
	return MovementParams{
		UserID:      p.UserID,
		AccountID:   p.AccountID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		CategoryIDs: p.CategoryIDs,
		Description: p.Description,
	}
}

// CreateExpense debits the source account. The funds check happens against
// the amount converted into the account's native currency, inside the same
// transaction as the debit, so concurrent expenses cannot both spend the
// same balance.
func (s *MovementService) CreateExpense(ctx context.Context, p MovementParams) (core.Transaction, error) {
	if err := p.validate(); err != nil {
		return core.Transaction{}, err
	}

	snap := s.lazySnapshot()
	var txn core.Transaction
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		txn, err = s.applyExpense(ctx, q, p, snap)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}
	s.publishRecorded(ctx, txn)
	return txn, nil
}

// AddFunds credits the destination account. No funds check applies.
func (s *MovementService) AddFunds(ctx context.Context, p MovementParams) (core.Transaction, error) {
	if err := p.validate(); err != nil {
		return core.Transaction{}, err
	}

	snap := s.lazySnapshot()
	var txn core.Transaction
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		txn, err = s.applyIncome(ctx, q, p, snap)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}
	s.publishRecorded(ctx, txn)
	return txn, nil
}

// TransferFunds moves money between two of the user's accounts. Each leg is
// converted into its own account's currency independently, so the two legs
// may carry different magnitudes; the transfer is currency-correct per
// account rather than magnitude-symmetric.
func (s *MovementService) TransferFunds(ctx context.Context, p TransferParams) (core.Transaction, error) {
	return s.transfer(ctx, p, core.AccountKind(""))
}

// AddFundsToSavings transfers from a default account into a savings account
// and flips the savings completion flag once the target is reached.
func (s *MovementService) AddFundsToSavings(ctx context.Context, p TransferParams) (core.Transaction, error) {
	return s.transfer(ctx, p, core.AccountSavings)
}

// WithdrawFromSavings transfers out of a savings account. The completion
// flag is one-way: dropping below the target does not reset it.
func (s *MovementService) WithdrawFromSavings(ctx context.Context, p TransferParams) (core.Transaction, error) {
	txn, err := s.transferChecked(ctx, p, func(from, to core.Account) error {
		if from.Kind != core.AccountSavings {
			return fmt.Errorf("%w: source is not a savings account", core.ErrValidation)
		}
		return nil
	})
	return txn, err
}

// ExecuteRecurringPayment runs one due recurring bill: the expense itself
// plus the schedule advancement, in a single atomic unit. The engine does
// not deduplicate repeated invocations; at-most-once triggering per due date
// is the external scheduler's contract.
func (s *MovementService) ExecuteRecurringPayment(ctx context.Context, p RecurringExecParams) (core.Transaction, error) {
	return s.executeRecurring(ctx, p, core.TransactionExpense)
}

// ExecuteRecurringIncome runs one due recurring income.
func (s *MovementService) ExecuteRecurringIncome(ctx context.Context, p RecurringExecParams) (core.Transaction, error) {
	return s.executeRecurring(ctx, p, core.TransactionIncome)
}

// AdjustBalance sets an account's balance directly, recording the delta as a
// manual adjustment. No transaction row is created.
func (s *MovementService) AdjustBalance(ctx context.Context, userID, accountID string, newBalance core.Money, description string) (ledger.Result, error) {
	var res ledger.Result
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		acc, err := q.GetAccountForUser(ctx, accountID, userID)
		if err != nil {
			return err
		}
		delta := newBalance.Sub(acc.Balance)
		if delta.IsZero() {
			res = ledger.Result{Previous: acc.Balance, New: acc.Balance}
			return nil
		}
		res, err = ledger.Apply(ctx, q, ledger.Change{
			AccountID:   accountID,
			Amount:      delta.Abs(),
			Credit:      delta.IsPositive(),
			Reason:      core.ReasonManualAdjustment,
			Description: description,
			At:          s.now().UTC(),
		})
		return err
	})
	return res, err
}

func (s *MovementService) executeRecurring(ctx context.Context, p RecurringExecParams, kind core.TransactionKind) (core.Transaction, error) {
	mp := p.movement()
	if err := mp.validate(); err != nil {
		return core.Transaction{}, err
	}
	if strings.TrimSpace(p.RecurringID) == "" {
		return core.Transaction{}, fmt.Errorf("%w: missing recurring id", core.ErrValidation)
	}

	snap := s.lazySnapshot()
	var txn core.Transaction
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		rec, err := q.GetRecurringForUser(ctx, p.RecurringID, p.UserID)
		if err != nil {
			return err
		}

		if kind == core.TransactionExpense {
			txn, err = s.applyExpense(ctx, q, mp, snap)
		} else {
			txn, err = s.applyIncome(ctx, q, mp, snap)
		}
		if err != nil {
			return err
		}

		now := s.now().UTC()
		adv := Advance(rec.Frequency, rec.NextExecution, now)
		if adv.Terminal {
			return q.TerminateRecurring(ctx, rec.ID, now)
		}
		return q.UpdateRecurringNextExecution(ctx, rec.ID, *adv.NextExecution)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	s.publishRecorded(ctx, txn)
	return txn, nil
}

func (s *MovementService) applyExpense(ctx context.Context, q *storage.Queries, p MovementParams, snap *lazySnapshot) (core.Transaction, error) {
	acc, err := q.GetAccountForUser(ctx, p.AccountID, p.UserID)
	if err != nil {
		return core.Transaction{}, err
	}

	debit, err := convertLazy(ctx, snap, p.Amount, p.Currency, acc.Currency)
	if err != nil {
		return core.Transaction{}, err
	}
	if acc.Balance.LessThan(debit) {
		return core.Transaction{}, core.ErrInsufficientFunds
	}

	now := s.now().UTC()
	txn := core.Transaction{
		ID:            uuid.NewString(),
		UserID:        p.UserID,
		FromAccountID: &p.AccountID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Kind:          core.TransactionExpense,
		CreatedAt:     now,
	}
	if err := q.CreateTransaction(ctx, txn); err != nil {
		return core.Transaction{}, err
	}
	if txn.CategoryIDs, err = s.attachCategories(ctx, q, txn.ID, p.UserID, p.CategoryIDs); err != nil {
		return core.Transaction{}, err
	}

	if _, err := ledger.Apply(ctx, q, ledger.Change{
		AccountID:     p.AccountID,
		Amount:        debit,
		Credit:        false,
		Reason:        core.ReasonExpense,
		Description:   p.Description,
		TransactionID: &txn.ID,
		At:            now,
	}); err != nil {
		return core.Transaction{}, err
	}

	if err := s.incrementBudgets(ctx, q, p, snap); err != nil {
		return core.Transaction{}, err
	}
	return txn, nil
}

func (s *MovementService) applyIncome(ctx context.Context, q *storage.Queries, p MovementParams, snap *lazySnapshot) (core.Transaction, error) {
	acc, err := q.GetAccountForUser(ctx, p.AccountID, p.UserID)
	if err != nil {
		return core.Transaction{}, err
	}

	credit, err := convertLazy(ctx, snap, p.Amount, p.Currency, acc.Currency)
	if err != nil {
		return core.Transaction{}, err
	}

	now := s.now().UTC()
	txn := core.Transaction{
		ID:          uuid.NewString(),
		UserID:      p.UserID,
		ToAccountID: &p.AccountID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Kind:        core.TransactionIncome,
		CreatedAt:   now,
	}
	if err := q.CreateTransaction(ctx, txn); err != nil {
		return core.Transaction{}, err
	}
	if txn.CategoryIDs, err = s.attachCategories(ctx, q, txn.ID, p.UserID, p.CategoryIDs); err != nil {
		return core.Transaction{}, err
	}

	res, err := ledger.Apply(ctx, q, ledger.Change{
		AccountID:     p.AccountID,
		Amount:        credit,
		Credit:        true,
		Reason:        core.ReasonIncome,
		Description:   p.Description,
		TransactionID: &txn.ID,
		At:            now,
	})
	if err != nil {
		return core.Transaction{}, err
	}

	if err := s.maybeCompleteSavings(ctx, q, acc, res.New); err != nil {
		return core.Transaction{}, err
	}
	return txn, nil
}

func (s *MovementService) transfer(ctx context.Context, p TransferParams, requireToKind core.AccountKind) (core.Transaction, error) {
	return s.transferChecked(ctx, p, func(from, to core.Account) error {
		if requireToKind != "" && to.Kind != requireToKind {
			return fmt.Errorf("%w: destination is not a %s account", core.ErrValidation, requireToKind)
		}
		return nil
	})
}

func (s *MovementService) transferChecked(ctx context.Context, p TransferParams, check func(from, to core.Account) error) (core.Transaction, error) {
	if err := p.validate(); err != nil {
		return core.Transaction{}, err
	}

	snap := s.lazySnapshot()
	var txn core.Transaction
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		from, err := q.GetAccountForUser(ctx, p.FromAccountID, p.UserID)
		if err != nil {
			return err
		}
		to, err := q.GetAccountForUser(ctx, p.ToAccountID, p.UserID)
		if err != nil {
			return err
		}
		if err := check(from, to); err != nil {
			return err
		}

		// Each leg converts into its own account's currency; the funds
		// check runs in the source account's native currency.
		debit, err := convertLazy(ctx, snap, p.Amount, p.Currency, from.Currency)
		if err != nil {
			return err
		}
		if from.Balance.LessThan(debit) {
			return core.ErrInsufficientFunds
		}
		credit, err := convertLazy(ctx, snap, p.Amount, p.Currency, to.Currency)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		txn = core.Transaction{
			ID:            uuid.NewString(),
			UserID:        p.UserID,
			FromAccountID: &p.FromAccountID,
			ToAccountID:   &p.ToAccountID,
			Amount:        p.Amount,
			Currency:      p.Currency,
			Kind:          core.TransactionTransfer,
			CreatedAt:     now,
		}
		if err := q.CreateTransaction(ctx, txn); err != nil {
			return err
		}

		if _, err := ledger.Apply(ctx, q, ledger.Change{
			AccountID:     p.FromAccountID,
			Amount:        debit,
			Credit:        false,
			Reason:        core.ReasonTransferOut,
			Description:   p.Description,
			TransactionID: &txn.ID,
			At:            now,
		}); err != nil {
			return err
		}
		res, err := ledger.Apply(ctx, q, ledger.Change{
			AccountID:     p.ToAccountID,
			Amount:        credit,
			Credit:        true,
			Reason:        core.ReasonTransferIn,
			Description:   p.Description,
			TransactionID: &txn.ID,
			At:            now,
		})
		if err != nil {
			return err
		}

		return s.maybeCompleteSavings(ctx, q, to, res.New)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	s.publishRecorded(ctx, txn)
	return txn, nil
}

// attachCategories validates every category against the caller before
// attaching: it must be system-wide or owned by the user.
func (s *MovementService) attachCategories(ctx context.Context, q *storage.Queries, transactionID, userID string, categoryIDs []string) ([]string, error) {
	attached := make([]string, 0, len(categoryIDs))
	for _, catID := range categoryIDs {
		cat, err := q.GetCategory(ctx, catID)
		if err != nil {
			return nil, err
		}
		if !cat.VisibleTo(userID) {
			return nil, fmt.Errorf("%w: %s", core.ErrInvalidCategory, catID)
		}
		if err := q.AttachTransactionCategory(ctx, transactionID, catID); err != nil {
			return nil, err
		}
		attached = append(attached, catID)
	}
	return attached, nil
}

// incrementBudgets adds the expense to every budget whose category set
// intersects the attached categories, converted into that budget's currency.
// A budget whose currency cannot be converted is skipped with a warning, the
// same best-effort rule the recompute sweep applies, so both paths converge.
func (s *MovementService) incrementBudgets(ctx context.Context, q *storage.Queries, p MovementParams, snap *lazySnapshot) error {
	budgets, err := q.ListBudgetsByCategories(ctx, p.UserID, p.CategoryIDs)
	if err != nil {
		return err
	}
	for _, b := range budgets {
		spent, err := convertLazy(ctx, snap, p.Amount, p.Currency, b.Currency)
		if err != nil {
			slog.WarnContext(ctx, "Skipping budget increment, conversion unavailable",
				"budget_id", b.ID,
				"from", p.Currency,
				"to", b.Currency,
				"error", err)
			continue
		}
		if err := q.IncrementBudgetSpent(ctx, b.ID, spent); err != nil {
			return err
		}
	}
	return nil
}

func (s *MovementService) maybeCompleteSavings(ctx context.Context, q *storage.Queries, acc core.Account, newBalance core.Money) error {
	if acc.Kind != core.AccountSavings || acc.SavingsCompleted || acc.SavingsTarget.Cents <= 0 {
		return nil
	}
	if newBalance.LessThan(acc.SavingsTarget) {
		return nil
	}
	slog.InfoContext(ctx, "Savings target reached",
		"account_id", acc.ID,
		"target_cents", acc.SavingsTarget.Cents,
		"balance_cents", newBalance.Cents)
	return q.MarkSavingsCompleted(ctx, acc.ID)
}

func (s *MovementService) publishRecorded(ctx context.Context, txn core.Transaction) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTransactionRecorded(ctx, amqp.NewTransactionRecordedMessage(txn.ID, txn.UserID, string(txn.Kind))); err != nil {
		// Best effort, as with the async sync pipeline: the movement has
		// committed and must not fail because the broker is down.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"transaction_id", txn.ID,
			"error", err)
	}
}

// lazySnapshot defers the rate fetch until a conversion actually needs it,
// so same-currency operations keep working through a rate-source outage.
type lazySnapshot struct {
	source RateSource
	snap   core.RateSnapshot
	loaded bool
}

func (s *MovementService) lazySnapshot() *lazySnapshot {
	return &lazySnapshot{source: s.rates}
}

func (l *lazySnapshot) get(ctx context.Context) (core.RateSnapshot, error) {
	if l.loaded {
		return l.snap, nil
	}
	snap, err := l.source.Snapshot(ctx)
	if err != nil {
		return core.RateSnapshot{}, err
	}
	l.snap = snap
	l.loaded = true
	return snap, nil
}

func convertLazy(ctx context.Context, snap *lazySnapshot, amount core.Money, from, to string) (core.Money, error) {
	if from == to {
		return amount, nil
	}
	sn, err := snap.get(ctx)
	if err != nil {
		return core.Money{}, err
	}
	return rates.Convert(amount, from, to, sn)
}
