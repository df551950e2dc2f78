package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountDefault AccountKind = "DEFAULT"
	AccountSavings AccountKind = "SAVINGS"
)

const (
	TransactionExpense  TransactionKind = "EXPENSE"
	TransactionIncome   TransactionKind = "INCOME"
	TransactionTransfer TransactionKind = "TRANSFER"
)

const (
	ReasonExpense          BalanceChangeReason = "TRANSACTION_EXPENSE"
	ReasonIncome           BalanceChangeReason = "TRANSACTION_INCOME"
	ReasonTransferIn       BalanceChangeReason = "TRANSACTION_TRANSFER_IN"
	ReasonTransferOut      BalanceChangeReason = "TRANSACTION_TRANSFER_OUT"
	ReasonManualAdjustment BalanceChangeReason = "MANUAL_ADJUSTMENT"
)

const (
	Once      Frequency = "ONCE"
	Weekly    Frequency = "WEEKLY"
	Biweekly  Frequency = "BIWEEKLY"
	Monthly   Frequency = "MONTHLY"
	Quarterly Frequency = "QUARTERLY"
	Yearly    Frequency = "YEARLY"
	Custom    Frequency = "CUSTOM"
)

const (
	CategorySystem CategoryKind = "SYSTEM"
	CategoryUser   CategoryKind = "USER"
)

type (
	AccountKind         string
	TransactionKind     string
	BalanceChangeReason string
	Frequency           string
	CategoryKind        string

	// Account holds one user's balance in a single currency. Savings
	// accounts additionally carry a target; the completion flag flips once
	// the balance reaches the target and is never reset automatically.
	Account struct {
		ID               string
		UserID           string
		Kind             AccountKind
		Currency         string
		Balance          Money
		SavingsTarget    Money
		SavingsTargetDue time.Time
		SavingsCompleted bool
		CreatedAt        time.Time
		DeletedAt        *time.Time
	}

	// Transaction is one money movement. At least one of FromAccountID and
	// ToAccountID is set: both for a transfer, only To for income, only
	// From for an expense. Amount is always positive, in Currency.
	Transaction struct {
		ID            string
		UserID        string
		FromAccountID *string
		ToAccountID   *string
		Amount        Money
		Currency      string
		Kind          TransactionKind
		CategoryIDs   []string
		CreatedAt     time.Time
		DeletedAt     *time.Time
	}

	// BalanceHistoryEntry is the append-only audit record written for every
	// balance mutation, in the same atomic unit as the mutation itself.
	BalanceHistoryEntry struct {
		ID            string
		AccountID     string
		TransactionID *string
		Previous      Money
		New           Money
		Delta         Money
		Reason        BalanceChangeReason
		Currency      string
		Description   string
		CreatedAt     time.Time
	}

	// Budget caps spending across a category set. CurrentSpent is a cache
	// recomputed from categorized expenses of the current calendar month,
	// converted into the budget's currency; it is never authoritative.
	Budget struct {
		ID           string
		UserID       string
		Name         string
		Limit        Money
		CurrentSpent Money
		Currency     string
		CategoryIDs  []string
		DeletedAt    *time.Time
	}

	// Category joins transactions to budgets. System categories have no
	// owner and are visible to every user.
	Category struct {
		ID     string
		UserID *string
		Name   string
		Kind   CategoryKind
	}

	// RecurringPayment is a scheduled bill or income executed by an
	// external trigger. Each execution advances NextExecution by one
	// frequency period; ONCE records are terminated instead.
	RecurringPayment struct {
		ID             string
		UserID         string
		AccountID      string
		Amount         Money
		Currency       string
		Kind           TransactionKind
		Frequency      Frequency
		NextExecution  *time.Time
		Active         bool
		AutoExecute    bool
		Notify         bool
		NotifyLeadDays int
		CategoryIDs    []string
		DeletedAt      *time.Time
	}

	// RateSnapshot maps currency codes to multipliers relative to Base.
	// It lives only in the rate provider's cache, never in the store.
	RateSnapshot struct {
		Base      string
		Rates     map[string]decimal.Decimal
		FetchedAt time.Time
	}
)

// ValidCurrency reports whether code looks like an ISO 4217 currency code.
func ValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionExpense, TransactionIncome, TransactionTransfer:
		return true
	}
	return false
}

func (f Frequency) Valid() bool {
	switch f {
	case Once, Weekly, Biweekly, Monthly, Quarterly, Yearly, Custom:
		return true
	}
	return false
}

func (c Category) VisibleTo(userID string) bool {
	if c.Kind == CategorySystem || c.UserID == nil {
		return true
	}
	return *c.UserID == userID
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.UserID) == "" {
		return ErrValidation
	}
	if !ValidCurrency(a.Currency) {
		return ErrValidation
	}
	switch a.Kind {
	case AccountDefault, AccountSavings:
	default:
		return ErrValidation
	}
	return nil
}

// MeetsSavingsTarget reports whether the balance has reached the savings
// target. Only meaningful for savings accounts with a positive target.
func (a Account) MeetsSavingsTarget() bool {
	return a.Kind == AccountSavings && a.SavingsTarget.Cents > 0 &&
		a.Balance.Cents >= a.SavingsTarget.Cents
}
