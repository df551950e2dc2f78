package core

import "errors"

// Error taxonomy surfaced by the ledger core. All of these are raised to the
// immediate caller unmodified and never retried internally; the route layer
// decides what is client-correctable.
var (
	// ErrAccountNotFound covers both a missing account and an account owned
	// by a different user, so callers cannot probe for existence.
	ErrAccountNotFound   = errors.New("account not found")
	ErrBudgetNotFound    = errors.New("budget not found")
	ErrRecurringNotFound = errors.New("recurring payment not found")

	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidCategory   = errors.New("invalid category")

	// ErrConversionUnavailable means one or both currencies are absent from
	// the current rate snapshot.
	ErrConversionUnavailable = errors.New("currency conversion unavailable")

	// ErrRateSourceUnavailable means the external rate fetch failed or timed
	// out and no fresh cache exists. Stale rates are never reused for
	// money-moving decisions.
	ErrRateSourceUnavailable = errors.New("rate source unavailable")

	ErrValidation    = errors.New("validation failed")
	ErrInvalidAmount = errors.New("invalid amount")
)
