// Package core defines the domain model of the ledger engine.
//
// Money is kept in integer minor units (cents). Currency conversion runs
// through decimal arithmetic and rounds back to cents half-up, so balances
// never accumulate floating-point drift.
package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units of some currency. The currency itself
// travels separately (on the account, transaction or budget carrying it).
type Money struct {
	Cents int64
}

// ParseMoney converts a decimal string such as "12.34" or "12,34" into
// Money, rounding a third decimal half-up. Zero and negative amounts are
// rejected; signs are the ledger's business, not the input's.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(normalizeDecimal(s))
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.Sign() <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d), nil
}

// MoneyFromDecimal rounds d half-up to two decimals and returns it as cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Round(2).Mul(decimal.NewFromInt(100)).IntPart()}
}

// Decimal returns the amount in major units as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(m.Cents).Div(decimal.NewFromInt(100))
}

// Abs returns the magnitude of the amount.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// Neg returns the amount with the opposite sign.
func (m Money) Neg() Money {
	return Money{Cents: -m.Cents}
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// LessThan reports m < o. Comparisons only make sense between amounts in
// the same currency; callers convert first.
func (m Money) LessThan(o Money) bool { return m.Cents < o.Cents }

func (m Money) IsZero() bool     { return m.Cents == 0 }
func (m Money) IsPositive() bool { return m.Cents > 0 }

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// String renders the amount in major units, e.g. "12.34".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func normalizeDecimal(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case ',':
			out = append(out, '.')
		case ' ', '\t':
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// GoString makes test failures readable.
func (m Money) GoString() string {
	return fmt.Sprintf("core.Money{Cents: %d}", m.Cents)
}
