package rates

import (
	"fmt"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Convert re-expresses amount from one currency in another using snap.
// All multipliers are relative to the same base, so the cross rate is always
// rates[from]/rates[to]; there is no pairwise table. The result is rounded
// half-up to cents. Same-currency conversions return the amount unchanged so
// they cannot introduce rounding drift.
func Convert(amount core.Money, from, to string, snap core.RateSnapshot) (core.Money, error) {
	if from == to {
		return amount, nil
	}
	rf, ok := snap.Rates[from]
	if !ok {
		return core.Money{}, fmt.Errorf("%w: %s", core.ErrConversionUnavailable, from)
	}
	rt, ok := snap.Rates[to]
	if !ok || rt.IsZero() {
		return core.Money{}, fmt.Errorf("%w: %s", core.ErrConversionUnavailable, to)
	}
	converted := decimal.NewFromInt(amount.Cents).Mul(rf).Div(rt)
	return core.Money{Cents: converted.Round(0).IntPart()}, nil
}
