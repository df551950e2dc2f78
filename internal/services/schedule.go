// Package services holds the money movement engine, budget aggregation and
// recurring schedule logic on top of the storage, rates and ledger packages.
//
// This file implements schedule advancement as a strategy per frequency.
// Advancement is pure date arithmetic; the external trigger decides when an
// execution actually happens.
package services

import (
	"time"

	"fintrack/internal/core"
)

// Advancement is the outcome of advancing a recurring schedule once.
// Terminal means the record is done and must be retired; NextExecution is
// nil exactly in that case.
type Advancement struct {
	NextExecution *time.Time
	Terminal      bool
}

// PeriodStrategy computes the next execution from the current one.
type PeriodStrategy interface {
	Next(current time.Time) (time.Time, bool)
}

type onceStrategy struct{}

func (onceStrategy) Next(time.Time) (time.Time, bool) { return time.Time{}, true }

type fixedDays struct{ days int }

func (s fixedDays) Next(current time.Time) (time.Time, bool) {
	return current.AddDate(0, 0, s.days), false
}

type calendarMonths struct{ months int }

// Next follows ordinary calendar rollover: Jan 31 + 1 month normalizes past
// the end of February (2024-01-31 -> 2024-03-02).
func (s calendarMonths) Next(current time.Time) (time.Time, bool) {
	return current.AddDate(0, s.months, 0), false
}

type calendarYears struct{ years int }

func (s calendarYears) Next(current time.Time) (time.Time, bool) {
	return current.AddDate(s.years, 0, 0), false
}

var periodStrategies = map[core.Frequency]PeriodStrategy{
	core.Once:      onceStrategy{},
	core.Weekly:    fixedDays{days: 7},
	core.Biweekly:  fixedDays{days: 14},
	core.Monthly:   calendarMonths{months: 1},
	core.Quarterly: calendarMonths{months: 3},
	core.Yearly:    calendarYears{years: 1},
}

// Advance computes a recurring record's next state after a successful
// execution. A nil current schedule advances from now. CUSTOM and any
// unrecognized frequency fall back to a one-month advance.
func Advance(frequency core.Frequency, current *time.Time, now time.Time) Advancement {
	base := now
	if current != nil && !current.IsZero() {
		base = *current
	}

	strategy, ok := periodStrategies[frequency]
	if !ok {
		strategy = calendarMonths{months: 1}
	}

	next, terminal := strategy.Next(base)
	if terminal {
		return Advancement{Terminal: true}
	}
	return Advancement{NextExecution: &next}
}
