package domain

import (
	"fmt"
	"time"
)

// BudgetPeriod is the accounting window of a token budget.
type BudgetPeriod string

const (
	// BudgetDaily resets at 00:00 UTC.
	BudgetDaily BudgetPeriod = "daily"
	// BudgetMonthly resets on the first day of the month, UTC.
	BudgetMonthly BudgetPeriod = "monthly"
)

// Start returns the beginning of the window containing t.
func (p BudgetPeriod) Start(t time.Time) time.Time {
	t = t.UTC()
	if p == BudgetMonthly {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Stamp labels the window containing t, e.g. 2026-10-16 or 2026-10.
func (p BudgetPeriod) Stamp(t time.Time) string {
	if p == BudgetMonthly {
		return t.UTC().Format("2006-01")
	}
	return t.UTC().Format("2006-01-02")
}

// End returns the first instant after the window containing t.
func (p BudgetPeriod) End(t time.Time) time.Time {
	s := p.Start(t)
	if p == BudgetMonthly {
		return s.AddDate(0, 1, 0)
	}
	return s.AddDate(0, 0, 1)
}

// ParseBudgetPeriod accepts "day"/"daily" and "month"/"monthly". Empty means monthly.
func ParseBudgetPeriod(s string) (BudgetPeriod, error) {
	switch s {
	case "", "month", string(BudgetMonthly):
		return BudgetMonthly, nil
	case "day", string(BudgetDaily):
		return BudgetDaily, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
}
