// Package usage reports embedding token consumption against the configured budget.
package usage

import (
	"context"
	"time"

	"github.com/kailas-cloud/courserank/internal/domain"
)

// Report is the token usage of one budget window.
type Report struct {
	Period    domain.BudgetPeriod
	Start     time.Time
	End       time.Time
	Used      int64
	Limit     int64 // 0 = unlimited
	Remaining int64 // -1 = unlimited
	Exhausted bool
}

// Service handles usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil (unlimited mode).
func New(br BudgetReader) *Service {
	return &Service{br: br, now: time.Now}
}

// GetReport builds a usage report for the window of period containing now.
func (s *Service) GetReport(_ context.Context, period domain.BudgetPeriod) Report {
	now := s.now()
	r := Report{
		Period:    period,
		Start:     period.Start(now),
		End:       period.End(now),
		Remaining: -1,
	}
	if s.br == nil {
		return r
	}

	switch period {
	case domain.BudgetDaily:
		r.Limit, r.Used, r.Remaining = s.br.DailyLimit(), s.br.DailyUsed(), s.br.RemainingDaily()
	default:
		r.Limit, r.Used, r.Remaining = s.br.MonthlyLimit(), s.br.MonthlyUsed(), s.br.RemainingMonthly()
	}
	r.Exhausted = r.Limit > 0 && r.Remaining <= 0
	return r
}
