package usage

// BudgetReader exposes the counters of the embedding budget tracker.
// Remaining values are -1 for an unlimited window.
type BudgetReader interface {
	DailyUsed() int64
	DailyLimit() int64
	RemainingDaily() int64
	MonthlyUsed() int64
	MonthlyLimit() int64
	RemainingMonthly() int64
}
