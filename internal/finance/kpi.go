package finance

import (
	"github.com/shopspring/decimal"

	"github.com/Dan9191/rent-ledger/internal/models"
)

var hundred = decimal.NewFromInt(100)

// CollectionRate returns collected/expected as a whole percentage in [0, 100].
// It is 0 when nothing was expected.
func CollectionRate(collected, expected decimal.Decimal) int {
	if !expected.IsPositive() {
		return 0
	}
	return clampPercent(collected.Div(expected).Mul(hundred).Round(0).IntPart())
}

// UnpaidRate returns the share of active leases with an overdue period, rounded
func UnpaidRate(overdueCount, activeLeases int) int {
	return ratio(overdueCount, activeLeases)
}

// OccupancyRate returns the share of properties that have an active lease, rounded
func OccupancyRate(occupied, total int) int {
	return ratio(occupied, total)
}

func ratio(part, whole int) int {
	if whole <= 0 || part <= 0 {
		return 0
	}
	return clampPercent(decimal.NewFromInt(int64(part)).Div(decimal.NewFromInt(int64(whole))).Mul(hundred).Round(0).IntPart())
}

func clampPercent(v int64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return int(v)
}

func averageDays(sum, count int) int {
	if count == 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(count))).Round(0).IntPart())
}

// Summarize folds the monthly rows into yearly totals and sets expenses booked in the
// reporting year against collected rent.
func Summarize(rec Reconciliation, expenses []models.Expense) models.YearSummary {
	s := models.YearSummary{Year: rec.Year}
	for _, m := range rec.Months {
		s.TotalExpected = s.TotalExpected.Add(m.TotalExpected)
		s.TotalCollected = s.TotalCollected.Add(m.TotalCollected)
		s.PendingAmount = s.PendingAmount.Add(m.PendingAmount)
		s.Future = s.Future.Add(m.Future)
		s.OverdueAmount = s.OverdueAmount.Add(m.OverdueAmount)
		s.OverdueCount += m.OverdueCount
	}
	s.CollectionRate = CollectionRate(s.TotalCollected, s.TotalExpected)

	delaySum, delayCount := 0, 0
	for _, match := range rec.Matches {
		if match.HasDelay {
			delaySum += match.DelayDays
			delayCount++
		}
	}
	s.AvgDelayDays = averageDays(delaySum, delayCount)

	for _, e := range expenses {
		if e.ExpenseDate.Year() == rec.Year {
			s.TotalExpenses = s.TotalExpenses.Add(nonNegative(e.Amount))
		}
	}
	s.NetIncome = s.TotalCollected.Sub(s.TotalExpenses)
	return s
}

// MonthUnpaidRate returns the unpaid rate of one reconciled month, 0 for months out of range
func MonthUnpaidRate(rec Reconciliation, month int) int {
	if month < 1 || month > len(rec.Months) {
		return 0
	}
	m := rec.Months[month-1]
	return UnpaidRate(m.OverdueCount, m.ActiveLeases)
}
