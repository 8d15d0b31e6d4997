package finance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/rent-ledger/internal/clock"
	"github.com/Dan9191/rent-ledger/internal/models"
)

// PeriodMatch is the outcome for one lease in one month of the reporting year
type PeriodMatch struct {
	LeaseID       string
	PropertyID    string
	Month         int
	TransactionID string // empty when the period had no stored transaction
	DueDate       time.Time
	Expected      decimal.Decimal
	Collected     decimal.Decimal
	Bucket        models.Bucket
	DelayDays     int
	HasDelay      bool
}

// Reconciliation is the full result of reconciling one year
type Reconciliation struct {
	Year      int
	Months    []models.MonthlyResult
	Matches   []PeriodMatch
	Anomalies []models.Anomaly
}

type periodKey struct {
	leaseID string
	month   int
}

// CalculateYearlyFinancials returns the twelve monthly rows for year
func CalculateYearlyFinancials(l Ledger, year int, now time.Time, scope ScopeFilter) []models.MonthlyResult {
	return Reconcile(l, year, now, scope).Months
}

// Reconcile builds the monthly matrix for year. Each in-scope lease contributes from its
// start month onward, and every lease period lands in exactly one of collected, pending,
// future or overdue.
func Reconcile(l Ledger, year int, now time.Time, scope ScopeFilter) Reconciliation {
	rec := Reconciliation{
		Year:   year,
		Months: make([]models.MonthlyResult, 12),
	}

	known := make(map[string]struct{}, len(l.Leases))
	for _, lease := range l.Leases {
		known[lease.ID] = struct{}{}
	}

	byPeriod := make(map[periodKey]models.Transaction)
	for _, tx := range l.Transactions {
		if tx.PeriodYear != year || tx.PeriodMonth < 1 || tx.PeriodMonth > 12 {
			continue
		}
		if _, ok := known[tx.LeaseID]; !ok {
			rec.anomaly(models.AnomalyUnknownLease, tx.LeaseID, tx.ID, "")
			continue
		}
		key := periodKey{leaseID: tx.LeaseID, month: tx.PeriodMonth}
		if first, ok := byPeriod[key]; ok {
			rec.anomaly(models.AnomalyDuplicateTransaction, tx.LeaseID, tx.ID,
				fmt.Sprintf("%04d-%02d already covered by %s", year, tx.PeriodMonth, first.ID))
			continue
		}
		byPeriod[key] = tx
	}

	var leases []models.Lease
	for _, lease := range l.Leases {
		if !scope.Includes(lease.Status) {
			continue
		}
		if !validTimestamp(lease.StartDate) {
			rec.anomaly(models.AnomalyMissingStartDate, lease.ID, "", "")
			continue
		}
		leases = append(leases, lease)
	}

	loc := now.Location()
	today := civil(now)

	for m := 1; m <= 12; m++ {
		res := models.MonthlyResult{Month: m}
		monthStart := time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
		nextMonth := monthStart.AddDate(0, 1, 0)
		pos := periodPosition(year, m, now)
		delaySum, delayCount := 0, 0

		for _, lease := range leases {
			key := periodKey{leaseID: lease.ID, month: m}
			tx, hasTx := byPeriod[key]

			if !civil(lease.StartDate).Before(nextMonth) {
				if hasTx {
					rec.anomaly(models.AnomalyBeforeLeaseStart, lease.ID, tx.ID, "")
				}
				continue
			}
			if lease.EndDate != nil && validTimestamp(*lease.EndDate) && civil(*lease.EndDate).Before(monthStart) {
				if hasTx {
					rec.anomaly(models.AnomalyAfterLeaseEnd, lease.ID, tx.ID, "")
				}
				continue
			}

			res.ActiveLeases++
			match := PeriodMatch{
				LeaseID:    lease.ID,
				PropertyID: lease.PropertyID,
				Month:      m,
				DueDate:    DueDate(year, m, lease.DueDay()),
			}

			if hasTx {
				match.TransactionID = tx.ID
				match.Expected = nonNegative(tx.AmountDue)
			} else {
				match.Expected = nonNegative(lease.MonthlyAmount)
			}
			res.TotalExpected = res.TotalExpected.Add(match.Expected)

			switch {
			case hasTx && tx.IsPaid():
				match.Bucket = models.BucketCollected
				match.Collected = nonNegative(tx.Paid())
				res.TotalCollected = res.TotalCollected.Add(match.Collected)
				res.PaymentVariance = res.PaymentVariance.Add(match.Collected.Sub(match.Expected))
				if tx.PaidAt != nil {
					if validTimestamp(*tx.PaidAt) {
						match.DelayDays = DelayDays(match.DueDate, *tx.PaidAt, loc)
						match.HasDelay = true
						delaySum += match.DelayDays
						delayCount++
					} else {
						rec.anomaly(models.AnomalyInvalidPaidAt, lease.ID, tx.ID, "")
					}
				}
			case hasTx && tx.Status == models.TransactionOverdue:
				match.Bucket = models.BucketOverdue
			case pos == future:
				match.Bucket = models.BucketFuture
			case pos == current && !today.After(match.DueDate):
				match.Bucket = models.BucketPending
			default:
				match.Bucket = models.BucketOverdue
			}

			switch match.Bucket {
			case models.BucketFuture:
				res.Future = res.Future.Add(match.Expected)
			case models.BucketPending:
				res.PendingAmount = res.PendingAmount.Add(match.Expected)
			case models.BucketOverdue:
				res.OverdueAmount = res.OverdueAmount.Add(match.Expected)
				res.OverdueCount++
			}

			rec.Matches = append(rec.Matches, match)
		}

		res.CollectionRate = CollectionRate(res.TotalCollected, res.TotalExpected)
		res.AvgDelayDays = averageDays(delaySum, delayCount)
		rec.Months[m-1] = res
	}

	return rec
}

func (r *Reconciliation) anomaly(kind models.AnomalyKind, leaseID, txID, detail string) {
	r.Anomalies = append(r.Anomalies, models.Anomaly{
		Kind:          kind,
		LeaseID:       leaseID,
		TransactionID: txID,
		Detail:        detail,
	})
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Engine reconciles against a clock, for callers that do not hold "now" themselves
type Engine struct {
	clock clock.Clock
}

// NewEngine returns an Engine reading the time from c
func NewEngine(c clock.Clock) *Engine {
	return &Engine{clock: c}
}

// Reconcile runs Reconcile with the engine's current time
func (e *Engine) Reconcile(l Ledger, year int, scope ScopeFilter) Reconciliation {
	return Reconcile(l, year, e.clock.Now(), scope)
}

// Now returns the engine's current time
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}
