package finance

import (
	"time"

	"github.com/Dan9191/rent-ledger/internal/models"
)

// civil strips the clock time, keeping the calendar date as seen in t's location.
// All date arithmetic happens on UTC midnights so DST shifts never change a day count.
func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DueDate returns the calendar date rent is due for the period. Billing days past the
// end of the month fall on its last day; non-positive days use the default billing day.
func DueDate(year, month, billingDay int) time.Time {
	if billingDay <= 0 {
		billingDay = models.DefaultBillingDay
	}
	if last := daysIn(year, time.Month(month)); billingDay > last {
		billingDay = last
	}
	return time.Date(year, time.Month(month), billingDay, 0, 0, 0, 0, time.UTC)
}

// DelayDays returns how many whole days after the due date a payment landed, never
// negative. paidAt is read in loc before its date is taken.
func DelayDays(due, paidAt time.Time, loc *time.Location) int {
	if loc != nil {
		paidAt = paidAt.In(loc)
	}
	days := int(civil(paidAt).Sub(civil(due)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// validTimestamp rejects zero values and obviously corrupt years
func validTimestamp(t time.Time) bool {
	return !t.IsZero() && t.Year() >= 1900
}

type position int

const (
	past position = iota
	current
	future
)

func periodPosition(year, month int, now time.Time) position {
	p := year*12 + month
	n := now.Year()*12 + int(now.Month())
	switch {
	case p < n:
		return past
	case p == n:
		return current
	}
	return future
}
