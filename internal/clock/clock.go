// Package clock provides the time source used for pending/future classification.
// Reconciliation code takes a Clock or an explicit time and never calls time.Now itself.
package clock

import "time"

// Clock provides the current time
type Clock interface {
	Now() time.Time
}

// Real returns the system time, read in Loc when set. Use only where the process is
// wired up.
type Real struct {
	Loc *time.Location
}

// Now returns the current system time
func (c Real) Now() time.Time {
	now := time.Now()
	if c.Loc != nil {
		now = now.In(c.Loc)
	}
	return now
}

// Fixed always returns the same instant
type Fixed struct {
	T time.Time
}

// Now returns the fixed time
func (c Fixed) Now() time.Time {
	return c.T
}

// NewFixed returns a Clock frozen at t
func NewFixed(t time.Time) Clock {
	return Fixed{T: t}
}
