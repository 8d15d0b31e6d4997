package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LeaseStatus is the lifecycle state of a rental contract
type LeaseStatus string

const (
	LeaseActive     LeaseStatus = "active"
	LeasePending    LeaseStatus = "pending"
	LeaseTerminated LeaseStatus = "terminated"
)

// DefaultBillingDay is used when a lease has no billing day set
const DefaultBillingDay = 5

// Valid reports whether s is a known lease status
func (s LeaseStatus) Valid() bool {
	switch s {
	case LeaseActive, LeasePending, LeaseTerminated:
		return true
	}
	return false
}

// Lease represents a rental contract
type Lease struct {
	ID            string          `json:"id"`
	TeamID        string          `json:"team_id"`
	PropertyID    string          `json:"property_id,omitempty"`
	TenantName    string          `json:"tenant_name,omitempty"`
	MonthlyAmount decimal.Decimal `json:"monthly_amount"`
	Status        LeaseStatus     `json:"status"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       *time.Time      `json:"end_date,omitempty"`
	BillingDay    int             `json:"billing_day"`
}

// DueDay returns the billing day, falling back to DefaultBillingDay
func (l Lease) DueDay() int {
	if l.BillingDay <= 0 {
		return DefaultBillingDay
	}
	return l.BillingDay
}

// IsOrphan reports whether the lease is not linked to a property
func (l Lease) IsOrphan() bool {
	return l.PropertyID == ""
}

// Validate checks required fields
func (l Lease) Validate() error {
	if l.ID == "" {
		return ErrMissingID
	}
	if l.MonthlyAmount.IsNegative() {
		return fmt.Errorf("lease %s: %w", l.ID, ErrInvalidAmount)
	}
	if l.StartDate.IsZero() {
		return fmt.Errorf("lease %s: start date: %w", l.ID, ErrInvalidDate)
	}
	if l.EndDate != nil && l.EndDate.Before(l.StartDate) {
		return fmt.Errorf("lease %s: end date before start date: %w", l.ID, ErrInvalidDate)
	}
	if l.BillingDay < 0 || l.BillingDay > 31 {
		return fmt.Errorf("lease %s: %w", l.ID, ErrInvalidBilling)
	}
	if !l.Status.Valid() {
		return fmt.Errorf("lease %s: %q: %w", l.ID, l.Status, ErrInvalidStatus)
	}
	return nil
}
