package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Expense represents a cost entry, optionally tied to a property or lease
type Expense struct {
	ID          string          `json:"id"`
	TeamID      string          `json:"team_id"`
	PropertyID  string          `json:"property_id,omitempty"`
	LeaseID     string          `json:"lease_id,omitempty"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	ExpenseDate time.Time       `json:"expense_date"`
}

// Validate checks required fields
func (e Expense) Validate() error {
	if e.ID == "" {
		return ErrMissingID
	}
	if e.Amount.IsNegative() {
		return fmt.Errorf("expense %s: %w", e.ID, ErrInvalidAmount)
	}
	if e.ExpenseDate.IsZero() {
		return fmt.Errorf("expense %s: expense date: %w", e.ID, ErrInvalidDate)
	}
	return nil
}
