package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the recorded state of a rental payment
type TransactionStatus string

const (
	TransactionPaid    TransactionStatus = "paid"
	TransactionPending TransactionStatus = "pending"
	TransactionOverdue TransactionStatus = "overdue"
)

// ParseTransactionStatus normalizes the status spellings found in stored rows
func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid", "completed", "settled":
		return TransactionPaid, nil
	case "pending", "unpaid", "":
		return TransactionPending, nil
	case "overdue", "late":
		return TransactionOverdue, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidStatus)
}

// Transaction represents one rental payment record for a billing period
type Transaction struct {
	ID          string              `json:"id"`
	LeaseID     string              `json:"lease_id"`
	PeriodMonth int                 `json:"period_month"`
	PeriodYear  int                 `json:"period_year"`
	AmountDue   decimal.Decimal     `json:"amount_due"`
	AmountPaid  decimal.NullDecimal `json:"amount_paid"`
	Status      TransactionStatus   `json:"status"`
	PaidAt      *time.Time          `json:"paid_at,omitempty"`
}

// IsPaid reports whether the transaction is settled
func (t Transaction) IsPaid() bool {
	return t.Status == TransactionPaid
}

// Paid returns the collected amount. A paid row without an explicit amount counts as
// paid in full.
func (t Transaction) Paid() decimal.Decimal {
	if !t.IsPaid() {
		return decimal.Zero
	}
	if !t.AmountPaid.Valid || t.AmountPaid.Decimal.IsZero() {
		return t.AmountDue
	}
	return t.AmountPaid.Decimal
}

// Validate checks required fields
func (t Transaction) Validate() error {
	if t.ID == "" {
		return ErrMissingID
	}
	if t.LeaseID == "" {
		return fmt.Errorf("transaction %s: %w", t.ID, ErrMissingLease)
	}
	if t.PeriodMonth < 1 || t.PeriodMonth > 12 {
		return fmt.Errorf("transaction %s: %w", t.ID, ErrInvalidPeriod)
	}
	if t.PeriodYear < 1900 {
		return fmt.Errorf("transaction %s: period year %d: %w", t.ID, t.PeriodYear, ErrInvalidDate)
	}
	if t.AmountDue.IsNegative() || (t.AmountPaid.Valid && t.AmountPaid.Decimal.IsNegative()) {
		return fmt.Errorf("transaction %s: %w", t.ID, ErrInvalidAmount)
	}
	switch t.Status {
	case TransactionPaid, TransactionPending, TransactionOverdue:
	default:
		return fmt.Errorf("transaction %s: %q: %w", t.ID, t.Status, ErrInvalidStatus)
	}
	return nil
}
