package models

import "github.com/shopspring/decimal"

// Bucket is the state one lease period settles into for a month
type Bucket string

const (
	BucketCollected Bucket = "collected"
	BucketPending   Bucket = "pending"
	BucketFuture    Bucket = "future"
	BucketOverdue   Bucket = "overdue"
)

// MonthlyResult represents the reconciled figures for one calendar month
type MonthlyResult struct {
	Month           int             `json:"month"`
	TotalExpected   decimal.Decimal `json:"total_expected"`
	TotalCollected  decimal.Decimal `json:"total_collected"`
	PendingAmount   decimal.Decimal `json:"pending_amount"`
	Future          decimal.Decimal `json:"future"`
	OverdueAmount   decimal.Decimal `json:"overdue_amount"`
	OverdueCount    int             `json:"overdue_count"`
	CollectionRate  int             `json:"collection_rate"`
	AvgDelayDays    int             `json:"avg_delay_days"`
	ActiveLeases    int             `json:"active_leases"`
	PaymentVariance decimal.Decimal `json:"payment_variance"` // paid minus due on paid rows
}

// YearSummary represents yearly totals derived from the monthly rows
type YearSummary struct {
	Year           int             `json:"year"`
	TotalExpected  decimal.Decimal `json:"total_expected"`
	TotalCollected decimal.Decimal `json:"total_collected"`
	PendingAmount  decimal.Decimal `json:"pending_amount"`
	Future         decimal.Decimal `json:"future"`
	OverdueAmount  decimal.Decimal `json:"overdue_amount"`
	OverdueCount   int             `json:"overdue_count"`
	CollectionRate int             `json:"collection_rate"`
	AvgDelayDays   int             `json:"avg_delay_days"`
	TotalExpenses  decimal.Decimal `json:"total_expenses"`
	NetIncome      decimal.Decimal `json:"net_income"`
}

// PropertyProfitability represents yearly revenue against expenses for one property
type PropertyProfitability struct {
	PropertyID      string          `json:"property_id,omitempty"`
	PropertyAddress string          `json:"property_address"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TotalExpenses   decimal.Decimal `json:"total_expenses"`
	NetProfit       decimal.Decimal `json:"net_profit"`
	ProfitMargin    decimal.Decimal `json:"profit_margin"`
}

// ProfitabilityReport holds per-property rows plus what could not be attributed
type ProfitabilityReport struct {
	Year         int                     `json:"year"`
	Properties   []PropertyProfitability `json:"properties"`
	Unattributed PropertyProfitability   `json:"unattributed"`
}

// AnomalyKind classifies a data-quality finding
type AnomalyKind string

const (
	AnomalyMissingStartDate     AnomalyKind = "missing_start_date"
	AnomalyInvalidPaidAt        AnomalyKind = "invalid_paid_at"
	AnomalyDuplicateTransaction AnomalyKind = "duplicate_transaction"
	AnomalyBeforeLeaseStart     AnomalyKind = "period_before_lease_start"
	AnomalyAfterLeaseEnd        AnomalyKind = "period_after_lease_end"
	AnomalyUnknownLease         AnomalyKind = "unknown_lease"
)

// Anomaly is a record the engine skipped or partially skipped
type Anomaly struct {
	Kind          AnomalyKind `json:"kind"`
	LeaseID       string      `json:"lease_id,omitempty"`
	TransactionID string      `json:"transaction_id,omitempty"`
	Detail        string      `json:"detail,omitempty"`
}
