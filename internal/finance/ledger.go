// Package finance reconciles leases and rental transactions into monthly ledgers,
// yearly summaries and per-property profitability.
//
// Everything here is pure: inputs are read, never mutated, nothing is logged, and the
// current time is always passed in. Data-quality problems are returned as anomalies for
// the caller to report.
package finance

import (
	"fmt"
	"strings"

	"github.com/Dan9191/rent-ledger/internal/models"
)

// Ledger is the raw data of one tenant scope
type Ledger struct {
	Leases       []models.Lease
	Transactions []models.Transaction
	Expenses     []models.Expense
	Properties   []models.Property
}

// ScopeFilter selects which lease statuses take part in a reconciliation.
// The zero value selects active and pending leases.
type ScopeFilter struct {
	Statuses []models.LeaseStatus
}

var (
	// DefaultScope counts leases that are currently due
	DefaultScope = ScopeFilter{Statuses: []models.LeaseStatus{models.LeaseActive, models.LeasePending}}
	// ScopeAll also counts terminated leases, bounded by their end dates
	ScopeAll = ScopeFilter{Statuses: []models.LeaseStatus{models.LeaseActive, models.LeasePending, models.LeaseTerminated}}
)

// Includes reports whether leases with status s are in scope
func (f ScopeFilter) Includes(s models.LeaseStatus) bool {
	statuses := f.Statuses
	if len(statuses) == 0 {
		statuses = DefaultScope.Statuses
	}
	return containsStatus(statuses, s)
}

func containsStatus(statuses []models.LeaseStatus, s models.LeaseStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// Strings returns the effective statuses, as used by the storage filter
func (f ScopeFilter) Strings() []string {
	statuses := f.Statuses
	if len(statuses) == 0 {
		statuses = DefaultScope.Statuses
	}
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// ParseScope parses a comma separated status list. "all" selects every status and an
// empty string selects the default scope.
func ParseScope(s string) (ScopeFilter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultScope, nil
	}
	if strings.EqualFold(s, "all") {
		return ScopeAll, nil
	}
	var f ScopeFilter
	for _, part := range strings.Split(s, ",") {
		st := models.LeaseStatus(strings.ToLower(strings.TrimSpace(part)))
		if !st.Valid() {
			return ScopeFilter{}, fmt.Errorf("lease status %q: %w", part, models.ErrInvalidStatus)
		}
		if !containsStatus(f.Statuses, st) {
			f.Statuses = append(f.Statuses, st)
		}
	}
	return f, nil
}

// OrphanLeases returns the leases that are not linked to any property, in input order
func OrphanLeases(leases []models.Lease) []models.Lease {
	var out []models.Lease
	for _, l := range leases {
		if l.IsOrphan() {
			out = append(out, l)
		}
	}
	return out
}
