package finance

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/rent-ledger/internal/models"
)

type propertyTotals struct {
	revenue  decimal.Decimal
	expenses decimal.Decimal
}

// ProfitabilityByProperty aggregates the collected periods of rec and the expenses of the
// reporting year per property. Revenue of orphan leases and expenses that resolve to no
// property go to the Unattributed row, so the property rows plus Unattributed always add
// up to the year's collected total. Properties without revenue or expenses are omitted.
func ProfitabilityByProperty(rec Reconciliation, l Ledger, year int) models.ProfitabilityReport {
	addresses := make(map[string]string, len(l.Properties))
	for _, p := range l.Properties {
		addresses[p.ID] = p.Address
	}
	leaseProperty := make(map[string]string, len(l.Leases))
	for _, lease := range l.Leases {
		leaseProperty[lease.ID] = lease.PropertyID
	}

	totals := make(map[string]*propertyTotals)
	var unattributed propertyTotals
	bucket := func(propertyID string) *propertyTotals {
		if propertyID == "" {
			return &unattributed
		}
		t, ok := totals[propertyID]
		if !ok {
			t = &propertyTotals{}
			totals[propertyID] = t
		}
		return t
	}

	for _, match := range rec.Matches {
		if match.Bucket != models.BucketCollected {
			continue
		}
		t := bucket(match.PropertyID)
		t.revenue = t.revenue.Add(match.Collected)
	}

	for _, e := range l.Expenses {
		if e.ExpenseDate.Year() != year {
			continue
		}
		propertyID := e.PropertyID
		if propertyID == "" && e.LeaseID != "" {
			propertyID = leaseProperty[e.LeaseID]
		}
		t := bucket(propertyID)
		t.expenses = t.expenses.Add(nonNegative(e.Amount))
	}

	report := models.ProfitabilityReport{
		Year:         year,
		Properties:   []models.PropertyProfitability{},
		Unattributed: profitabilityRow("", "", unattributed),
	}
	for id, t := range totals {
		if t.revenue.IsZero() && t.expenses.IsZero() {
			continue
		}
		address, ok := addresses[id]
		if !ok {
			address = id
		}
		report.Properties = append(report.Properties, profitabilityRow(id, address, *t))
	}

	sort.Slice(report.Properties, func(i, j int) bool {
		a, b := report.Properties[i], report.Properties[j]
		if c := a.NetProfit.Cmp(b.NetProfit); c != 0 {
			return c > 0
		}
		if a.PropertyAddress != b.PropertyAddress {
			return a.PropertyAddress < b.PropertyAddress
		}
		return a.PropertyID < b.PropertyID
	})
	return report
}

func profitabilityRow(id, address string, t propertyTotals) models.PropertyProfitability {
	net := t.revenue.Sub(t.expenses)
	return models.PropertyProfitability{
		PropertyID:      id,
		PropertyAddress: address,
		TotalRevenue:    t.revenue,
		TotalExpenses:   t.expenses,
		NetProfit:       net,
		ProfitMargin:    ProfitMargin(net, t.revenue),
	}
}

// ProfitMargin returns net/revenue as a percentage rounded to two places, 0 without revenue
func ProfitMargin(net, revenue decimal.Decimal) decimal.Decimal {
	if !revenue.IsPositive() {
		return decimal.Zero
	}
	return net.Div(revenue).Mul(hundred).Round(2)
}
