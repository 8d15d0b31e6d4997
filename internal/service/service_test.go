package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/rent-ledger/internal/clock"
	"github.com/Dan9191/rent-ledger/internal/config"
	"github.com/Dan9191/rent-ledger/internal/finance"
	"github.com/Dan9191/rent-ledger/internal/models"
)

type fakeStore struct {
	leases      []models.Lease
	txs         []models.Transaction
	expenses    []models.Expense
	properties  []models.Property
	teams       []models.Team
	leaseErr    error
	txErr       error
	expenseErr  error
	propertyErr error
	linkErr     error

	gotStatuses []string
	gotLeaseIDs []string
	linked      [3]string
}

func (f *fakeStore) GetLeasesByTeam(_ context.Context, _ string, statuses []string) ([]models.Lease, error) {
	f.gotStatuses = statuses
	return f.leases, f.leaseErr
}

func (f *fakeStore) GetRentalTransactions(_ context.Context, leaseIDs []string, _ string) ([]models.Transaction, error) {
	f.gotLeaseIDs = leaseIDs
	return f.txs, f.txErr
}

func (f *fakeStore) GetExpensesByTeam(context.Context, string) ([]models.Expense, error) {
	return f.expenses, f.expenseErr
}

func (f *fakeStore) GetPropertiesByTeam(context.Context, string) ([]models.Property, error) {
	return f.properties, f.propertyErr
}

func (f *fakeStore) ListTeams(context.Context) ([]models.Team, error) {
	return f.teams, nil
}

func (f *fakeStore) LinkLeaseToProperty(_ context.Context, teamID, leaseID, propertyID string) error {
	f.linked = [3]string{teamID, leaseID, propertyID}
	return f.linkErr
}

func newTestService(store *fakeStore, now time.Time) (*Service, *test.Hook) {
	logger, hook := test.NewNullLogger()
	cfg := &config.Config{LoadTimeout: time.Second}
	return NewService(store, finance.NewEngine(clock.NewFixed(now)), logger, cfg), hook
}

func sampleStore() *fakeStore {
	paidAt := time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC)
	return &fakeStore{
		leases: []models.Lease{
			{ID: "l1", PropertyID: "p1", MonthlyAmount: decimal.NewFromInt(1000), Status: models.LeaseActive, StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), BillingDay: 5},
			{ID: "l2", MonthlyAmount: decimal.NewFromInt(500), Status: models.LeaseActive, StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "bad", MonthlyAmount: decimal.NewFromInt(-1), Status: models.LeaseActive, StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
		txs: []models.Transaction{
			{ID: "t1", LeaseID: "l1", PeriodMonth: 1, PeriodYear: 2025, AmountDue: decimal.NewFromInt(1000), AmountPaid: decimal.NewNullDecimal(decimal.NewFromInt(1000)), Status: models.TransactionPaid, PaidAt: &paidAt},
			{ID: "t-bad", LeaseID: "l1", PeriodMonth: 13, PeriodYear: 2025, Status: models.TransactionPaid},
		},
		expenses: []models.Expense{
			{ID: "e1", PropertyID: "p1", Amount: decimal.NewFromInt(200), ExpenseDate: time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)},
		},
		properties: []models.Property{{ID: "p1", Address: "1 Main St"}},
	}
}

func TestYearlyFinancials(t *testing.T) {
	store := sampleStore()
	svc, hook := newTestService(store, time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC))

	report, err := svc.YearlyFinancials(context.Background(), "team", 2025, finance.DefaultScope)
	require.NoError(t, err)

	assert.Equal(t, []string{"active", "pending"}, store.gotStatuses)
	assert.Equal(t, []string{"l1", "l2"}, store.gotLeaseIDs, "invalid leases are dropped before transactions load")

	require.Len(t, report.Months, 12)
	jan := report.Months[0]
	assert.True(t, jan.TotalExpected.Equal(decimal.NewFromInt(1500)))
	assert.True(t, jan.TotalCollected.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 67, jan.CollectionRate)
	assert.Equal(t, 3, jan.AvgDelayDays)

	assert.Equal(t, 2, report.ActiveLeases)
	assert.Equal(t, 1, report.OrphanLeases)
	assert.Equal(t, 100, report.UnpaidRate, "both leases overdue in February")
	assert.True(t, report.Summary.TotalExpenses.Equal(decimal.NewFromInt(200)))
	assert.False(t, report.Degraded)

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings, "one invalid lease and one invalid transaction")
}

func TestYearlyFinancials_DegradesWithoutExpenses(t *testing.T) {
	store := sampleStore()
	store.expenseErr = errors.New("timeout")
	store.propertyErr = errors.New("timeout")
	svc, _ := newTestService(store, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC))

	report, err := svc.YearlyFinancials(context.Background(), "team", 2025, finance.DefaultScope)
	require.NoError(t, err)
	assert.True(t, report.Degraded)
	assert.True(t, report.Summary.TotalExpenses.IsZero())
	assert.True(t, report.Months[0].TotalCollected.Equal(decimal.NewFromInt(1000)))
}

func TestYearlyFinancials_Errors(t *testing.T) {
	boom := errors.New("boom")

	store := sampleStore()
	store.leaseErr = boom
	svc, _ := newTestService(store, time.Now())
	_, err := svc.YearlyFinancials(context.Background(), "team", 2025, finance.DefaultScope)
	assert.ErrorIs(t, err, boom)

	store = sampleStore()
	store.txErr = boom
	svc, _ = newTestService(store, time.Now())
	_, err = svc.YearlyFinancials(context.Background(), "team", 2025, finance.DefaultScope)
	assert.ErrorIs(t, err, boom)

	_, err = svc.YearlyFinancials(context.Background(), "team", 1200, finance.DefaultScope)
	assert.ErrorIs(t, err, ErrInvalidYear)
}

func TestProfitability(t *testing.T) {
	svc, _ := newTestService(sampleStore(), time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))

	report, err := svc.Profitability(context.Background(), "team", 2025, finance.DefaultScope)
	require.NoError(t, err)
	require.Len(t, report.Properties, 1)
	assert.Equal(t, "1 Main St", report.Properties[0].PropertyAddress)
	assert.True(t, report.Properties[0].NetProfit.Equal(decimal.NewFromInt(800)))
	assert.True(t, report.Unattributed.TotalRevenue.IsZero())
}

func TestOrphanLeasesAndLink(t *testing.T) {
	store := sampleStore()
	svc, _ := newTestService(store, time.Now())

	orphans, err := svc.OrphanLeases(context.Background(), "team")
	require.NoError(t, err)
	assert.Equal(t, []string{"active", "pending", "terminated"}, store.gotStatuses)
	require.Len(t, orphans, 2)

	require.NoError(t, svc.LinkLease(context.Background(), "team", "l2", "p1"))
	assert.Equal(t, [3]string{"team", "l2", "p1"}, store.linked)

	assert.ErrorIs(t, svc.LinkLease(context.Background(), "team", "l2", ""), models.ErrMissingProperty)
}

func TestReferenceMonth(t *testing.T) {
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 12, referenceMonth(2024, now))
	assert.Equal(t, 7, referenceMonth(2025, now))
	assert.Equal(t, 0, referenceMonth(2026, now))
}
