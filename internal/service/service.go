package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Dan9191/rent-ledger/internal/config"
	"github.com/Dan9191/rent-ledger/internal/finance"
	"github.com/Dan9191/rent-ledger/internal/models"
)

// ErrInvalidYear is returned for reporting years outside the supported range
var ErrInvalidYear = errors.New("invalid year")

// Store reads a team's rental data
type Store interface {
	GetLeasesByTeam(ctx context.Context, teamID string, statuses []string) ([]models.Lease, error)
	GetRentalTransactions(ctx context.Context, leaseIDs []string, teamID string) ([]models.Transaction, error)
	GetExpensesByTeam(ctx context.Context, teamID string) ([]models.Expense, error)
	GetPropertiesByTeam(ctx context.Context, teamID string) ([]models.Property, error)
	ListTeams(ctx context.Context) ([]models.Team, error)
	LinkLeaseToProperty(ctx context.Context, teamID, leaseID, propertyID string) error
}

// YearlyReport is the dashboard view of one team's year
type YearlyReport struct {
	TeamID       string                 `json:"team_id"`
	Year         int                    `json:"year"`
	GeneratedAt  time.Time              `json:"generated_at"`
	Months       []models.MonthlyResult `json:"months"`
	Summary      models.YearSummary     `json:"summary"`
	UnpaidRate   int                    `json:"unpaid_rate"`
	ActiveLeases int                    `json:"active_leases"`
	OrphanLeases int                    `json:"orphan_leases"`
	Anomalies    []models.Anomaly       `json:"anomalies,omitempty"`
	Degraded     bool                   `json:"degraded"`
}

// Service handles business logic
type Service struct {
	store  Store
	engine *finance.Engine
	log    *logrus.Logger
	config *config.Config
}

// NewService initializes a new service
func NewService(store Store, engine *finance.Engine, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{store: store, engine: engine, log: log, config: cfg}
}

// loaded is a validated ledger plus whether optional reads failed
type loaded struct {
	ledger   finance.Ledger
	degraded bool
}

// loadLedger fetches a team's data. Leases, expenses and properties are read
// concurrently, transactions once lease ids are known. Expense and property failures
// degrade the result instead of failing it.
func (s *Service) loadLedger(ctx context.Context, teamID string, scope finance.ScopeFilter) (*loaded, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.LoadTimeout)
	defer cancel()

	var (
		out                   loaded
		expensesErr, propsErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		leases, err := s.store.GetLeasesByTeam(gctx, teamID, scope.Strings())
		if err != nil {
			return err
		}
		out.ledger.Leases = leases
		return nil
	})
	g.Go(func() error {
		out.ledger.Expenses, expensesErr = s.store.GetExpensesByTeam(gctx, teamID)
		return nil
	})
	g.Go(func() error {
		out.ledger.Properties, propsErr = s.store.GetPropertiesByTeam(gctx, teamID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load leases: %w", err)
	}

	log := s.log.WithField("team_id", teamID)
	if expensesErr != nil {
		log.WithError(expensesErr).Warn("Expenses unavailable, continuing without them")
		out.ledger.Expenses = nil
		out.degraded = true
	}
	if propsErr != nil {
		log.WithError(propsErr).Warn("Properties unavailable, continuing without addresses")
		out.ledger.Properties = nil
		out.degraded = true
	}

	out.ledger.Leases = s.validLeases(log, out.ledger.Leases)
	leaseIDs := make([]string, len(out.ledger.Leases))
	for i, l := range out.ledger.Leases {
		leaseIDs[i] = l.ID
	}

	txs, err := s.store.GetRentalTransactions(ctx, leaseIDs, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rental transactions: %w", err)
	}
	out.ledger.Transactions = s.validTransactions(log, txs)
	out.ledger.Expenses = s.validExpenses(log, out.ledger.Expenses)
	return &out, nil
}

func (s *Service) validLeases(log *logrus.Entry, leases []models.Lease) []models.Lease {
	valid := leases[:0:0]
	for _, l := range leases {
		if err := l.Validate(); err != nil {
			log.WithError(err).WithField("lease_id", l.ID).Warn("Skipping invalid lease")
			continue
		}
		valid = append(valid, l)
	}
	return valid
}

func (s *Service) validTransactions(log *logrus.Entry, txs []models.Transaction) []models.Transaction {
	valid := txs[:0:0]
	for _, t := range txs {
		if err := t.Validate(); err != nil {
			log.WithError(err).WithField("transaction_id", t.ID).Warn("Skipping invalid rental transaction")
			continue
		}
		valid = append(valid, t)
	}
	return valid
}

func (s *Service) validExpenses(log *logrus.Entry, expenses []models.Expense) []models.Expense {
	valid := expenses[:0:0]
	for _, e := range expenses {
		if err := e.Validate(); err != nil {
			log.WithError(err).WithField("expense_id", e.ID).Warn("Skipping invalid expense")
			continue
		}
		valid = append(valid, e)
	}
	return valid
}

func (s *Service) logAnomalies(teamID string, year int, anomalies []models.Anomaly) {
	for _, a := range anomalies {
		s.log.WithFields(logrus.Fields{
			"team_id":        teamID,
			"year":           year,
			"kind":           a.Kind,
			"lease_id":       a.LeaseID,
			"transaction_id": a.TransactionID,
		}).Warn("Data quality issue in rental ledger")
	}
}

func validateYear(year int) error {
	if year < 1970 || year > 2200 {
		return fmt.Errorf("%d: %w", year, ErrInvalidYear)
	}
	return nil
}

// YearlyFinancials reconciles a team's year into monthly rows and a summary
func (s *Service) YearlyFinancials(ctx context.Context, teamID string, year int, scope finance.ScopeFilter) (*YearlyReport, error) {
	report, _, _, err := s.reconcile(ctx, teamID, year, scope)
	return report, err
}

func (s *Service) reconcile(ctx context.Context, teamID string, year int, scope finance.ScopeFilter) (*YearlyReport, *finance.Reconciliation, *loaded, error) {
	if err := validateYear(year); err != nil {
		return nil, nil, nil, err
	}
	data, err := s.loadLedger(ctx, teamID, scope)
	if err != nil {
		return nil, nil, nil, err
	}

	now := s.engine.Now()
	rec := finance.Reconcile(data.ledger, year, now, scope)
	s.logAnomalies(teamID, year, rec.Anomalies)

	report := &YearlyReport{
		TeamID:       teamID,
		Year:         year,
		GeneratedAt:  now,
		Months:       rec.Months,
		Summary:      finance.Summarize(rec, data.ledger.Expenses),
		UnpaidRate:   finance.MonthUnpaidRate(rec, referenceMonth(year, now)),
		ActiveLeases: len(data.ledger.Leases),
		OrphanLeases: len(finance.OrphanLeases(data.ledger.Leases)),
		Anomalies:    rec.Anomalies,
		Degraded:     data.degraded,
	}

	s.log.WithFields(logrus.Fields{
		"team_id":         teamID,
		"year":            year,
		"leases":          len(data.ledger.Leases),
		"transactions":    len(data.ledger.Transactions),
		"collection_rate": report.Summary.CollectionRate,
	}).Info("Reconciled rental ledger")
	return report, &rec, data, nil
}

// referenceMonth is the month whose unpaid rate represents the year: the current month
// for the current year, December for past years, none for future years
func referenceMonth(year int, now time.Time) int {
	switch {
	case year < now.Year():
		return 12
	case year == now.Year():
		return int(now.Month())
	}
	return 0
}

// Profitability aggregates a team's year per property
func (s *Service) Profitability(ctx context.Context, teamID string, year int, scope finance.ScopeFilter) (*models.ProfitabilityReport, error) {
	_, rec, data, err := s.reconcile(ctx, teamID, year, scope)
	if err != nil {
		return nil, err
	}
	report := finance.ProfitabilityByProperty(*rec, data.ledger, year)
	return &report, nil
}

// Export returns the yearly report together with its profitability, for document exports
func (s *Service) Export(ctx context.Context, teamID string, year int, scope finance.ScopeFilter) (*YearlyReport, *models.ProfitabilityReport, error) {
	report, rec, data, err := s.reconcile(ctx, teamID, year, scope)
	if err != nil {
		return nil, nil, err
	}
	profitability := finance.ProfitabilityByProperty(*rec, data.ledger, year)
	return report, &profitability, nil
}

// OrphanLeases lists the team's leases that are not linked to a property
func (s *Service) OrphanLeases(ctx context.Context, teamID string) ([]models.Lease, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.LoadTimeout)
	defer cancel()

	leases, err := s.store.GetLeasesByTeam(ctx, teamID, finance.ScopeAll.Strings())
	if err != nil {
		return nil, fmt.Errorf("failed to load leases: %w", err)
	}
	orphans := finance.OrphanLeases(leases)
	if orphans == nil {
		orphans = []models.Lease{}
	}
	return orphans, nil
}

// LinkLease attaches a lease to a property
func (s *Service) LinkLease(ctx context.Context, teamID, leaseID, propertyID string) error {
	if propertyID == "" {
		return models.ErrMissingProperty
	}
	if err := s.store.LinkLeaseToProperty(ctx, teamID, leaseID, propertyID); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"team_id":     teamID,
		"lease_id":    leaseID,
		"property_id": propertyID,
	}).Info("Lease linked to property")
	return nil
}

// Teams lists the teams that receive notices
func (s *Service) Teams(ctx context.Context) ([]models.Team, error) {
	teams, err := s.store.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}
