package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/rent-ledger/internal/models"
)

// ErrNotFound is returned when an update matches no row
var ErrNotFound = errors.New("not found")

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetLeasesByTeam retrieves the leases of a team whose status is in statuses
func (r *Repository) GetLeasesByTeam(ctx context.Context, teamID string, statuses []string) ([]models.Lease, error) {
	query := `
		SELECT id, team_id, property_id, tenant_name, monthly_amount, status, start_date, end_date, billing_day
		FROM rent.leases
		WHERE team_id = $1 AND status = ANY($2)
		ORDER BY start_date, id`
	rows, err := r.db.QueryContext(ctx, query, teamID, pq.Array(statuses))
	if err != nil {
		return nil, fmt.Errorf("failed to query leases: %w", err)
	}
	defer rows.Close()

	var leases []models.Lease
	for rows.Next() {
		var (
			l          models.Lease
			propertyID sql.NullString
			tenant     sql.NullString
			amount     decimal.NullDecimal
			status     string
			endDate    pq.NullTime
			billingDay sql.NullInt64
		)
		if err := rows.Scan(&l.ID, &l.TeamID, &propertyID, &tenant, &amount, &status, &l.StartDate, &endDate, &billingDay); err != nil {
			return nil, fmt.Errorf("failed to scan lease: %w", err)
		}
		l.PropertyID = propertyID.String
		l.TenantName = tenant.String
		l.MonthlyAmount = amount.Decimal
		l.Status = models.LeaseStatus(status)
		if endDate.Valid {
			end := endDate.Time
			l.EndDate = &end
		}
		l.BillingDay = models.DefaultBillingDay
		if billingDay.Valid {
			l.BillingDay = int(billingDay.Int64)
		}
		leases = append(leases, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leases: %w", err)
	}
	return leases, nil
}

// GetRentalTransactions retrieves the rental transactions of the given leases
func (r *Repository) GetRentalTransactions(ctx context.Context, leaseIDs []string, teamID string) ([]models.Transaction, error) {
	if len(leaseIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT t.id, t.lease_id, t.period_month, t.period_year, t.amount_due, t.amount_paid, t.status, t.paid_at
		FROM rent.rental_transactions t
		JOIN rent.leases l ON l.id = t.lease_id
		WHERE t.lease_id = ANY($1) AND l.team_id = $2
		ORDER BY t.period_year, t.period_month, t.created_at`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(leaseIDs), teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rental transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var (
			t         models.Transaction
			amountDue decimal.NullDecimal
			status    string
			paidAt    pq.NullTime
		)
		if err := rows.Scan(&t.ID, &t.LeaseID, &t.PeriodMonth, &t.PeriodYear, &amountDue, &t.AmountPaid, &status, &paidAt); err != nil {
			return nil, fmt.Errorf("failed to scan rental transaction: %w", err)
		}
		t.AmountDue = amountDue.Decimal
		parsed, err := models.ParseTransactionStatus(status)
		if err != nil {
			// keep the raw value so validation reports it
			parsed = models.TransactionStatus(status)
		}
		t.Status = parsed
		if paidAt.Valid {
			at := paidAt.Time
			t.PaidAt = &at
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rental transactions: %w", err)
	}
	return txs, nil
}

// GetExpensesByTeam retrieves all expenses of a team
func (r *Repository) GetExpensesByTeam(ctx context.Context, teamID string) ([]models.Expense, error) {
	query := `
		SELECT e.id, e.team_id, COALESCE(e.property_id, l.property_id), e.lease_id, e.category, e.amount, e.expense_date
		FROM rent.expenses e
		LEFT JOIN rent.leases l ON l.id = e.lease_id
		WHERE e.team_id = $1
		ORDER BY e.expense_date, e.id`
	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		var (
			e          models.Expense
			propertyID sql.NullString
			leaseID    sql.NullString
			category   sql.NullString
			amount     decimal.NullDecimal
		)
		if err := rows.Scan(&e.ID, &e.TeamID, &propertyID, &leaseID, &category, &amount, &e.ExpenseDate); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		e.PropertyID = propertyID.String
		e.LeaseID = leaseID.String
		e.Category = category.String
		e.Amount = amount.Decimal
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read expenses: %w", err)
	}
	return expenses, nil
}

// GetPropertiesByTeam retrieves the properties of a team, for display
func (r *Repository) GetPropertiesByTeam(ctx context.Context, teamID string) ([]models.Property, error) {
	query := `
		SELECT id, team_id, address
		FROM rent.properties
		WHERE team_id = $1
		ORDER BY address`
	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	var properties []models.Property
	for rows.Next() {
		var p models.Property
		if err := rows.Scan(&p.ID, &p.TeamID, &p.Address); err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		properties = append(properties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read properties: %w", err)
	}
	return properties, nil
}

// ListTeams retrieves every team with a billing contact
func (r *Repository) ListTeams(ctx context.Context) ([]models.Team, error) {
	query := `
		SELECT id, name, billing_email
		FROM rent.teams
		WHERE billing_email IS NOT NULL AND billing_email <> ''
		ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.BillingEmail); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read teams: %w", err)
	}
	return teams, nil
}

// LinkLeaseToProperty attaches an orphan lease to a property of the same team
func (r *Repository) LinkLeaseToProperty(ctx context.Context, teamID, leaseID, propertyID string) error {
	query := `
		UPDATE rent.leases
		SET property_id = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND team_id = $1
		  AND EXISTS (SELECT 1 FROM rent.properties p WHERE p.id = $3 AND p.team_id = $1)`
	res, err := r.db.ExecContext(ctx, query, teamID, leaseID, propertyID)
	if err != nil {
		return fmt.Errorf("failed to link lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to link lease: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("lease %s or property %s: %w", leaseID, propertyID, ErrNotFound)
	}
	return nil
}
