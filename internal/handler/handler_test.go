package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/rent-ledger/internal/finance"
	"github.com/Dan9191/rent-ledger/internal/models"
	"github.com/Dan9191/rent-ledger/internal/report"
	"github.com/Dan9191/rent-ledger/internal/repository"
	"github.com/Dan9191/rent-ledger/internal/service"
)

const (
	teamID  = "6f1c2a4e-8d1b-4c55-9a0e-3b7f5d2e1a90"
	leaseID = "0b5e7c1d-2f3a-4b6c-8d9e-1a2b3c4d5e6f"
	propID  = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
)

type fakeFinancials struct {
	err      error
	gotYear  int
	gotScope finance.ScopeFilter
	linked   []string
}

func (f *fakeFinancials) yearly(teamID string, year int) *service.YearlyReport {
	return &service.YearlyReport{
		TeamID:      teamID,
		Year:        year,
		GeneratedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Months:      []models.MonthlyResult{{Month: 1, TotalExpected: decimal.NewFromInt(1000), TotalCollected: decimal.NewFromInt(1000), CollectionRate: 100}},
		Summary:     models.YearSummary{Year: year, TotalExpected: decimal.NewFromInt(1000), TotalCollected: decimal.NewFromInt(1000), CollectionRate: 100},
	}
}

func (f *fakeFinancials) YearlyFinancials(_ context.Context, teamID string, year int, scope finance.ScopeFilter) (*service.YearlyReport, error) {
	f.gotYear, f.gotScope = year, scope
	if f.err != nil {
		return nil, f.err
	}
	return f.yearly(teamID, year), nil
}

func (f *fakeFinancials) Profitability(_ context.Context, _ string, year int, scope finance.ScopeFilter) (*models.ProfitabilityReport, error) {
	f.gotYear, f.gotScope = year, scope
	if f.err != nil {
		return nil, f.err
	}
	return &models.ProfitabilityReport{
		Year:       year,
		Properties: []models.PropertyProfitability{{PropertyID: propID, PropertyAddress: "1 Main St", TotalRevenue: decimal.NewFromInt(1000), NetProfit: decimal.NewFromInt(1000), ProfitMargin: decimal.NewFromInt(100)}},
	}, nil
}

func (f *fakeFinancials) Export(ctx context.Context, teamID string, year int, scope finance.ScopeFilter) (*service.YearlyReport, *models.ProfitabilityReport, error) {
	p, err := f.Profitability(ctx, teamID, year, scope)
	if err != nil {
		return nil, nil, err
	}
	return f.yearly(teamID, year), p, nil
}

func (f *fakeFinancials) OrphanLeases(context.Context, string) ([]models.Lease, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.Lease{{ID: leaseID, TeamID: teamID, MonthlyAmount: decimal.NewFromInt(700), Status: models.LeaseActive}}, nil
}

func (f *fakeFinancials) LinkLease(_ context.Context, teamID, leaseID, propertyID string) error {
	f.linked = []string{teamID, leaseID, propertyID}
	return f.err
}

func newRouter(svc Financials) *mux.Router {
	logger, _ := test.NewNullLogger()
	h := NewHandler(svc, report.NewExporter("secret"), logger)
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods("GET")
	h.Routes(r.PathPrefix("/teams/{teamID}").Subrouter())
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(newRouter(&fakeFinancials{}), "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestYearlyFinancials(t *testing.T) {
	svc := &fakeFinancials{}
	rec := do(newRouter(svc), "GET", "/teams/"+teamID+"/financials/2025?statuses=active,terminated", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, 2025, svc.gotYear)
	assert.Equal(t, []string{"active", "terminated"}, svc.gotScope.Strings())

	var got service.YearlyReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, teamID, got.TeamID)
	require.Len(t, got.Months, 1)
	assert.Equal(t, 100, got.Months[0].CollectionRate)
}

func TestYearlyFinancials_DefaultScope(t *testing.T) {
	svc := &fakeFinancials{}
	rec := do(newRouter(svc), "GET", "/teams/"+teamID+"/financials/2025", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"active", "pending"}, svc.gotScope.Strings())
}

func TestYearlyFinancials_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		path string
		code int
	}{
		{"invalid team", "/teams/not-a-uuid/financials/2025", http.StatusBadRequest},
		{"unknown status", "/teams/" + teamID + "/financials/2025?statuses=archived", http.StatusBadRequest},
		{"non numeric year", "/teams/" + teamID + "/financials/next", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newRouter(&fakeFinancials{}), "GET", tt.path, "")
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid year", fmt.Errorf("1200: %w", service.ErrInvalidYear), http.StatusBadRequest},
		{"not found", fmt.Errorf("lease: %w", repository.ErrNotFound), http.StatusNotFound},
		{"timeout", fmt.Errorf("failed to load leases: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"other", errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newRouter(&fakeFinancials{err: tt.err}), "GET", "/teams/"+teamID+"/financials/2025/profitability", "")
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestProfitability(t *testing.T) {
	rec := do(newRouter(&fakeFinancials{}), "GET", "/teams/"+teamID+"/financials/2025/profitability", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.ProfitabilityReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Properties, 1)
	assert.Equal(t, "1 Main St", got.Properties[0].PropertyAddress)
	assert.True(t, got.Properties[0].NetProfit.Equal(decimal.NewFromInt(1000)))
}

func TestExportXML(t *testing.T) {
	rec := do(newRouter(&fakeFinancials{}), "GET", "/teams/"+teamID+"/financials/2025/report.xml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")

	raw := rec.Body.Bytes()
	require.NoError(t, report.NewExporter("secret").Verify(raw))
	doc, err := report.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, teamID, doc.TeamID)
	assert.Equal(t, 2025, doc.Year)
	require.Len(t, doc.Profitability.Properties, 1)
}

func TestOrphanLeases(t *testing.T) {
	rec := do(newRouter(&fakeFinancials{}), "GET", "/teams/"+teamID+"/leases/orphans", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Leases []models.Lease `json:"leases"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Leases, 1)
	assert.Equal(t, leaseID, got.Leases[0].ID)
}

func TestLinkLease(t *testing.T) {
	svc := &fakeFinancials{}
	rec := do(newRouter(svc), "PUT", "/teams/"+teamID+"/leases/"+leaseID+"/property", `{"property_id":"`+propID+`"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{teamID, leaseID, propID}, svc.linked)
}

func TestLinkLease_BadRequests(t *testing.T) {
	tests := []struct {
		name  string
		lease string
		body  string
	}{
		{"invalid lease", "lease-1", `{"property_id":"` + propID + `"}`},
		{"malformed body", leaseID, `{"property_id":`},
		{"missing property", leaseID, `{}`},
		{"invalid property", leaseID, `{"property_id":"p1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeFinancials{}
			rec := do(newRouter(svc), "PUT", "/teams/"+teamID+"/leases/"+tt.lease+"/property", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, svc.linked)
		})
	}
}

func TestLinkLease_NotFound(t *testing.T) {
	svc := &fakeFinancials{err: fmt.Errorf("lease: %w", repository.ErrNotFound)}
	rec := do(newRouter(svc), "PUT", "/teams/"+teamID+"/leases/"+leaseID+"/property", `{"property_id":"`+propID+`"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
