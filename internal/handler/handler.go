package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/rent-ledger/internal/finance"
	"github.com/Dan9191/rent-ledger/internal/models"
	"github.com/Dan9191/rent-ledger/internal/report"
	"github.com/Dan9191/rent-ledger/internal/repository"
	"github.com/Dan9191/rent-ledger/internal/service"
)

// Financials is the service surface the handlers depend on
type Financials interface {
	YearlyFinancials(ctx context.Context, teamID string, year int, scope finance.ScopeFilter) (*service.YearlyReport, error)
	Profitability(ctx context.Context, teamID string, year int, scope finance.ScopeFilter) (*models.ProfitabilityReport, error)
	Export(ctx context.Context, teamID string, year int, scope finance.ScopeFilter) (*service.YearlyReport, *models.ProfitabilityReport, error)
	OrphanLeases(ctx context.Context, teamID string) ([]models.Lease, error)
	LinkLease(ctx context.Context, teamID, leaseID, propertyID string) error
}

type Handler struct {
	svc      Financials
	exporter *report.Exporter
	log      *logrus.Logger
}

func NewHandler(svc Financials, exporter *report.Exporter, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, exporter: exporter, log: log}
}

// Routes registers the team scoped endpoints on r, which is expected to carry
// authentication middleware
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/financials/{year:[0-9]+}", h.YearlyFinancials).Methods("GET")
	r.HandleFunc("/financials/{year:[0-9]+}/profitability", h.Profitability).Methods("GET")
	r.HandleFunc("/financials/{year:[0-9]+}/report.xml", h.ExportXML).Methods("GET")
	r.HandleFunc("/leases/orphans", h.OrphanLeases).Methods("GET")
	r.HandleFunc("/leases/{leaseID}/property", h.LinkLease).Methods("PUT")
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// YearlyFinancials handles the monthly ledger of a team
func (h *Handler) YearlyFinancials(w http.ResponseWriter, r *http.Request) {
	teamID, year, scope, ok := h.yearRequest(w, r)
	if !ok {
		return
	}
	rep, err := h.svc.YearlyFinancials(r.Context(), teamID, year, scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Profitability handles the per-property breakdown of a team's year
func (h *Handler) Profitability(w http.ResponseWriter, r *http.Request) {
	teamID, year, scope, ok := h.yearRequest(w, r)
	if !ok {
		return
	}
	rep, err := h.svc.Profitability(r.Context(), teamID, year, scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// ExportXML handles the signed XML export of a team's year
func (h *Handler) ExportXML(w http.ResponseWriter, r *http.Request) {
	teamID, year, scope, ok := h.yearRequest(w, r)
	if !ok {
		return
	}
	yearly, profit, err := h.svc.Export(r.Context(), teamID, year, scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"rent-ledger-"+strconv.Itoa(year)+".xml\"")
	_, err = h.exporter.WriteTo(w, report.Document{
		TeamID:        yearly.TeamID,
		Year:          yearly.Year,
		GeneratedAt:   yearly.GeneratedAt,
		Months:        yearly.Months,
		Summary:       yearly.Summary,
		Profitability: *profit,
	})
	if err != nil {
		h.log.WithError(err).WithField("team_id", teamID).Error("Failed to stream report")
	}
}

// OrphanLeases handles the list of leases without a property
func (h *Handler) OrphanLeases(w http.ResponseWriter, r *http.Request) {
	teamID, ok := teamParam(w, r)
	if !ok {
		return
	}
	leases, err := h.svc.OrphanLeases(r.Context(), teamID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"leases": leases})
}

type linkRequest struct {
	PropertyID string `json:"property_id"`
}

// LinkLease handles attaching an orphan lease to a property
func (h *Handler) LinkLease(w http.ResponseWriter, r *http.Request) {
	teamID, ok := teamParam(w, r)
	if !ok {
		return
	}
	leaseID := mux.Vars(r)["leaseID"]
	if _, err := uuid.Parse(leaseID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid lease id")
		return
	}
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := uuid.Parse(req.PropertyID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid property id")
		return
	}
	if err := h.svc.LinkLease(r.Context(), teamID, leaseID, req.PropertyID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func teamParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(mux.Vars(r)["teamID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid team id")
		return "", false
	}
	return id.String(), true
}

func (h *Handler) yearRequest(w http.ResponseWriter, r *http.Request) (string, int, finance.ScopeFilter, bool) {
	teamID, ok := teamParam(w, r)
	if !ok {
		return "", 0, finance.ScopeFilter{}, false
	}
	year, err := strconv.Atoi(mux.Vars(r)["year"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return "", 0, finance.ScopeFilter{}, false
	}
	scope, err := finance.ParseScope(r.URL.Query().Get("statuses"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", 0, finance.ScopeFilter{}, false
	}
	return teamID, year, scope, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidYear), errors.Is(err, models.ErrMissingProperty):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, context.DeadlineExceeded):
		h.log.WithError(err).WithField("path", r.URL.Path).Warn("Request timed out")
		writeError(w, http.StatusGatewayTimeout, "data source timed out")
	default:
		h.log.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
