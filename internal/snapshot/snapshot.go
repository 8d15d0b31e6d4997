// Package snapshot serves rental data from a JSON export instead of Postgres, for offline
// reconciliation and reproducing reports.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Dan9191/rent-ledger/internal/models"
	"github.com/Dan9191/rent-ledger/internal/repository"
)

// Snapshot is the JSON document layout
type Snapshot struct {
	Teams        []models.Team        `json:"teams"`
	Properties   []models.Property    `json:"properties"`
	Leases       []models.Lease       `json:"leases"`
	Transactions []models.Transaction `json:"transactions"`
	Expenses     []models.Expense     `json:"expenses"`

	mu sync.RWMutex
}

// Load decodes a snapshot and normalizes transaction status spellings
func Load(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	for i, t := range s.Transactions {
		if st, err := models.ParseTransactionStatus(string(t.Status)); err == nil {
			s.Transactions[i].Status = st
		}
	}
	return &s, nil
}

// LoadFile reads a snapshot from path
func LoadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// GetLeasesByTeam returns the team's leases whose status is in statuses
func (s *Snapshot) GetLeasesByTeam(_ context.Context, teamID string, statuses []string) ([]models.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []models.Lease
	for _, l := range s.Leases {
		if l.TeamID == teamID && want[string(l.Status)] {
			out = append(out, l)
		}
	}
	return out, nil
}

// GetRentalTransactions returns the transactions of the given leases
func (s *Snapshot) GetRentalTransactions(_ context.Context, leaseIDs []string, _ string) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]bool, len(leaseIDs))
	for _, id := range leaseIDs {
		ids[id] = true
	}
	var out []models.Transaction
	for _, t := range s.Transactions {
		if ids[t.LeaseID] {
			out = append(out, t)
		}
	}
	return out, nil
}

// GetExpensesByTeam returns the team's expenses, resolving the property through the
// lease when only a lease is set
func (s *Snapshot) GetExpensesByTeam(_ context.Context, teamID string) ([]models.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	leaseProperty := make(map[string]string, len(s.Leases))
	for _, l := range s.Leases {
		leaseProperty[l.ID] = l.PropertyID
	}
	var out []models.Expense
	for _, e := range s.Expenses {
		if e.TeamID != teamID {
			continue
		}
		if e.PropertyID == "" && e.LeaseID != "" {
			e.PropertyID = leaseProperty[e.LeaseID]
		}
		out = append(out, e)
	}
	return out, nil
}

// GetPropertiesByTeam returns the team's properties
func (s *Snapshot) GetPropertiesByTeam(_ context.Context, teamID string) ([]models.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Property
	for _, p := range s.Properties {
		if p.TeamID == teamID {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListTeams returns the teams with a billing contact
func (s *Snapshot) ListTeams(context.Context) ([]models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Team
	for _, t := range s.Teams {
		if t.BillingEmail != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// LinkLeaseToProperty sets the property of a lease in memory
func (s *Snapshot) LinkLeaseToProperty(_ context.Context, teamID, leaseID, propertyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, p := range s.Properties {
		if p.ID == propertyID && p.TeamID == teamID {
			found = true
			break
		}
	}
	if found {
		for i, l := range s.Leases {
			if l.ID == leaseID && l.TeamID == teamID {
				s.Leases[i].PropertyID = propertyID
				return nil
			}
		}
	}
	return fmt.Errorf("lease %s or property %s: %w", leaseID, propertyID, repository.ErrNotFound)
}

// Save writes the snapshot as indented JSON
func (s *Snapshot) Save(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}
