package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/rent-ledger/internal/clock"
	"github.com/Dan9191/rent-ledger/internal/config"
	"github.com/Dan9191/rent-ledger/internal/finance"
	"github.com/Dan9191/rent-ledger/internal/models"
	"github.com/Dan9191/rent-ledger/internal/notify"
	"github.com/Dan9191/rent-ledger/internal/service"
)

// Reconciler produces yearly reports for every team
type Reconciler interface {
	Teams(ctx context.Context) ([]models.Team, error)
	YearlyFinancials(ctx context.Context, teamID string, year int, scope finance.ScopeFilter) (*service.YearlyReport, error)
}

// Notifier delivers overdue notices
type Notifier interface {
	SendOverdueNotice(n notify.Notice) error
}

// Scheduler periodically reconciles all teams and notifies those with overdue rent
type Scheduler struct {
	cron     *cron.Cron
	svc      Reconciler
	notifier Notifier
	clock    clock.Clock
	log      *logrus.Logger
	timeout  time.Duration
}

// New registers the reminder job on cfg.ReminderSchedule
func New(cfg *config.Config, svc Reconciler, notifier Notifier, clk clock.Clock, log *logrus.Logger) (*Scheduler, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		svc:      svc,
		notifier: notifier,
		clock:    clk,
		log:      log,
		timeout:  time.Minute,
	}
	_, err := s.cron.AddFunc(cfg.ReminderSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.WithError(err).Error("Overdue reminder run failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule reminders %q: %w", cfg.ReminderSchedule, err)
	}
	return s, nil
}

// Start runs the scheduler in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Reminder scheduler started")
}

// Stop halts the scheduler and returns a context done when the running job ends
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce reconciles the current year of every team and sends a notice to each team
// with overdue rent. A failure for one team is logged and does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	teams, err := s.svc.Teams(ctx)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	sent := 0
	for _, team := range teams {
		log := s.log.WithField("team_id", team.ID)
		report, err := s.svc.YearlyFinancials(ctx, team.ID, now.Year(), finance.DefaultScope)
		if err != nil {
			log.WithError(err).Warn("Failed to reconcile team")
			continue
		}
		if !report.Summary.OverdueAmount.IsPositive() {
			continue
		}
		n := notify.Notice{
			To:             team.BillingEmail,
			TeamName:       team.Name,
			Year:           now.Year(),
			Month:          now.Month(),
			OverdueAmount:  report.Summary.OverdueAmount,
			OverdueCount:   report.Summary.OverdueCount,
			CollectionRate: report.Summary.CollectionRate,
		}
		if m := int(now.Month()); m <= len(report.Months) {
			n.PendingAmount = report.Months[m-1].PendingAmount
		}
		if err := s.notifier.SendOverdueNotice(n); err != nil {
			log.WithError(err).Warn("Failed to send overdue notice")
			continue
		}
		sent++
	}
	s.log.WithFields(logrus.Fields{"teams": len(teams), "sent": sent}).Info("Overdue reminders processed")
	return sent, nil
}
