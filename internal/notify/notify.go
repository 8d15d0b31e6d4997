package notify

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/rent-ledger/internal/config"
)

// Notice is the monthly state of a team's rent roll sent to its billing contact
type Notice struct {
	To             string
	TeamName       string
	Year           int
	Month          time.Month
	OverdueAmount  decimal.Decimal
	OverdueCount   int
	PendingAmount  decimal.Decimal
	CollectionRate int
}

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	s := &Sender{cfg: cfg, logger: logger}
	s.send = func(e *email.Email) error {
		addr := fmt.Sprintf("%s:%s", cfg.SMTPHost, cfg.SMTPPort)
		var auth smtp.Auth
		if cfg.SMTPUsername != "" {
			auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
		}
		return e.Send(addr, auth)
	}
	return s
}

// Message builds the overdue notice email
func (s *Sender) Message(n Notice) *email.Email {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{n.To}
	e.Subject = fmt.Sprintf("Overdue rent for %s %d", n.Month, n.Year)

	body := fmt.Sprintf("Hello %s,\n\n", n.TeamName)
	body += fmt.Sprintf(
		"%d rent payment(s) totalling %s are overdue as of %s %d.\n",
		n.OverdueCount, n.OverdueAmount.StringFixed(2), n.Month, n.Year,
	)
	if n.PendingAmount.IsPositive() {
		body += fmt.Sprintf("A further %s is due this month and not yet collected.\n", n.PendingAmount.StringFixed(2))
	}
	body += fmt.Sprintf("Collection rate for the year so far: %d%%.\n", n.CollectionRate)
	body += "\nOpen the financials dashboard to follow up with the tenants.\n\nRent Ledger"
	e.Text = []byte(body)
	return e
}

// SendOverdueNotice emails n to the team's billing contact
func (s *Sender) SendOverdueNotice(n Notice) error {
	e := s.Message(n)
	if err := s.send(e); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", n.To, err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.Infof("Email sent to %s: %s", n.To, e.Subject)
	return nil
}
