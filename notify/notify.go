// Package notify emails buyers about their payments.
package notify

import (
	"fmt"
	"strings"

	"github.com/lmshub/coursepay/config"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

type Receipt struct {
	To        string
	Name      string
	PaymentID string
	Amount    decimal.Decimal
	Currency  string
	Courses   []string
}

type Mailer interface {
	SendReceipt(r Receipt) error
}

// New returns an SMTP mailer, or a mailer that only logs when no SMTP host is
// configured.
func New(cfg config.Email, log logrus.FieldLogger) Mailer {
	if cfg.Host == "" {
		return &logMailer{log: log}
	}
	return &smtpMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

type smtpMailer struct {
	dialer *gomail.Dialer
	from   string
}

func (s *smtpMailer) SendReceipt(r Receipt) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.from, "Course Store"))
	m.SetHeader("To", r.To)
	m.SetHeader("Subject", Subject(r))
	m.SetBody("text/plain", Body(r))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("sending receipt for payment[%s]: %w", r.PaymentID, err)
	}
	return nil
}

type logMailer struct {
	log logrus.FieldLogger
}

func (l *logMailer) SendReceipt(r Receipt) error {
	l.log.WithFields(logrus.Fields{
		"to":         r.To,
		"payment_id": r.PaymentID,
	}).Info("smtp not configured, receipt not sent")
	return nil
}

func Subject(r Receipt) string {
	return fmt.Sprintf("Your receipt for payment %s", r.PaymentID)
}

func Body(r Receipt) string {
	var b strings.Builder

	name := r.Name
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	b.WriteString("Thanks for your purchase. You are now enrolled in:\n\n")
	for _, c := range r.Courses {
		fmt.Fprintf(&b, "  - %s\n", c)
	}
	fmt.Fprintf(&b, "\nTotal paid: %s %s\n", r.Amount.StringFixed(2), strings.ToUpper(r.Currency))
	fmt.Fprintf(&b, "Payment reference: %s\n", r.PaymentID)

	return b.String()
}
