package mailer

import (
	"fmt"

	"serveq/pkg/logger"

	"gopkg.in/gomail.v2"
)

// Mailer delivers passcodes and booking confirmations over SMTP. Delivery
// is best-effort: the booking flow never fails because an email bounced.
type Mailer interface {
	Send(to, subject, body string) error
	Enabled() bool
}

type smtpMailer struct {
	host string
	port int
	user string
	pass string
	from string
	log  *logger.Logger
}

func New(host string, port int, user, pass, from string, log *logger.Logger) Mailer {
	return &smtpMailer{
		host: host,
		port: port,
		user: user,
		pass: pass,
		from: from,
		log:  log,
	}
}

func (m *smtpMailer) Enabled() bool {
	return m.host != ""
}

func (m *smtpMailer) Send(to, subject, body string) error {
	if !m.Enabled() {
		return fmt.Errorf("mailer is not configured")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	dialer := gomail.NewDialer(m.host, m.port, m.user, m.pass)
	if err := dialer.DialAndSend(msg); err != nil {
		m.log.Error("Failed to send email", "to", to, "subject", subject, "error", err)
		return err
	}

	m.log.Info("Email sent", "to", to, "subject", subject)
	return nil
}
