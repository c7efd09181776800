// Package mail delivers 2FA verification codes to users. Delivery is
// fire-and-forget relative to the login response: failures are logged by the
// caller and never change the HTTP outcome.
package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/middenhq/midden/pkg/observability"
)

// Mailer sends a verification code to a destination address.
type Mailer interface {
	Send(ctx context.Context, to, code string) error
}

// SMTPMailer delivers codes over SMTP with PLAIN auth.
type SMTPMailer struct {
	host     string
	port     string
	sender   string
	password string
}

// NewSMTPMailer creates an SMTP-backed mailer.
func NewSMTPMailer(host, port, sender, password string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		sender:   sender,
		password: password,
	}
}

// Send delivers the verification code to the destination address.
func (m *SMTPMailer) Send(ctx context.Context, to, code string) error {
	msg := fmt.Sprintf("From: \"Midden 2FA\" <%s>\r\n"+
		"To: %s\r\n"+
		"Subject: Your Verification Code\r\n"+
		"\r\n"+
		"Your 2FA login code is: %s. It expires in 10 minutes.\r\n",
		m.sender, to, code)

	auth := smtp.PlainAuth("", m.sender, m.password, m.host)
	addr := m.host + ":" + m.port

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, m.sender, []string{to}, []byte(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send verification email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogMailer logs codes instead of delivering them, for development and tests.
type LogMailer struct {
	logger *observability.Logger
}

// NewLogMailer creates a logging mailer.
func NewLogMailer(logger *observability.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the code without delivering anything.
func (m *LogMailer) Send(ctx context.Context, to, code string) error {
	m.logger.WithFields(map[string]interface{}{
		"to":   to,
		"code": code,
	}).Info("verification code issued (delivery skipped)")
	return nil
}
