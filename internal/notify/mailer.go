// Package notify delivers rendered messages to users. The core only
// decides when to send and what the payload is; delivery itself is an
// external concern behind the Dispatcher interface.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
)

// Dispatcher sends one rendered message to one recipient.
type Dispatcher interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer is the production Dispatcher, speaking authenticated SMTP.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(m.host,
		mail.WithPort(m.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.username),
		mail.WithPassword(m.password),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	defer client.Close()

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	slog.InfoContext(ctx, "Mail sent", "to", to, "subject", subject)
	return nil
}

// LogDispatcher logs messages instead of sending them. Used when SMTP is
// not configured, so sweeps still run end to end in development.
type LogDispatcher struct{}

func (LogDispatcher) Send(ctx context.Context, to, subject, body string) error {
	slog.InfoContext(ctx, "Mail suppressed (no SMTP configured)",
		"to", to,
		"subject", subject,
		"body_len", len(body))
	return nil
}
