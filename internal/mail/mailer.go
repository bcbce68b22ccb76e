// Package mail sends transactional email.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"

	"pollpick/internal/logger"
)

// Mailer delivers account emails.
type Mailer interface {
	SendVerification(ctx context.Context, to, link string) error
}

const verificationSubject = "Verify your email"

func verificationBody(link string) string {
	return "Hi,\n\nPlease confirm your email address by opening the link below:\n\n" +
		link + "\n\nIf you did not create an account you can ignore this message.\n"
}

// SMTPMailer sends through an SMTP relay with opportunistic STARTTLS.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, username: username, password: password, from: from}
}

func (m *SMTPMailer) SendVerification(ctx context.Context, to, link string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	msg.Subject(verificationSubject)
	msg.SetBodyString(gomail.TypeTextPlain, verificationBody(link))

	opts := []gomail.Option{
		gomail.WithPort(m.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}
	if m.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.username),
			gomail.WithPassword(m.password),
		)
	}
	client, err := gomail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send verification mail: %w", err)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them. Used when
// no SMTP host is configured.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer() *LogMailer {
	return &LogMailer{log: logger.With("mail")}
}

func (m *LogMailer) SendVerification(ctx context.Context, to, link string) error {
	m.log.Info("verification mail not sent, smtp disabled", "to", to, "link", link)
	return nil
}
