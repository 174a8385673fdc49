// Package mailer sends transactional email through an SMTP relay.
package mailer

import (
	"context"
	"fmt"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/wneessen/go-mail"
)

// Mailer delivers a single HTML message.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMTPConfig holds relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPMailer implements Mailer over SMTP.
type SMTPMailer struct {
	client sender
	from   string
}

// NewSMTPMailer creates a mailer for the relay in cfg. Authentication is only
// attempted when a username is configured.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp host and sender address are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.From}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string) error {
	ctx, span := observability.GetTraceLayer().TraceUpstream(ctx, "smtp", "send")
	defer span.End()

	msg, err := buildMessage(m.from, to, subject, html)
	if err != nil {
		return models.NewFieldError("email", err.Error())
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		span.RecordError(err)
		observability.LogUpstreamFailure(ctx, "smtp", "send", err)
		return models.NewUpstreamError("Mail server", err)
	}
	return nil
}

func buildMessage(from, to, subject, html string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, html)
	return msg, nil
}

// LogMailer writes messages to the application log instead of sending them.
// It is used in development and test profiles.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, to, subject, html string) error {
	observability.GlobalLogger.InfoContext(ctx, "mail not sent (log mailer)",
		"to", to,
		"subject", subject,
		"bytes", len(html),
	)
	return nil
}
