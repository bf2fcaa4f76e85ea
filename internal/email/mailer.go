// Package email renders and sends the activity reminder message.
//
// This file implements the SMTPS submission side on top of go-mail.
package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/QuitPrep/internal/models"
	"github.com/wneessen/go-mail"
)

// Constants for reminder delivery
const (
	// DefaultSMTPPort is the implicit-TLS submission port.
	DefaultSMTPPort = 465
	// RecipientDomain is the Prolific relay domain; participants are
	// reachable as <prolific_id>@RecipientDomain.
	RecipientDomain = "email.prolific.co"
	// DefaultSubject is the reminder subject line.
	DefaultSubject = "Activity Reminder - Preparing for Quitting Smoking"
)

// Opts holds configuration options for the Mailer.
type Opts struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

// Option defines a configuration option for the Mailer.
type Option func(*Opts)

// WithHost sets the SMTP server hostname.
func WithHost(host string) Option {
	return func(o *Opts) {
		o.Host = host
	}
}

// WithPort sets the SMTP submission port.
func WithPort(port int) Option {
	return func(o *Opts) {
		o.Port = port
	}
}

// WithCredentials sets the SMTP username and password.
func WithCredentials(username, password string) Option {
	return func(o *Opts) {
		o.Username = username
		o.Password = password
	}
}

// WithFrom sets the sender address.
func WithFrom(from string) Option {
	return func(o *Opts) {
		o.From = from
	}
}

// WithSubject overrides the reminder subject line.
func WithSubject(subject string) Option {
	return func(o *Opts) {
		o.Subject = subject
	}
}

// Mailer sends reminder emails over SMTPS.
type Mailer struct {
	client  *mail.Client
	from    string
	subject string
}

// NewMailer creates a Mailer from the provided options. Host, credentials,
// and sender address are required.
func NewMailer(opts ...Option) (*Mailer, error) {
	cfg := Opts{Port: DefaultSMTPPort, Subject: DefaultSubject}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewMailer invoked", "host", cfg.Host, "port", cfg.Port, "from_set", cfg.From != "")

	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host not set")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP sender address not set")
	}
	if cfg.Username == "" {
		cfg.Username = cfg.From
	}

	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	)
	if err != nil {
		slog.Error("NewMailer: failed to create SMTP client", "error", err, "host", cfg.Host)
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	return &Mailer{client: client, from: cfg.From, subject: cfg.Subject}, nil
}

// SendReminder renders and submits the activity reminder for one session.
func (m *Mailer) SendReminder(ctx context.Context, prolificID, displayName, formulation string, sessionNum int) error {
	body, err := RenderReminder(DisplayName(displayName), formulation, sessionNum, models.FinalSessionNum)
	if err != nil {
		slog.Error("Mailer.SendReminder: render failed", "error", err, "prolificID", prolificID)
		return err
	}

	recipient := prolificID + "@" + RecipientDomain

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid sender address %s: %w", m.from, err)
	}
	if err := msg.To(recipient); err != nil {
		return fmt.Errorf("invalid recipient address %s: %w", recipient, err)
	}
	msg.Subject(m.subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		slog.Error("Mailer.SendReminder: submission failed", "error", err, "to", recipient)
		return fmt.Errorf("failed to send reminder to %s: %w", recipient, err)
	}
	slog.Info("Mailer.SendReminder: reminder sent", "to", recipient, "session", sessionNum)
	return nil
}
