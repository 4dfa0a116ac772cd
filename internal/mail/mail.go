package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/regnify/regnify-api/config"
)

// Mailer sends the account-lifecycle notifications. Implementations must not
// block the request path for long; callers treat failures as non-fatal.
type Mailer interface {
	SendNewAccountEmail(ctx context.Context, to, password, ownerName string) error
	SendPasswordResetEmail(ctx context.Context, to, token string) error
	SendPasswordChangedEmail(ctx context.Context, to string) error
	SendHowToChangePasswordEmail(ctx context.Context, to string) error
}

// NewMailer returns an SMTP-backed mailer when mail is enabled, otherwise a
// log-only mailer so local and test environments work without a relay.
func NewMailer(cfg config.MailConfig, logger *slog.Logger) Mailer {
	if cfg.Enabled {
		return &SMTPMailer{cfg: cfg, logger: logger}
	}
	return &LogMailer{logger: logger}
}

type SMTPMailer struct {
	cfg    config.MailConfig
	logger *slog.Logger
}

func (m *SMTPMailer) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		m.cfg.From, to, subject, body)

	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

func (m *SMTPMailer) SendNewAccountEmail(_ context.Context, to, password, ownerName string) error {
	body := fmt.Sprintf("Hello %s,\n\nAn account has been created for you. Sign in with your email address and the password below, then change it.\n\nPassword: %s\n", ownerName, password)
	return m.send(to, "Welcome to REGNIFY", body)
}

func (m *SMTPMailer) SendPasswordResetEmail(_ context.Context, to, token string) error {
	body := fmt.Sprintf("A password reset was requested for your account.\n\nUse the token below to set a new password. The token can be used once and expires shortly.\n\n%s\n\nIf you did not request this, you can ignore this message.\n", token)
	return m.send(to, "Reset your REGNIFY password", body)
}

func (m *SMTPMailer) SendPasswordChangedEmail(_ context.Context, to string) error {
	body := "Your password was changed.\n\nIf this was not you, contact an administrator immediately.\n"
	return m.send(to, "Your REGNIFY password was changed", body)
}

func (m *SMTPMailer) SendHowToChangePasswordEmail(_ context.Context, to string) error {
	body := "An administrator created or updated your account.\n\nTo choose your own password, request a password reset from the sign-in page.\n"
	return m.send(to, "Getting started with your REGNIFY account", body)
}

// LogMailer records outgoing mail instead of delivering it.
type LogMailer struct {
	logger *slog.Logger
}

func (m *LogMailer) SendNewAccountEmail(ctx context.Context, to, _, ownerName string) error {
	m.logger.InfoContext(ctx, "mail disabled, skipping new-account email",
		slog.String("to", to), slog.String("owner", ownerName))
	return nil
}

func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, to, _ string) error {
	m.logger.InfoContext(ctx, "mail disabled, skipping password-reset email", slog.String("to", to))
	return nil
}

func (m *LogMailer) SendPasswordChangedEmail(ctx context.Context, to string) error {
	m.logger.InfoContext(ctx, "mail disabled, skipping password-changed email", slog.String("to", to))
	return nil
}

func (m *LogMailer) SendHowToChangePasswordEmail(ctx context.Context, to string) error {
	m.logger.InfoContext(ctx, "mail disabled, skipping how-to-change-password email", slog.String("to", to))
	return nil
}
