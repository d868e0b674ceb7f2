// Package email delivers transactional access emails over SMTP.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"
)

// Mailer sends a single HTML email
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPConfig holds SMTP relay settings
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPMailer sends mail through a plain-auth SMTP relay
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer creates a mailer for the given relay
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if m.cfg.Host == "" {
		return fmt.Errorf("smtp host not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

// NoopMailer discards every message. Used when SMTP is not configured.
type NoopMailer struct{}

func (NoopMailer) Send(_ context.Context, _, _, _ string) error { return nil }

// SentMessage is a message captured by RecorderMailer
type SentMessage struct {
	To      string
	Subject string
	Body    string
}

// RecorderMailer captures sent messages for tests
type RecorderMailer struct {
	mu   sync.Mutex
	Sent []SentMessage
}

func (m *RecorderMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMessage{To: to, Subject: subject, Body: htmlBody})
	return nil
}

var (
	_ Mailer = (*SMTPMailer)(nil)
	_ Mailer = NoopMailer{}
	_ Mailer = (*RecorderMailer)(nil)
)
