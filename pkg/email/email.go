// Package email sends transactional mail over SMTP.
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/homevia/homevia-backend/pkg/config"
)

// Sender delivers a single message to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender implements Sender against a standard SMTP relay.
// Supports both port 465 (implicit TLS) and port 587 (STARTTLS).
type SMTPSender struct {
	cfg config.SMTPConfig
}

// NewSMTPSender builds a sender from the relay configuration.
func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("smtp relay not configured")
	}
	return &SMTPSender{cfg: cfg}, nil
}

// Send delivers the message, honoring context cancellation before dialing.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("recipient address is required")
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		s.cfg.DefaultFrom,
		to,
		subject,
		body,
	)

	addr := s.cfg.Host + ":" + s.cfg.Port

	if s.cfg.Port == "465" {
		return s.sendImplicitTLS(addr, to, msg)
	}
	return s.sendSTARTTLS(addr, to, msg)
}

// sendImplicitTLS connects over TLS directly (port 465/SMTPS).
func (s *SMTPSender) sendImplicitTLS(addr, to, msg string) error {
	tlsCfg := &tls.Config{ServerName: s.cfg.Host}
	conn, err := tls.Dial("tcp", addr, tlsCfg)
	if err != nil {
		return fmt.Errorf("TLS dial: %w", err)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer func() {
		_ = c.Quit()
	}()

	if s.cfg.User != "" {
		auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(s.cfg.DefaultFrom); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to %s: %w", to, err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return nil
}

// sendSTARTTLS connects plain then upgrades to TLS (port 587).
func (s *SMTPSender) sendSTARTTLS(addr, to, msg string) error {
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.DefaultFrom, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
