package mailer

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/tms/internal/config"
)

// Mailer dispatches a message and returns a transport message id.
type Mailer interface {
	Send(ctx context.Context, to, subject, text, html string) (string, error)
}

// SMTPMailer sends multipart text+html mail over plain SMTP with AUTH when
// credentials are configured.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

// NewSMTPMailer builds the transport from config.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers the message. No timeout is set here; a hang stalls only the
// workflow step that called it, never an HTTP response.
func (m *SMTPMailer) Send(_ context.Context, to, subject, text, html string) (string, error) {
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), m.cfg.Host)
	body := buildMessage(m.cfg.From, to, subject, messageID, text, html)

	addr := m.cfg.Host + ":" + m.cfg.Port
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, envelopeFrom(m.cfg.From), []string{to}, []byte(body)); err != nil {
		return "", fmt.Errorf("send mail to %s: %w", to, err)
	}
	return messageID, nil
}

const boundary = "tms-alt-boundary"

func buildMessage(from, to, subject, messageID, text, html string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Message-ID: %s\r\n", messageID)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(text)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(html)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.String()
}

// envelopeFrom strips a display name ("Ticket Desk <x@y>" -> "x@y").
func envelopeFrom(from string) string {
	if start := strings.LastIndex(from, "<"); start != -1 {
		if end := strings.LastIndex(from, ">"); end > start {
			return from[start+1 : end]
		}
	}
	return from
}
