// Package notify delivers finished digests by email.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	gomail "gopkg.in/mail.v2"

	"github.com/bxxst/aixbt-agent/internal/domain/digest"
	"github.com/bxxst/aixbt-agent/internal/logger"
)

// EmailConfig holds SMTP configuration for sending emails.
type EmailConfig struct {
	SMTPServer string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	FromEmail  string
	ToEmails   []string
}

// EmailSender publishes a digest via SMTP.
type EmailSender struct {
	cfg  EmailConfig
	send func(*gomail.Message) error
}

var _ digest.Publisher = (*EmailSender)(nil)

func NewEmailSender(cfg EmailConfig) *EmailSender {
	s := &EmailSender{cfg: cfg}
	s.send = s.dialAndSend
	return s
}

func (s *EmailSender) Name() string { return "email" }

// Subject summarizes the batch in one line.
func Subject(b *digest.Batch) string {
	tickers := make([]string, 0, len(b.Messages))
	seen := make(map[string]bool)
	for _, m := range b.Messages {
		t := string(m.Ticker)
		if m.Ticker.Resolved() && !seen[t] {
			seen[t] = true
			tickers = append(tickers, t)
		}
	}
	subject := fmt.Sprintf("@%s digest: %d posts", b.Account, len(b.Messages))
	if len(tickers) > 0 {
		subject += " (" + strings.Join(tickers, ", ") + ")"
	}
	return subject
}

// HTMLBody renders every message as a paragraph.
func HTMLBody(b *digest.Batch) string {
	var sb strings.Builder
	for _, m := range b.Messages {
		sb.WriteString("<p>")
		for i, line := range strings.Split(m.Render(), "\n") {
			if i > 0 {
				sb.WriteString("<br>")
			}
			sb.WriteString(html.EscapeString(line))
		}
		sb.WriteString("</p>\n")
	}
	return sb.String()
}

// Publish sends the batch as text with an HTML alternative.
func (s *EmailSender) Publish(ctx context.Context, b *digest.Batch) error {
	if len(s.cfg.ToEmails) == 0 {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.FromEmail)
	m.SetHeader("To", s.cfg.ToEmails...)
	m.SetHeader("Subject", Subject(b))
	m.SetBody("text/plain", b.Text())
	m.AddAlternative("text/html", HTMLBody(b))

	if err := s.send(m); err != nil {
		return fmt.Errorf("send digest %s: %w", b.ID, err)
	}
	logger.Info(ctx, "Digest emailed", "batch_id", b.ID, "recipients", len(s.cfg.ToEmails))
	return nil
}

func (s *EmailSender) dialAndSend(m *gomail.Message) error {
	dialer := gomail.NewDialer(s.cfg.SMTPServer, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPass)
	dialer.Timeout = 10 * time.Second
	return dialer.DialAndSend(m)
}
