package infra

import (
	"context"
	"fmt"
	"log"
	"sync"

	"gopkg.in/gomail.v2"

	"gestionlearn.com/internal/config"
	"gestionlearn.com/internal/domain"
)

// NewMailer returns an SMTP mailer, or a LogMailer when no SMTP host is configured.
func NewMailer(cfg config.MailConfig) domain.Mailer {
	if cfg.Host == "" {
		log.Println("Mailer: no SMTP host configured, emails will be logged")
		return NewLogMailer()
	}
	return NewSMTPMailer(cfg)
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

var _ domain.Mailer = (*SMTPMailer)(nil)

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.SSL
	return &SMTPMailer{dialer: d, from: cfg.From}
}

func (m *SMTPMailer) Send(ctx context.Context, msg domain.MailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		gm.AddAlternative("text/html", msg.HTML)
	}

	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(gm) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogMailer writes messages to the log instead of sending them and keeps a
// copy of each one.
type LogMailer struct {
	mu   sync.Mutex
	sent []domain.MailMessage
}

var _ domain.Mailer = (*LogMailer)(nil)

func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

func (m *LogMailer) Send(_ context.Context, msg domain.MailMessage) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	log.Printf("Mailer: to=%s subject=%q", msg.To, msg.Subject)
	return nil
}

// Sent returns the messages sent so far.
func (m *LogMailer) Sent() []domain.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.MailMessage, len(m.sent))
	copy(out, m.sent)
	return out
}
