package notify

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

const defaultSMTPTimeout = 30 * time.Second

// SMTPConfig configures SMTPMailer. An empty Host leaves the mailer unconfigured.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPMailer sends email through an SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	dial func(ctx context.Context, msgs ...*mail.Msg) error
}

// NewSMTPMailer builds a mailer. It never fails on missing settings; Send reports
// ErrChannelUnconfigured instead.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.From = strings.TrimSpace(cfg.From)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	m := &SMTPMailer{cfg: cfg}
	if !m.Configured() {
		return m, nil
	}

	opts := []mail.Option{
		mail.WithTimeout(cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
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
		return nil, fmt.Errorf("notify: smtp client: %w", err)
	}
	m.dial = client.DialAndSendWithContext
	return m, nil
}

// Configured reports whether host and sender are set.
func (m *SMTPMailer) Configured() bool {
	return m != nil && m.cfg.Host != "" && m.cfg.From != ""
}

// Send delivers email to every recipient in one message.
func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if !m.Configured() || m.dial == nil {
		return ErrChannelUnconfigured
	}
	msg, err := m.buildMessage(email)
	if err != nil {
		return err
	}
	if err := m.dial(ctx, msg); err != nil {
		return fmt.Errorf("notify: smtp send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) buildMessage(email Email) (*mail.Msg, error) {
	recipients := compact(email.To)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: no email recipients", ErrChannelUnconfigured)
	}
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("notify: invalid sender: %w", err)
	}
	if err := msg.To(recipients...); err != nil {
		return nil, fmt.Errorf("notify: invalid recipient: %w", err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextHTML, email.HTML)
	if email.Text != "" {
		msg.AddAlternativeString(mail.TypeTextPlain, email.Text)
	}
	for _, att := range email.Attachments {
		var opts []mail.FileOption
		if att.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(att.ContentType)))
		}
		msg.AttachReadSeeker(att.Name, bytes.NewReader(att.Data), opts...)
	}
	return msg, nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
