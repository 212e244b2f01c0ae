// Package notify delivers order notifications over email, SMS and rendered PDF invoices.
package notify

import (
	"context"
	"errors"
)

// ErrChannelUnconfigured is returned by a channel whose credentials or recipients are missing.
var ErrChannelUnconfigured = errors.New("notify: channel not configured")

// Attachment is a file carried by an Email.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Email is a single HTML message.
type Email struct {
	To          []string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// SMSSender sends a text message to each recipient.
type SMSSender interface {
	SendSMS(ctx context.Context, to []string, body string) error
}

// PDFRenderer converts an HTML document into PDF bytes.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// Disabled implements every channel by returning ErrChannelUnconfigured.
type Disabled struct{}

func (Disabled) Send(context.Context, Email) error               { return ErrChannelUnconfigured }
func (Disabled) SendSMS(context.Context, []string, string) error { return ErrChannelUnconfigured }
func (Disabled) RenderPDF(context.Context, string) ([]byte, error) {
	return nil, ErrChannelUnconfigured
}
