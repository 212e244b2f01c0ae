package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// smsBodyLimit keeps alerts within two concatenated segments.
const smsBodyLimit = 306

// TwilioConfig configures TwilioSMS. Empty credentials or sender leave it unconfigured.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioSMS sends admin alerts through the Twilio Messages API.
type TwilioSMS struct {
	from string
	api  messageCreator
}

// NewTwilioSMS builds the sender. Missing credentials produce an unconfigured sender.
func NewTwilioSMS(cfg TwilioConfig) *TwilioSMS {
	sid := strings.TrimSpace(cfg.AccountSID)
	token := strings.TrimSpace(cfg.AuthToken)
	from := strings.TrimSpace(cfg.From)
	if sid == "" || token == "" || from == "" {
		return &TwilioSMS{}
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: sid,
		Password: token,
	})
	return &TwilioSMS{from: from, api: client.Api}
}

// Configured reports whether credentials are present.
func (s *TwilioSMS) Configured() bool {
	return s != nil && s.api != nil && s.from != ""
}

// SendSMS sends body to each recipient and joins per-recipient failures.
func (s *TwilioSMS) SendSMS(ctx context.Context, to []string, body string) error {
	if !s.Configured() {
		return ErrChannelUnconfigured
	}
	recipients := compact(to)
	if len(recipients) == 0 {
		return fmt.Errorf("%w: no sms recipients", ErrChannelUnconfigured)
	}
	body = truncate(body, smsBodyLimit)

	var errs []error
	for _, recipient := range recipients {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		params := &openapi.CreateMessageParams{}
		params.SetTo(recipient)
		params.SetFrom(s.from)
		params.SetBody(body)
		if _, err := s.api.CreateMessage(params); err != nil {
			errs = append(errs, fmt.Errorf("notify: sms to %s: %w", maskPhone(recipient), err))
		}
	}
	return errors.Join(errs...)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func maskPhone(number string) string {
	if len(number) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}
