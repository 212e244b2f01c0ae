package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/go-rod/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/wneessen/go-mail"
)

func TestUnconfiguredChannelsReportTypedError(t *testing.T) {
	ctx := context.Background()

	mailer, err := NewSMTPMailer(SMTPConfig{})
	require.NoError(t, err)
	assert.False(t, mailer.Configured())
	assert.ErrorIs(t, mailer.Send(ctx, Email{To: []string{"a@example.com"}}), ErrChannelUnconfigured)

	sms := NewTwilioSMS(TwilioConfig{AccountSID: "AC123"})
	assert.False(t, sms.Configured())
	assert.ErrorIs(t, sms.SendSMS(ctx, []string{"+234800"}, "hi"), ErrChannelUnconfigured)

	renderer := NewRodRenderer(RodRendererConfig{})
	_, err = renderer.RenderPDF(ctx, "<p>x</p>")
	assert.ErrorIs(t, err, ErrChannelUnconfigured)

	var disabled Disabled
	assert.ErrorIs(t, disabled.Send(ctx, Email{}), ErrChannelUnconfigured)
}

func TestSMTPMailerSendsHTMLWithAttachment(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPConfig{Host: "smtp.test", Port: 2525, From: "orders@southplace.test"})
	require.NoError(t, err)

	var sent []*mail.Msg
	mailer.dial = func(_ context.Context, msgs ...*mail.Msg) error {
		sent = append(sent, msgs...)
		return nil
	}

	err = mailer.Send(context.Background(), Email{
		To:      []string{" kitchen@southplace.test ", ""},
		Subject: "New order",
		HTML:    "<p>hello</p>",
		Text:    "hello",
		Attachments: []Attachment{
			{Name: "SP-1.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
		},
	})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	recipients, err := sent[0].GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"kitchen@southplace.test"}, recipients)
	assert.Len(t, sent[0].GetAttachments(), 1)
}

func TestSMTPMailerRequiresRecipients(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPConfig{Host: "smtp.test", From: "orders@southplace.test"})
	require.NoError(t, err)
	mailer.dial = func(context.Context, ...*mail.Msg) error { return nil }

	err = mailer.Send(context.Background(), Email{To: []string{" "}})
	assert.ErrorIs(t, err, ErrChannelUnconfigured)
}

func TestSMTPMailerWrapsDialFailure(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPConfig{Host: "smtp.test", From: "orders@southplace.test"})
	require.NoError(t, err)
	boom := errors.New("connection refused")
	mailer.dial = func(context.Context, ...*mail.Msg) error { return boom }

	err = mailer.Send(context.Background(), Email{To: []string{"a@example.com"}, HTML: "<p>x</p>"})
	assert.ErrorIs(t, err, boom)
}

type fakeMessages struct {
	sent []openapi.CreateMessageParams
	fail map[string]error
}

func (f *fakeMessages) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.sent = append(f.sent, *params)
	if err := f.fail[*params.To]; err != nil {
		return nil, err
	}
	return &openapi.ApiV2010Message{}, nil
}

func TestTwilioSMSSendsToEachRecipient(t *testing.T) {
	api := &fakeMessages{fail: map[string]error{"+2348000000002": errors.New("unreachable")}}
	sms := &TwilioSMS{from: "+15005550006", api: api}

	err := sms.SendSMS(context.Background(), []string{"+2348000000001", "+2348000000002"}, "New order SP-2025-000001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "*********0002")
	require.Len(t, api.sent, 2)
	assert.Equal(t, "+15005550006", *api.sent[0].From)
	assert.Equal(t, "New order SP-2025-000001", *api.sent[0].Body)
}

func TestTwilioSMSTruncatesLongBodies(t *testing.T) {
	api := &fakeMessages{}
	sms := &TwilioSMS{from: "+15005550006", api: api}

	long := make([]byte, 400)
	for i := range long {
		long[i] = 'a'
	}
	require.NoError(t, sms.SendSMS(context.Background(), []string{"+2348000000001"}, string(long)))
	assert.Len(t, []rune(*api.sent[0].Body), smsBodyLimit)
}

func TestRodRendererPropagatesConnectFailure(t *testing.T) {
	renderer := NewRodRenderer(RodRendererConfig{Enabled: true})
	boom := errors.New("no chromium")
	renderer.connect = func(context.Context) (*rod.Browser, func(), error) {
		return nil, nil, boom
	}

	_, err := renderer.RenderPDF(context.Background(), "<p>x</p>")
	assert.ErrorIs(t, err, boom)
}
