package payments

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

type fakeIntents struct {
	created *stripe.PaymentIntentParams
	intent  *stripe.PaymentIntent
	err     error
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.created = params
	return f.intent, f.err
}

func (f *fakeIntents) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.intent, nil
}

func TestStripeInitiateCreatesIntentWithMetadata(t *testing.T) {
	intents := &fakeIntents{intent: &stripe.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret", Amount: 350000}}
	provider, err := NewStripeProvider(StripeProviderConfig{Intents: intents})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	got, err := provider.Initiate(context.Background(), InitiateRequest{
		TempOrderNumber: "TMP-ABC",
		Amount:          350000,
		Currency:        "NGN",
		Email:           "ada@example.com",
		IdempotencyKey:  "TMP-ABC-card",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if got.Reference != "pi_1" || got.ClientSecret != "pi_1_secret" {
		t.Fatalf("unexpected initiation %+v", got)
	}
	if *intents.created.Currency != "ngn" || *intents.created.Amount != 350000 {
		t.Fatalf("unexpected params amount=%d currency=%s", *intents.created.Amount, *intents.created.Currency)
	}
	if intents.created.Metadata[MetadataTempOrderNumber] != "TMP-ABC" {
		t.Fatalf("expected temp order number metadata, got %v", intents.created.Metadata)
	}
}

func TestStripeVerifyMapsStatus(t *testing.T) {
	intents := &fakeIntents{intent: &stripe.PaymentIntent{
		ID:       "pi_2",
		Amount:   120000,
		Currency: stripe.Currency("ngn"),
		Status:   stripe.PaymentIntentStatusSucceeded,
		Metadata: map[string]string{MetadataTempOrderNumber: "TMP-2"},
		LatestCharge: &stripe.Charge{
			Paid:    true,
			Created: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).Unix(),
		},
	}}
	provider, _ := NewStripeProvider(StripeProviderConfig{Intents: intents})

	details, err := provider.Verify(context.Background(), VerifyRequest{Reference: "pi_2"})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if details.Status != StatusSucceeded || details.Amount != 120000 || details.Currency != "NGN" {
		t.Fatalf("unexpected details %+v", details)
	}
	if details.PaidAt == nil || details.PaidAt.Day() != 1 {
		t.Fatalf("expected paid at from latest charge")
	}
	if details.Metadata[MetadataTempOrderNumber] != "TMP-2" {
		t.Fatalf("expected metadata to be copied")
	}
}

func TestStripeErrorClassification(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{&stripe.Error{HTTPStatusCode: http.StatusNotFound, Msg: "No such payment_intent"}, ErrPaymentRejected},
		{&stripe.Error{HTTPStatusCode: http.StatusBadGateway}, ErrProviderUnavailable},
		{errors.New("dial tcp: timeout"), ErrProviderUnavailable},
	}
	for _, tc := range cases {
		provider, _ := NewStripeProvider(StripeProviderConfig{Intents: &fakeIntents{err: tc.err}})
		_, err := provider.Verify(context.Background(), VerifyRequest{Reference: "pi_x"})
		if !errors.Is(err, tc.want) {
			t.Fatalf("expected %v, got %v", tc.want, err)
		}
	}
}

func TestStripeParseWebhook(t *testing.T) {
	provider, _ := NewStripeProvider(StripeProviderConfig{Intents: &fakeIntents{}, WebhookSecret: "whsec_test"})

	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_9","object":"payment_intent","amount":5000,"currency":"ngn","status":"succeeded","metadata":{"temp_order_number":"TMP-9"}}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})
	header := http.Header{}
	header.Set("Stripe-Signature", signed.Header)

	event, err := provider.ParseWebhook(payload, header)
	if err != nil {
		t.Fatalf("parse webhook: %v", err)
	}
	if event.Reference != "pi_9" || event.Status != StatusSucceeded || event.TempOrderNumber() != "TMP-9" {
		t.Fatalf("unexpected event %+v", event)
	}

	header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	if _, err := provider.ParseWebhook(payload, header); !errors.Is(err, ErrInvalidWebhook) {
		t.Fatalf("expected ErrInvalidWebhook, got %v", err)
	}
}
