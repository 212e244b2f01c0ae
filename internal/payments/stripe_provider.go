package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// ProviderLogger defines the logging contract for provider operations.
type ProviderLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey        string
	WebhookSecret string
	Backends      *stripe.Backends
	Logger        ProviderLogger
	Clock         func() time.Time
	Intents       stripePaymentIntentAPI
}

// StripeProvider is the card gateway. Payments are collected through PaymentIntents confirmed by
// the embedded card element in the storefront.
type StripeProvider struct {
	intents       stripePaymentIntentAPI
	webhookSecret string
	clock         func() time.Time
	logger        ProviderLogger
}

var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	intents := cfg.Intents
	if intents == nil {
		if apiKey == "" {
			return nil, errors.New("stripe: api key is required")
		}
		intents = client.New(apiKey, cfg.Backends).PaymentIntents
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		intents:       intents,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Name implements Provider.
func (p *StripeProvider) Name() string { return ProviderStripe }

// Initiate creates a PaymentIntent and returns its client secret.
func (p *StripeProvider) Initiate(ctx context.Context, req InitiateRequest) (Initiation, error) {
	if p == nil {
		return Initiation{}, errors.New("stripe: provider is nil")
	}
	if req.Amount <= 0 {
		return Initiation{}, fmt.Errorf("%w: amount must be positive", ErrPaymentRejected)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		params.ReceiptEmail = stripe.String(email)
	}
	params.Metadata = make(map[string]string, len(req.Metadata)+1)
	maps.Copy(params.Metadata, req.Metadata)
	params.Metadata[MetadataTempOrderNumber] = req.TempOrderNumber

	intent, err := p.intents.New(params)
	if err != nil {
		return Initiation{}, classifyStripeError("create payment intent", err)
	}

	p.logger(ctx, "payments.stripe.intent.created", map[string]any{
		"paymentIntent":   intent.ID,
		"tempOrderNumber": req.TempOrderNumber,
		"amount":          intent.Amount,
	})

	return Initiation{
		Provider:     ProviderStripe,
		Reference:    intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// Verify retrieves the PaymentIntent identified by the reference.
func (p *StripeProvider) Verify(ctx context.Context, req VerifyRequest) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("stripe: provider is nil")
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return PaymentDetails{}, fmt.Errorf("%w: reference is required", ErrPaymentRejected)
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")

	intent, err := p.intents.Get(reference, params)
	if err != nil {
		return PaymentDetails{}, classifyStripeError("lookup payment intent", err)
	}
	return stripePaymentDetails(intent), nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes PaymentIntent events.
func (p *StripeProvider) ParseWebhook(payload []byte, header http.Header) (WebhookEvent, error) {
	if p == nil || p.webhookSecret == "" {
		return WebhookEvent{}, fmt.Errorf("%w: stripe webhook secret not configured", ErrInvalidWebhook)
	}
	event, err := webhook.ConstructEventWithOptions(payload, header.Get("Stripe-Signature"), p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	result := WebhookEvent{Provider: ProviderStripe, ID: event.ID, Type: string(event.Type)}
	if !strings.HasPrefix(result.Type, "payment_intent.") || event.Data == nil {
		return result, nil
	}
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: decode payment intent: %v", ErrInvalidWebhook, err)
	}
	details := stripePaymentDetails(&intent)
	result.Reference = details.Reference
	result.Status = details.Status
	result.Metadata = details.Metadata
	return result, nil
}

func stripePaymentDetails(intent *stripe.PaymentIntent) PaymentDetails {
	if intent == nil {
		return PaymentDetails{}
	}

	status := StatusPending
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		status = StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		status = StatusFailed
	}

	var paidAt *time.Time
	if charge := intent.LatestCharge; charge != nil {
		if charge.Paid {
			t := time.Unix(charge.Created, 0).UTC()
			paidAt = &t
		}
		if charge.Refunded {
			status = StatusRefunded
		}
	}

	currency := strings.ToUpper(string(intent.Currency))
	if currency == "" && intent.LatestCharge != nil {
		currency = strings.ToUpper(string(intent.LatestCharge.Currency))
	}

	raw := map[string]any{}
	if data, err := json.Marshal(intent); err == nil {
		_ = json.Unmarshal(data, &raw)
	}

	return PaymentDetails{
		Provider:  ProviderStripe,
		Reference: intent.ID,
		Status:    status,
		Amount:    intent.Amount,
		Currency:  currency,
		PaidAt:    paidAt,
		Metadata:  maps.Clone(intent.Metadata),
		Raw:       raw,
	}
}

func classifyStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError || stripeErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: stripe: %s: %v", ErrProviderUnavailable, op, err)
		}
		if stripeErr.HTTPStatusCode >= http.StatusBadRequest || stripeErr.Type == stripe.ErrorTypeCard {
			return fmt.Errorf("%w: stripe: %s: %v", ErrPaymentRejected, op, err)
		}
	}
	return fmt.Errorf("%w: stripe: %s: %v", ErrProviderUnavailable, op, err)
}
