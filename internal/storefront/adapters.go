package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/payments"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

// PaymentAPI starts provider payments for a staged order.
type PaymentAPI interface {
	InitiatePayment(ctx context.Context, tempOrderNumber string, method domain.PaymentMethod) (services.PaymentInitiation, error)
}

// View is what a payment step renders.
type View struct {
	Method   domain.PaymentMethod
	Provider string
	Amount   domain.Money
	Currency string
	// MinimumAmount is set for the card gateway.
	MinimumAmount domain.Money
}

// PaymentInput is what the customer submitted on the payment step.
type PaymentInput struct {
	// PaymentMethodID is the tokenised card produced by the embedded card form.
	PaymentMethodID string
	Email           string
}

// CardConfirmer confirms a card intent in the embedded card UI and returns the intent id.
type CardConfirmer interface {
	ConfirmCardPayment(ctx context.Context, clientSecret string, input PaymentInput) (string, error)
}

// CardConfirmerFunc adapts a function to CardConfirmer.
type CardConfirmerFunc func(ctx context.Context, clientSecret string, input PaymentInput) (string, error)

func (f CardConfirmerFunc) ConfirmCardPayment(ctx context.Context, clientSecret string, input PaymentInput) (string, error) {
	return f(ctx, clientSecret, input)
}

// PaymentAdapter is one payment provider integration on the checkout page.
type PaymentAdapter interface {
	Kind() domain.PaymentMethod
	Render(ctx context.Context, pending PendingCheckout) (View, error)
	Submit(ctx context.Context, pending PendingCheckout, input PaymentInput) Result
	// OnRedirectReturn extracts the outcome carried by a provider redirect. ok is false when the
	// query holds nothing for this adapter.
	OnRedirectReturn(query url.Values) (Result, bool)
}

// CardGateway collects card payments without leaving the page.
type CardGateway struct {
	api       PaymentAPI
	confirmer CardConfirmer
	minimum   domain.Money
	currency  string
}

// NewCardGateway builds the card adapter. A zero minimum uses payments.DefaultCardMinimum.
func NewCardGateway(api PaymentAPI, confirmer CardConfirmer, minimum domain.Money, currency string) *CardGateway {
	if minimum <= 0 {
		minimum = payments.DefaultCardMinimum
	}
	return &CardGateway{api: api, confirmer: confirmer, minimum: minimum, currency: currency}
}

func (g *CardGateway) Kind() domain.PaymentMethod { return domain.PaymentCardGateway }

func (g *CardGateway) Render(_ context.Context, pending PendingCheckout) (View, error) {
	if err := g.checkMinimum(pending); err != nil {
		return View{}, err
	}
	return View{
		Method:        domain.PaymentCardGateway,
		Provider:      payments.ProviderStripe,
		Amount:        pending.OrderData.Total,
		Currency:      g.currency,
		MinimumAmount: g.minimum,
	}, nil
}

func (g *CardGateway) Submit(ctx context.Context, pending PendingCheckout, input PaymentInput) Result {
	if err := g.checkMinimum(pending); err != nil {
		return Failure(err)
	}
	if g.confirmer == nil {
		return Failure(fmt.Errorf("%w: card form unavailable", services.ErrProviderError))
	}
	if strings.TrimSpace(input.PaymentMethodID) == "" {
		return Failure(newValidationError("card details are required", "paymentMethodId"))
	}
	initiation, err := g.api.InitiatePayment(ctx, pending.TempOrderNumber, domain.PaymentCardGateway)
	if err != nil {
		return Failure(err)
	}
	if initiation.ClientSecret == "" {
		return Failure(fmt.Errorf("%w: card gateway returned no client secret", services.ErrProviderError))
	}
	intentID, err := g.confirmer.ConfirmCardPayment(ctx, initiation.ClientSecret, input)
	if err != nil {
		return Failure(asProviderError(err))
	}
	if intentID == "" {
		intentID = initiation.Reference
	}
	return Success(providerOr(initiation.Provider, payments.ProviderStripe), intentID)
}

// OnRedirectReturn handles the return leg of a card authentication challenge.
func (g *CardGateway) OnRedirectReturn(query url.Values) (Result, bool) {
	intentID := strings.TrimSpace(query.Get("payment_intent"))
	if intentID == "" {
		return Result{}, false
	}
	switch query.Get("redirect_status") {
	case "", "succeeded", "processing":
		return Success(payments.ProviderStripe, intentID), true
	default:
		return Result{
			Kind:      ResultFailure,
			Provider:  payments.ProviderStripe,
			Reference: intentID,
			Err:       fmt.Errorf("%w: card authentication %s", services.ErrProviderError, query.Get("redirect_status")),
		}, true
	}
}

func (g *CardGateway) checkMinimum(pending PendingCheckout) error {
	policy := payments.Policy{Minimum: g.minimum}
	if !policy.Eligible(domain.PaymentCardGateway, pending.OrderData.Total) {
		return providerRejected(
			fmt.Sprintf("card payments require a total of at least %s", g.minimum.Format(g.currency)),
			domain.PaymentAggregator,
		)
	}
	return nil
}

// Aggregator hands the customer to a hosted payment page and picks the reference up on return.
type Aggregator struct {
	api      PaymentAPI
	currency string
}

// NewAggregator builds the hosted-page adapter.
func NewAggregator(api PaymentAPI, currency string) *Aggregator {
	return &Aggregator{api: api, currency: currency}
}

func (a *Aggregator) Kind() domain.PaymentMethod { return domain.PaymentAggregator }

func (a *Aggregator) Render(_ context.Context, pending PendingCheckout) (View, error) {
	return View{
		Method:   domain.PaymentAggregator,
		Provider: payments.ProviderPaystack,
		Amount:   pending.OrderData.Total,
		Currency: a.currency,
	}, nil
}

func (a *Aggregator) Submit(ctx context.Context, pending PendingCheckout, _ PaymentInput) Result {
	initiation, err := a.api.InitiatePayment(ctx, pending.TempOrderNumber, domain.PaymentAggregator)
	if err != nil {
		return Failure(err)
	}
	if initiation.AuthorizationURL == "" {
		return Failure(fmt.Errorf("%w: aggregator returned no authorization url", services.ErrProviderError))
	}
	return Redirect(providerOr(initiation.Provider, payments.ProviderPaystack), initiation.Reference, initiation.AuthorizationURL)
}

// OnRedirectReturn reads the reference from "reference", falling back to "trxref".
func (a *Aggregator) OnRedirectReturn(query url.Values) (Result, bool) {
	ref := AggregatorReference(query)
	if ref == "" {
		return Result{}, false
	}
	return Success(payments.ProviderPaystack, ref), true
}

// AggregatorReference returns the payment reference carried by a hosted-page redirect.
func AggregatorReference(query url.Values) string {
	for _, key := range []string{"reference", "trxref"} {
		if v := strings.TrimSpace(query.Get(key)); v != "" {
			return v
		}
	}
	return ""
}

func providerOr(provider, fallback string) string {
	if p := strings.TrimSpace(provider); p != "" {
		return strings.ToLower(p)
	}
	return fallback
}

func asProviderError(err error) error {
	for _, known := range []error{
		services.ErrValidationFailed,
		services.ErrProviderRejected,
		services.ErrProviderError,
		services.ErrUnavailable,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", services.ErrProviderError, err)
}
