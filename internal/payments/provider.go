package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
)

// Status enumerates the normalised payment states shared across providers.
type Status string

const (
	// StatusPending indicates the payment is awaiting customer action or PSP confirmation.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the PSP reports the payment as successfully captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the PSP reports a failure and no further action is possible.
	StatusFailed Status = "failed"
	// StatusRefunded indicates the payment has been refunded (partially or fully).
	StatusRefunded Status = "refunded"
)

// Registered provider names.
const (
	ProviderStripe   = "stripe"
	ProviderPaystack = "paystack"
)

// MetadataTempOrderNumber is the metadata key carrying the staged order reference on PSP objects.
const MetadataTempOrderNumber = "temp_order_number"

var (
	// ErrUnsupportedProvider is returned when the manager cannot locate a provider.
	ErrUnsupportedProvider = errors.New("payments: unsupported provider")
	// ErrProviderUnavailable marks transport failures and PSP-side 5xx responses.
	ErrProviderUnavailable = errors.New("payments: provider unavailable")
	// ErrPaymentRejected marks PSP 4xx responses such as unknown references or declined cards.
	ErrPaymentRejected = errors.New("payments: payment rejected")
	// ErrInvalidWebhook is returned when a webhook signature or payload cannot be verified.
	ErrInvalidWebhook = errors.New("payments: invalid webhook")
)

// InitiateRequest captures what a provider needs to start collecting a payment.
type InitiateRequest struct {
	TempOrderNumber string
	Amount          int64
	Currency        string
	Email           string
	CallbackURL     string
	IdempotencyKey  string
	Metadata        map[string]string
}

// Initiation is returned to the storefront so it can hand control to the provider UI.
type Initiation struct {
	Provider         string
	Reference        string
	ClientSecret     string
	AuthorizationURL string
	AccessCode       string
}

// VerifyRequest identifies the payment to verify.
type VerifyRequest struct {
	Reference string
}

// PaymentDetails normalises PSP specific fields for verification and storage.
type PaymentDetails struct {
	Provider  string
	Reference string
	Status    Status
	Amount    int64
	Currency  string
	PaidAt    *time.Time
	Metadata  map[string]string
	Raw       map[string]any
}

// WebhookEvent is a verified provider notification.
type WebhookEvent struct {
	Provider  string
	ID        string
	Type      string
	Reference string
	Status    Status
	Metadata  map[string]string
}

// TempOrderNumber returns the staged order reference carried by the event, if any.
func (e WebhookEvent) TempOrderNumber() string {
	return strings.TrimSpace(e.Metadata[MetadataTempOrderNumber])
}

// Provider defines the contract for PSP adapters to implement.
type Provider interface {
	Name() string
	Initiate(ctx context.Context, req InitiateRequest) (Initiation, error)
	Verify(ctx context.Context, req VerifyRequest) (PaymentDetails, error)
	ParseWebhook(payload []byte, header http.Header) (WebhookEvent, error)
}

// Manager routes calls to providers by name or by payment method.
type Manager struct {
	providers map[string]Provider
	routes    map[domain.PaymentMethod]string
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithMethodRoute maps a payment method onto a registered provider.
func WithMethodRoute(method domain.PaymentMethod, provider string) ManagerOption {
	return func(m *Manager) {
		m.routes[method] = strings.ToLower(strings.TrimSpace(provider))
	}
}

// NewManager constructs a Manager over the supplied providers. By default card payments go to
// stripe and aggregator payments to paystack.
func NewManager(providers []Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	m := &Manager{
		providers: make(map[string]Provider, len(providers)),
		routes: map[domain.PaymentMethod]string{
			domain.PaymentCardGateway: ProviderStripe,
			domain.PaymentAggregator:  ProviderPaystack,
		},
	}
	for _, p := range providers {
		if p == nil {
			return nil, errors.New("payments: nil provider registration")
		}
		key := strings.ToLower(strings.TrimSpace(p.Name()))
		if key == "" {
			return nil, errors.New("payments: provider name is required")
		}
		if _, dup := m.providers[key]; dup {
			return nil, fmt.Errorf("payments: provider %q registered twice", key)
		}
		m.providers[key] = p
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Provider returns the provider registered under name.
func (m *Manager) Provider(name string) (Provider, error) {
	if m == nil {
		return nil, ErrUnsupportedProvider
	}
	p, ok := m.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
	}
	return p, nil
}

// Has reports whether name is registered.
func (m *Manager) Has(name string) bool {
	_, err := m.Provider(name)
	return err == nil
}

// ForMethod resolves the provider serving method.
func (m *Manager) ForMethod(method domain.PaymentMethod) (Provider, error) {
	if m == nil {
		return nil, ErrUnsupportedProvider
	}
	name, ok := m.routes[method]
	if !ok {
		return nil, fmt.Errorf("%w: no route for method %q", ErrUnsupportedProvider, method)
	}
	return m.Provider(name)
}

// Initiate delegates to the provider serving method.
func (m *Manager) Initiate(ctx context.Context, method domain.PaymentMethod, req InitiateRequest) (Initiation, error) {
	provider, err := m.ForMethod(method)
	if err != nil {
		return Initiation{}, err
	}
	initiation, err := provider.Initiate(ctx, req)
	if err != nil {
		return Initiation{}, err
	}
	initiation.Provider = provider.Name()
	return initiation, nil
}

// Verify delegates to the named provider.
func (m *Manager) Verify(ctx context.Context, providerName string, req VerifyRequest) (PaymentDetails, error) {
	provider, err := m.Provider(providerName)
	if err != nil {
		return PaymentDetails{}, err
	}
	return provider.Verify(ctx, req)
}

// ParseWebhook delegates to the named provider.
func (m *Manager) ParseWebhook(providerName string, payload []byte, header http.Header) (WebhookEvent, error) {
	provider, err := m.Provider(providerName)
	if err != nil {
		return WebhookEvent{}, err
	}
	return provider.ParseWebhook(payload, header)
}
