package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultPaystackBaseURL  = "https://api.paystack.co"
	paystackSignatureHeader = "X-Paystack-Signature"
	maxPaystackResponse     = 1 << 20
)

// PaystackProviderConfig configures the PaystackProvider.
type PaystackProviderConfig struct {
	SecretKey   string
	BaseURL     string
	CallbackURL string
	HTTPClient  *http.Client
	Logger      ProviderLogger
	Clock       func() time.Time
}

// PaystackProvider is the aggregator. Customers are redirected to the hosted payment page and
// return to the callback URL with the transaction reference.
type PaystackProvider struct {
	secretKey   string
	baseURL     string
	callbackURL string
	client      *http.Client
	clock       func() time.Time
	logger      ProviderLogger
}

var _ Provider = (*PaystackProvider)(nil)

// NewPaystackProvider constructs the aggregator provider.
func NewPaystackProvider(cfg PaystackProviderConfig) (*PaystackProvider, error) {
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return nil, errors.New("paystack: secret key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultPaystackBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &PaystackProvider{
		secretKey:   secret,
		baseURL:     baseURL,
		callbackURL: strings.TrimSpace(cfg.CallbackURL),
		client:      httpClient,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Name implements Provider.
func (p *PaystackProvider) Name() string { return ProviderPaystack }

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackTransaction struct {
	ID        int64           `json:"id"`
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	PaidAt    string          `json:"paid_at"`
	Metadata  json.RawMessage `json:"metadata"`
}

// Initiate calls /transaction/initialize and returns the hosted page URL. The reference is the
// temp order number suffixed with an attempt stamp so retries never collide.
func (p *PaystackProvider) Initiate(ctx context.Context, req InitiateRequest) (Initiation, error) {
	if p == nil {
		return Initiation{}, errors.New("paystack: provider is nil")
	}
	if req.Amount <= 0 {
		return Initiation{}, fmt.Errorf("%w: amount must be positive", ErrPaymentRejected)
	}
	if strings.TrimSpace(req.Email) == "" {
		return Initiation{}, fmt.Errorf("%w: customer email is required", ErrPaymentRejected)
	}

	reference := req.TempOrderNumber + "-" + strconv.FormatInt(p.clock().UnixMilli(), 10)
	metadata := map[string]string{MetadataTempOrderNumber: req.TempOrderNumber}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	callback := strings.TrimSpace(req.CallbackURL)
	if callback == "" {
		callback = p.callbackURL
	}

	body := map[string]any{
		"email":     strings.TrimSpace(req.Email),
		"amount":    req.Amount,
		"currency":  strings.ToUpper(req.Currency),
		"reference": reference,
		"metadata":  metadata,
	}
	if callback != "" {
		body["callback_url"] = callback
	}

	var data paystackInitializeData
	if err := p.do(ctx, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return Initiation{}, fmt.Errorf("paystack: initialize transaction: %w", err)
	}
	if data.Reference != "" {
		reference = data.Reference
	}

	p.logger(ctx, "payments.paystack.transaction.initialized", map[string]any{
		"reference":       reference,
		"tempOrderNumber": req.TempOrderNumber,
		"amount":          req.Amount,
	})

	return Initiation{
		Provider:         ProviderPaystack,
		Reference:        reference,
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
	}, nil
}

// Verify calls /transaction/verify/{reference}.
func (p *PaystackProvider) Verify(ctx context.Context, req VerifyRequest) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("paystack: provider is nil")
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return PaymentDetails{}, fmt.Errorf("%w: reference is required", ErrPaymentRejected)
	}
	var tx paystackTransaction
	if err := p.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &tx); err != nil {
		return PaymentDetails{}, fmt.Errorf("paystack: verify transaction: %w", err)
	}
	return paystackPaymentDetails(tx), nil
}

type paystackWebhook struct {
	Event string              `json:"event"`
	Data  paystackTransaction `json:"data"`
}

// ParseWebhook checks the HMAC-SHA512 signature over the raw body.
func (p *PaystackProvider) ParseWebhook(payload []byte, header http.Header) (WebhookEvent, error) {
	if p == nil {
		return WebhookEvent{}, fmt.Errorf("%w: paystack provider not configured", ErrInvalidWebhook)
	}
	if !p.validSignature(payload, header.Get(paystackSignatureHeader)) {
		return WebhookEvent{}, fmt.Errorf("%w: signature mismatch", ErrInvalidWebhook)
	}
	var hook paystackWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: decode payload: %v", ErrInvalidWebhook, err)
	}
	details := paystackPaymentDetails(hook.Data)
	return WebhookEvent{
		Provider:  ProviderPaystack,
		ID:        strconv.FormatInt(hook.Data.ID, 10),
		Type:      hook.Event,
		Reference: details.Reference,
		Status:    details.Status,
		Metadata:  details.Metadata,
	}, nil
}

func (p *PaystackProvider) validSignature(payload []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(p.secretKey))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}

func (p *PaystackProvider) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPaystackResponse))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrProviderUnavailable, err)
	}

	var envelope paystackEnvelope
	decodeErr := json.Unmarshal(raw, &envelope)

	switch {
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: status %d: %s", ErrPaymentRejected, resp.StatusCode, envelope.Message)
	case decodeErr != nil:
		return fmt.Errorf("%w: decode response: %v", ErrProviderUnavailable, decodeErr)
	case !envelope.Status:
		return fmt.Errorf("%w: %s", ErrPaymentRejected, envelope.Message)
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("%w: decode data: %v", ErrProviderUnavailable, err)
	}
	return nil
}

func paystackPaymentDetails(tx paystackTransaction) PaymentDetails {
	status := StatusPending
	switch strings.ToLower(tx.Status) {
	case "success":
		status = StatusSucceeded
	case "failed", "abandoned", "reversed":
		status = StatusFailed
	}
	var paidAt *time.Time
	if tx.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, tx.PaidAt); err == nil {
			t = t.UTC()
			paidAt = &t
		}
	}
	return PaymentDetails{
		Provider:  ProviderPaystack,
		Reference: tx.Reference,
		Status:    status,
		Amount:    tx.Amount,
		Currency:  strings.ToUpper(tx.Currency),
		PaidAt:    paidAt,
		Metadata:  paystackMetadata(tx.Metadata),
		Raw: map[string]any{
			"id":     tx.ID,
			"status": tx.Status,
		},
	}
}

// paystackMetadata flattens metadata, which Paystack returns as an object, a JSON string, or "".
func paystackMetadata(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		if encoded == "" {
			return nil
		}
		raw = json.RawMessage(encoded)
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		switch typed := v.(type) {
		case string:
			out[k] = typed
		case nil:
		default:
			out[k] = fmt.Sprint(typed)
		}
	}
	return out
}
