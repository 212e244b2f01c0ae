package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

const (
	defaultClientTimeout = 30 * time.Second
	maxResponseBody      = 1 << 20
)

// ClientConfig configures the checkout API client.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client calls the checkout API.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient builds a client with an otelhttp transport unless HTTPClient is supplied.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("storefront: invalid api base url %q", cfg.BaseURL)
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultClientTimeout
		}
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{base: base, http: client}, nil
}

// PrepareResult is the server's answer to a prepare call.
type PrepareResult struct {
	TempOrderNumber string                 `json:"tempOrderNumber"`
	ExpiresAt       time.Time              `json:"expiresAt"`
	PaymentMethod   domain.PaymentMethod   `json:"paymentMethod"`
	Currency        string                 `json:"currency"`
	Pricing         domain.PricingSnapshot `json:"pricing"`
}

// ConfirmRequest is the body of a confirm call.
type ConfirmRequest struct {
	Provider        string
	Reference       string
	TempOrderNumber string
	Total           *domain.Money
}

// DeliveryFees fetches the delivery fee table.
func (c *Client) DeliveryFees(ctx context.Context) (domain.DeliveryFeeTable, error) {
	var out domain.DeliveryFeeTable
	err := c.do(ctx, http.MethodGet, "/api/admin/settings/delivery-fee", nil, nil, &out, false)
	return out, err
}

// VAT fetches the VAT configuration.
func (c *Client) VAT(ctx context.Context) (domain.VATConfig, error) {
	var out domain.VATConfig
	err := c.do(ctx, http.MethodGet, "/api/settings/vat", nil, nil, &out, false)
	return out, err
}

// Prepare stages the order.
func (c *Client) Prepare(ctx context.Context, data OrderData) (PrepareResult, error) {
	var out PrepareResult
	if err := c.do(ctx, http.MethodPost, "/api/orders/prepare", data, nil, &out, true); err != nil {
		return PrepareResult{}, err
	}
	if out.TempOrderNumber == "" {
		return PrepareResult{}, errors.New("storefront: prepare response missing tempOrderNumber")
	}
	return out, nil
}

// InitiatePayment starts a provider payment for the staged order.
func (c *Client) InitiatePayment(ctx context.Context, tempOrderNumber string, method domain.PaymentMethod) (services.PaymentInitiation, error) {
	var out services.PaymentInitiation
	path := "/api/orders/" + url.PathEscape(tempOrderNumber) + "/payment"
	headers := map[string]string{"Idempotency-Key": uuid.NewString()}
	err := c.do(ctx, http.MethodPost, path, map[string]string{"paymentMethod": string(method)}, headers, &out, true)
	return out, err
}

// Confirm records the order. The idempotency key is derived from the payment so a retried call
// replays the first answer.
func (c *Client) Confirm(ctx context.Context, req ConfirmRequest) (Confirmation, error) {
	body := map[string]any{
		"paymentProvider":  req.Provider,
		"paymentReference": req.Reference,
		"orderData": map[string]any{
			"tempOrderNumber": req.TempOrderNumber,
			"total":           req.Total,
		},
	}
	headers := map[string]string{"Idempotency-Key": ConfirmIdempotencyKey(req.Provider, req.Reference)}
	var out Confirmation
	if err := c.do(ctx, http.MethodPost, "/api/orders/confirm", body, headers, &out, true); err != nil {
		return Confirmation{}, err
	}
	out.Provider = req.Provider
	out.Reference = req.Reference
	return out, nil
}

// ConfirmIdempotencyKey is stable for a (provider, reference) pair.
func ConfirmIdempotencyKey(provider, reference string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("confirm:"+strings.ToLower(provider)+":"+reference)).String()
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string, out any, enveloped bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("storefront: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", services.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", services.ErrUnavailable, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if enveloped {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("storefront: decode response: %w", err)
		}
		raw = env.Data
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("storefront: decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) error {
	var env struct {
		Error   string         `json:"error"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(raw, &env); err == nil {
		apiErr.Code = env.Error
		apiErr.Message = env.Message
		apiErr.Fields = fieldsOf(env.Details)
		apiErr.Fallback, _ = env.Details["fallback"].(string)
		apiErr.PaymentReference, _ = env.Details["paymentReference"].(string)
		apiErr.Provider, _ = env.Details["provider"].(string)
	}
	if apiErr.Code == "" {
		switch {
		case status >= http.StatusInternalServerError:
			apiErr.Code = "service_unavailable"
		default:
			apiErr.Code = "invalid_request"
		}
	}
	return apiErr
}
