package storefront

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/httpx"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

var (
	// ErrStaleRedirect means a provider redirect arrived with no prepared order to attach it to.
	ErrStaleRedirect = errors.New("storefront: payment redirect has no pending checkout")
	// ErrInvalidStep means the operation does not apply to the current checkout step.
	ErrInvalidStep = errors.New("storefront: operation not allowed in current step")
	// ErrEmptyCart blocks checkout entry.
	ErrEmptyCart = errors.New("storefront: cart is empty")
)

// APIError is a decoded error envelope. It unwraps to the checkout error taxonomy.
type APIError struct {
	Status           int
	Code             string
	Message          string
	Fields           []string
	Fallback         string
	PaymentReference string
	Provider         string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Code)
	}
	return fmt.Sprintf("api error %d: %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case httpx.CodeValidationFailed, httpx.CodeInvalidRequest:
		return services.ErrValidationFailed
	case httpx.CodeProviderRejected:
		return services.ErrProviderRejected
	case httpx.CodeProviderError:
		return services.ErrProviderError
	case httpx.CodeConfirmationFailed:
		return services.ErrConfirmationFailed
	case httpx.CodeNotFound:
		return services.ErrNotFound
	case httpx.CodeInvalidState:
		return services.ErrInvalidState
	case httpx.CodeUnavailable:
		return services.ErrUnavailable
	}
	return nil
}

func newValidationError(reason string, fields ...string) error {
	return &services.ValidationError{Reason: reason, Fields: fields}
}

func providerRejected(reason string, fallback domain.PaymentMethod) error {
	return &services.RejectionError{Reason: reason, Fallback: string(fallback)}
}

// PaymentReferenceOf returns the payment reference a confirmation failure must show the customer.
func PaymentReferenceOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.PaymentReference != "" {
		return apiErr.PaymentReference
	}
	var confirmErr *services.ConfirmationError
	if errors.As(err, &confirmErr) {
		return confirmErr.Reference
	}
	return ""
}

func fieldsOf(details map[string]any) []string {
	raw, ok := details["fields"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
