package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/httpx"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/requestctx"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

const defaultMaxBody = 64 * 1024

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultMaxBody
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeJSONBody reads and decodes the body, writing the error response itself on failure.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeInvalidRequest, err.Error(), status))
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeInvalidRequest, "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

func serviceUnavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeUnavailable, name+" unavailable", http.StatusServiceUnavailable))
}

// writeServiceError maps the checkout error taxonomy onto the JSON error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var (
		confirmErr *services.ConfirmationError
		rejectErr  *services.RejectionError
	)
	switch {
	case errors.Is(err, services.ErrValidationFailed):
		apiErr := httpx.NewError(httpx.CodeValidationFailed, validationMessage(err), http.StatusBadRequest)
		if fields := services.ValidationFields(err); len(fields) > 0 {
			apiErr = apiErr.WithDetails(map[string]any{"fields": fields})
		}
		httpx.WriteError(ctx, w, apiErr)
	case errors.As(err, &confirmErr):
		requestctx.Logger(ctx).Sugar().Errorw("order confirmation failed after payment",
			"provider", confirmErr.Provider, "reference", confirmErr.Reference, "error", confirmErr.Err)
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeConfirmationFailed,
			"payment received but the order could not be recorded; contact support with your payment reference",
			http.StatusInternalServerError).WithDetails(map[string]any{
			"paymentReference": confirmErr.Reference,
			"provider":         confirmErr.Provider,
		}))
	case errors.As(err, &rejectErr):
		apiErr := httpx.NewError(httpx.CodeProviderRejected, rejectErr.Reason, http.StatusUnprocessableEntity)
		if rejectErr.Fallback != "" {
			apiErr = apiErr.WithDetails(map[string]any{"fallback": rejectErr.Fallback})
		}
		httpx.WriteError(ctx, w, apiErr)
	case errors.Is(err, services.ErrProviderRejected):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeProviderRejected, "payment was not accepted by the provider", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrProviderError):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeProviderError, "payment provider unavailable", http.StatusBadGateway))
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeNotFound, "resource not found", http.StatusNotFound))
	case errors.Is(err, services.ErrInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidState, err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeUnavailable, "service temporarily unavailable", http.StatusServiceUnavailable))
	default:
		requestctx.Logger(ctx).Sugar().Errorw("unhandled service error", "error", err)
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInternal, "internal server error", http.StatusInternalServerError))
	}
}

func validationMessage(err error) string {
	var verr *services.ValidationError
	if errors.As(err, &verr) && verr.Reason != "" {
		return verr.Reason
	}
	return "request validation failed"
}
