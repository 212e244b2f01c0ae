package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/httpx"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/requestctx"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

const maxWebhookBody = 256 * 1024

// WebhookHandlers receive payment provider callbacks.
type WebhookHandlers struct {
	confirmation services.OrderConfirmationService
}

// NewWebhookHandlers constructs webhook handlers.
func NewWebhookHandlers(confirmation services.OrderConfirmationService) *WebhookHandlers {
	return &WebhookHandlers{confirmation: confirmation}
}

// Routes registers webhook endpoints under /webhooks.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/payments/{provider}", h.paymentWebhook)
}

type webhookResponse struct {
	Received    bool   `json:"received"`
	Ignored     bool   `json:"ignored,omitempty"`
	EventID     string `json:"eventId,omitempty"`
	OrderNumber string `json:"orderNumber,omitempty"`
}

func (h *WebhookHandlers) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.confirmation == nil {
		serviceUnavailable(ctx, w, "webhooks")
		return
	}
	body, err := readLimitedBody(r, maxWebhookBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidRequest, err.Error(), status))
		return
	}

	provider := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	outcome, err := h.confirmation.HandleWebhook(ctx, services.PaymentWebhookCommand{
		Provider: provider,
		Payload:  body,
		Header:   r.Header.Clone(),
	})
	if err != nil {
		// Non-2xx triggers provider redelivery.
		writeServiceError(ctx, w, err)
		return
	}

	resp := webhookResponse{Received: true, Ignored: outcome.Ignored, EventID: outcome.EventID}
	if outcome.Confirmation != nil {
		resp.OrderNumber = outcome.Confirmation.OrderNumber
	}
	requestctx.Logger(ctx).Sugar().Infow("payment webhook processed",
		"provider", provider, "event_id", outcome.EventID, "event_type", outcome.EventType, "ignored", outcome.Ignored)
	httpx.WriteJSON(w, http.StatusOK, resp)
}
