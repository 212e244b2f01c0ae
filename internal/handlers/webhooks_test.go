package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

func newWebhookRouter(svc services.OrderConfirmationService) chi.Router {
	router := chi.NewRouter()
	router.Route("/webhooks", NewWebhookHandlers(svc).Routes)
	return router
}

func TestWebhookHandlersConfirmsOrder(t *testing.T) {
	var captured services.PaymentWebhookCommand
	svc := &stubConfirmationService{webhookFn: func(_ context.Context, cmd services.PaymentWebhookCommand) (services.WebhookOutcome, error) {
		captured = cmd
		return services.WebhookOutcome{
			EventID:      "evt_1",
			EventType:    "charge.success",
			Confirmation: &services.ConfirmationResult{OrderID: "ord-1", OrderNumber: "SP-2025-000003"},
		}, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/Paystack", strings.NewReader(`{"event":"charge.success"}`))
	req.Header.Set("X-Paystack-Signature", "sig")
	rr := httptest.NewRecorder()
	newWebhookRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if captured.Provider != "paystack" || string(captured.Payload) != `{"event":"charge.success"}` {
		t.Fatalf("unexpected command %+v", captured)
	}
	if captured.Header.Get("X-Paystack-Signature") != "sig" {
		t.Fatalf("expected signature header to be forwarded")
	}
	body := decodeEnvelope(t, rr)
	if body["orderNumber"] != "SP-2025-000003" || body["received"] != true {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestWebhookHandlersIgnoredEventsAcknowledge(t *testing.T) {
	svc := &stubConfirmationService{webhookFn: func(context.Context, services.PaymentWebhookCommand) (services.WebhookOutcome, error) {
		return services.WebhookOutcome{EventID: "evt_2", Ignored: true}, nil
	}}
	rr := httptest.NewRecorder()
	newWebhookRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/payments/stripe", strings.NewReader(`{}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if decodeEnvelope(t, rr)["ignored"] != true {
		t.Fatalf("expected ignored flag")
	}
}

func TestWebhookHandlersTransientFailureRequestsRedelivery(t *testing.T) {
	svc := &stubConfirmationService{webhookFn: func(context.Context, services.PaymentWebhookCommand) (services.WebhookOutcome, error) {
		return services.WebhookOutcome{}, errors.Join(services.ErrUnavailable, errors.New("db down"))
	}}
	rr := httptest.NewRecorder()
	newWebhookRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/payments/stripe", strings.NewReader(`{}`)))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestWebhookHandlersBadSignature(t *testing.T) {
	svc := &stubConfirmationService{webhookFn: func(context.Context, services.PaymentWebhookCommand) (services.WebhookOutcome, error) {
		return services.WebhookOutcome{}, &services.ValidationError{Fields: []string{"signature"}, Reason: "invalid webhook signature"}
	}}
	rr := httptest.NewRecorder()
	newWebhookRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/payments/stripe", strings.NewReader(`{}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
