package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/idempotency"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

const preparePayload = `{
	"customerName": "",
	"delivery": {
		"firstName": "Ada", "lastName": "Obi", "email": "ada@example.com", "phone": "+2348030000000",
		"address": "1 Marina", "city": "Lagos", "deliveryMethod": "standard"
	},
	"items": [{"itemId": "jollof", "name": "Jollof Rice", "unitPrice": 15, "quantity": 2}],
	"pricing": {"subtotal": 30, "deliveryFee": 3, "vatRate": 7.5, "vatAmount": 2.25, "total": 35.25},
	"paymentMethod": "cardGateway"
}`

func newOrderRouter(h *OrderHandlers) chi.Router {
	router := chi.NewRouter()
	router.Route("/api", h.Routes)
	return router
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestOrderHandlersPrepareSuccess(t *testing.T) {
	expires := time.Date(2025, 3, 14, 12, 45, 0, 0, time.UTC)
	var captured services.PrepareOrderCommand
	h := NewOrderHandlers(OrderHandlersDeps{Preparation: &stubPreparationService{
		prepareFn: func(_ context.Context, cmd services.PrepareOrderCommand) (services.PreparedOrder, error) {
			captured = cmd
			return services.PreparedOrder{
				TempOrderNumber: "TMP-ABC",
				PaymentMethod:   domain.PaymentCardGateway,
				Currency:        "NGN",
				Pricing:         *cmd.Pricing,
				ExpiresAt:       expires,
			}, nil
		},
	}})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/prepare", strings.NewReader(preparePayload))
	rr := httptest.NewRecorder()
	newOrderRouter(h).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Delivery.City != "Lagos" || len(captured.Items) != 1 || captured.Items[0].Quantity != 2 {
		t.Fatalf("unexpected command %+v", captured)
	}
	if captured.Pricing == nil || captured.Pricing.Total != domain.MustParseMoney("35.25") {
		t.Fatalf("expected pricing to be decoded, got %+v", captured.Pricing)
	}
	data := decodeEnvelope(t, rr)["data"].(map[string]any)
	if data["tempOrderNumber"] != "TMP-ABC" || data["paymentMethod"] != "cardGateway" {
		t.Fatalf("unexpected data %v", data)
	}
	if data["expiresAt"] != "2025-03-14T12:45:00Z" {
		t.Fatalf("unexpected expiry %v", data["expiresAt"])
	}
}

func TestOrderHandlersPrepareAcceptsFlatPayload(t *testing.T) {
	var captured services.PrepareOrderCommand
	h := NewOrderHandlers(OrderHandlersDeps{Preparation: &stubPreparationService{
		prepareFn: func(_ context.Context, cmd services.PrepareOrderCommand) (services.PreparedOrder, error) {
			captured = cmd
			return services.PreparedOrder{TempOrderNumber: "TMP-FLAT", PaymentMethod: domain.PaymentAggregator}, nil
		},
	}})
	payload := `{
		"customerName": "Ada Obi", "customerEmail": "ada@example.com", "customerPhone": "+2348030000000",
		"deliveryAddress": "1 Marina", "deliveryCity": "Lagos", "specialInstructions": "Gate 2",
		"deliveryMethod": "Express", "paymentMethod": "aggregator",
		"items": [{"itemId": "jollof", "name": "Jollof Rice", "unitPrice": 15, "quantity": 2}],
		"subtotal": 30, "deliveryFee": 6, "vatRate": 0, "vatAmount": 0, "total": 36
	}`
	rr := httptest.NewRecorder()
	newOrderRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/orders/prepare", strings.NewReader(payload)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	d := captured.Delivery
	if d.FirstName != "Ada" || d.LastName != "Obi" || d.Address != "1 Marina" || d.DeliveryMethod != domain.DeliveryExpress {
		t.Fatalf("unexpected delivery %+v", d)
	}
	if captured.Pricing == nil || captured.Pricing.Total != domain.MustParseMoney("36.00") {
		t.Fatalf("expected flat pricing to be assembled, got %+v", captured.Pricing)
	}
}

func TestOrderHandlersPrepareBodyCapMatchesCheckoutLimit(t *testing.T) {
	var calls int
	h := NewOrderHandlers(OrderHandlersDeps{Preparation: &stubPreparationService{
		prepareFn: func(context.Context, services.PrepareOrderCommand) (services.PreparedOrder, error) {
			calls++
			return services.PreparedOrder{TempOrderNumber: "TMP-BIG"}, nil
		},
	}})
	payload := func(size int) string {
		return `{"customerName":"Ada Obi","specialInstructions":"` + strings.Repeat("a", size) + `"}`
	}

	rr := httptest.NewRecorder()
	newOrderRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/orders/prepare", strings.NewReader(payload(100<<10))))
	if rr.Code != http.StatusCreated {
		t.Fatalf("a 100 KiB cart must be accepted, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	newOrderRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/orders/prepare", strings.NewReader(payload(checkoutBodyLimit))))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 above the checkout limit, got %d", rr.Code)
	}
	if calls != 1 {
		t.Fatalf("expected only the small payload to reach the service, got %d calls", calls)
	}
}

func TestOrderHandlersPrepareFlatPayloadWithoutTotalsLeavesPricingUnset(t *testing.T) {
	var captured services.PrepareOrderCommand
	h := NewOrderHandlers(OrderHandlersDeps{Preparation: &stubPreparationService{
		prepareFn: func(_ context.Context, cmd services.PrepareOrderCommand) (services.PreparedOrder, error) {
			captured = cmd
			return services.PreparedOrder{}, &services.ValidationError{Fields: []string{"pricing"}}
		},
	}})
	rr := httptest.NewRecorder()
	newOrderRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/orders/prepare", strings.NewReader(`{"customerName":"Ada","subtotal":30}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if captured.Pricing != nil {
		t.Fatalf("expected nil pricing for partial totals")
	}
}

func TestOrderHandlersPrepareValidationFailure(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{Preparation: &stubPreparationService{
		prepareFn: func(context.Context, services.PrepareOrderCommand) (services.PreparedOrder, error) {
			return services.PreparedOrder{}, &services.ValidationError{Reason: "invalid order", Fields: []string{"delivery.city", "items[0].quantity"}}
		},
	}})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/prepare", strings.NewReader(preparePayload))
	rr := httptest.NewRecorder()
	newOrderRouter(h).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	body := decodeEnvelope(t, rr)
	if body["error"] != "validation_failed" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
	fields := body["details"].(map[string]any)["fields"].([]any)
	if len(fields) != 2 || fields[0] != "delivery.city" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestOrderHandlersPrepareRejectsMalformedJSON(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{Preparation: &stubPreparationService{}})
	req := httptest.NewRequest(http.MethodPost, "/api/orders/prepare", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	newOrderRouter(h).ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if decodeEnvelope(t, rr)["error"] != "invalid_request" {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestOrderHandlersInitiatePaymentRejectedWithFallback(t *testing.T) {
	var captured services.InitiatePaymentCommand
	h := NewOrderHandlers(OrderHandlersDeps{Payments: &stubPaymentService{
		initiateFn: func(_ context.Context, cmd services.InitiatePaymentCommand) (services.PaymentInitiation, error) {
			captured = cmd
			return services.PaymentInitiation{}, &services.RejectionError{Reason: "total below card minimum", Fallback: "aggregator"}
		},
	}})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/TMP-1/payment", strings.NewReader(`{"paymentMethod":"cardGateway"}`))
	req.Header.Set("Idempotency-Key", "init-1")
	rr := httptest.NewRecorder()
	newOrderRouter(h).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if captured.TempOrderNumber != "TMP-1" || captured.IdempotencyKey != "init-1" {
		t.Fatalf("unexpected command %+v", captured)
	}
	body := decodeEnvelope(t, rr)
	if body["error"] != "provider_rejected" {
		t.Fatalf("unexpected code %v", body["error"])
	}
	if body["details"].(map[string]any)["fallback"] != "aggregator" {
		t.Fatalf("expected fallback detail, got %v", body["details"])
	}
}

func TestOrderHandlersInitiatePaymentSuccess(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{Payments: &stubPaymentService{
		initiateFn: func(context.Context, services.InitiatePaymentCommand) (services.PaymentInitiation, error) {
			return services.PaymentInitiation{
				Provider:         "paystack",
				PaymentMethod:    domain.PaymentAggregator,
				Reference:        "TMP-1-1",
				AuthorizationURL: "https://checkout.paystack.com/abc",
			}, nil
		},
	}})
	req := httptest.NewRequest(http.MethodPost, "/api/orders/TMP-1/payment", strings.NewReader(`{"paymentMethod":"aggregator"}`))
	rr := httptest.NewRecorder()
	newOrderRouter(h).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	data := decodeEnvelope(t, rr)["data"].(map[string]any)
	if data["authorizationUrl"] != "https://checkout.paystack.com/abc" || data["reference"] != "TMP-1-1" {
		t.Fatalf("unexpected data %v", data)
	}
	if _, ok := data["clientSecret"]; ok {
		t.Fatalf("clientSecret should be omitted for aggregator")
	}
}

func TestOrderHandlersConfirmMapsErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"rejected", services.ErrProviderRejected, http.StatusUnprocessableEntity, "provider_rejected"},
		{"provider error", services.ErrProviderError, http.StatusBadGateway, "provider_error"},
		{"expired", &services.ValidationError{Fields: []string{"tempOrderNumber"}}, http.StatusBadRequest, "validation_failed"},
		{"unavailable", services.ErrUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewOrderHandlers(OrderHandlersDeps{Confirmation: &stubConfirmationService{
				confirmFn: func(context.Context, services.ConfirmOrderCommand) (services.ConfirmationResult, error) {
					return services.ConfirmationResult{}, tc.err
				},
			}})
			req := httptest.NewRequest(http.MethodPost, "/api/orders/confirm", strings.NewReader(`{"provider":"stripe","reference":"pi_1","orderData":{"tempOrderNumber":"TMP-1"}}`))
			rr := httptest.NewRecorder()
			newOrderRouter(h).ServeHTTP(rr, req)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if code := decodeEnvelope(t, rr)["error"]; code != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, code)
			}
		})
	}
}

func TestOrderHandlersConfirmFailureCarriesPaymentReference(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{Confirmation: &stubConfirmationService{
		confirmFn: func(context.Context, services.ConfirmOrderCommand) (services.ConfirmationResult, error) {
			return services.ConfirmationResult{}, &services.ConfirmationError{Provider: "paystack", Reference: "TMP-1-1", Err: errors.New("db down")}
		},
	}})
	req := httptest.NewRequest(http.MethodPost, "/api/orders/confirm", strings.NewReader(`{"provider":"paystack","reference":"TMP-1-1","orderData":{"tempOrderNumber":"TMP-1"}}`))
	rr := httptest.NewRecorder()
	newOrderRouter(h).ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	body := decodeEnvelope(t, rr)
	if body["error"] != "confirmation_failed" {
		t.Fatalf("unexpected code %v", body["error"])
	}
	details := body["details"].(map[string]any)
	if details["paymentReference"] != "TMP-1-1" || details["provider"] != "paystack" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestOrderHandlersConfirmReplaysWithIdempotencyKey(t *testing.T) {
	confirmation := &stubConfirmationService{
		confirmFn: func(_ context.Context, cmd services.ConfirmOrderCommand) (services.ConfirmationResult, error) {
			if cmd.Provider != "stripe" || cmd.Reference != "pi_1" {
				t.Fatalf("unexpected payment identifiers %+v", cmd)
			}
			if cmd.OrderData.Total == nil || *cmd.OrderData.Total != domain.MustParseMoney("35.25") {
				t.Fatalf("expected total to be decoded, got %v", cmd.OrderData.Total)
			}
			return services.ConfirmationResult{OrderID: "ord-1", OrderNumber: "SP-2025-000001"}, nil
		},
	}
	h := NewOrderHandlers(OrderHandlersDeps{
		Confirmation: confirmation,
		Idempotency:  idempotency.Middleware(idempotency.NewMemoryStore()),
	})
	router := newOrderRouter(h)
	body := `{"paymentProvider":"stripe","paymentReference":"pi_1","orderData":{"tempOrderNumber":"TMP-1","total":35.25}}`

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/orders/confirm", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "confirm-TMP-1")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i, rr.Code)
		}
		data := decodeEnvelope(t, rr)["data"].(map[string]any)
		if data["orderNumber"] != "SP-2025-000001" || data["orderId"] != "ord-1" {
			t.Fatalf("attempt %d: unexpected data %v", i, data)
		}
		if i == 1 && rr.Header().Get("X-Idempotent-Replay") != "true" {
			t.Fatalf("expected replay header on second attempt")
		}
	}
	if confirmation.confirms != 1 {
		t.Fatalf("expected one confirmation, got %d", confirmation.confirms)
	}
}

func TestOrderHandlersConfirmRetriesAfterPendingPayment(t *testing.T) {
	confirmation := &stubConfirmationService{}
	confirmation.confirmFn = func(context.Context, services.ConfirmOrderCommand) (services.ConfirmationResult, error) {
		if confirmation.confirms == 1 {
			return services.ConfirmationResult{}, fmt.Errorf("%w: payment status is pending", services.ErrProviderRejected)
		}
		return services.ConfirmationResult{OrderID: "ord-1", OrderNumber: "SP-2025-000001"}, nil
	}
	h := NewOrderHandlers(OrderHandlersDeps{
		Confirmation: confirmation,
		Idempotency:  idempotency.Middleware(idempotency.NewMemoryStore()),
	})
	router := newOrderRouter(h)
	body := `{"provider":"stripe","reference":"pi_pending","orderData":{"tempOrderNumber":"TMP-1"}}`

	want := []int{http.StatusUnprocessableEntity, http.StatusOK}
	for i, status := range want {
		req := httptest.NewRequest(http.MethodPost, "/api/orders/confirm", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "confirm:stripe:pi_pending")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != status {
			t.Fatalf("attempt %d: expected %d, got %d", i, status, rr.Code)
		}
		if rr.Header().Get("X-Idempotent-Replay") != "" {
			t.Fatalf("attempt %d: must reach the service, not a stored response", i)
		}
	}
	if confirmation.confirms != 2 {
		t.Fatalf("expected two confirmation calls, got %d", confirmation.confirms)
	}
}

func TestOrderHandlersGetOrderRequiresStaff(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{
		Authn: newTestAuthenticator(),
		Orders: &stubOrderService{getFn: func(_ context.Context, id string) (services.Order, error) {
			if id != "ord-1" {
				return services.Order{}, services.ErrNotFound
			}
			return sampleOrder(), nil
		}},
	})
	router := newOrderRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/ord-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/orders/ord-1", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/orders/ord-1", nil)
	req.Header.Set("Authorization", "Bearer staff-token")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for staff, got %d", rr.Code)
	}
	data := decodeEnvelope(t, rr)["data"].(map[string]any)
	if data["orderNumber"] != "SP-2025-000001" || data["pricing"].(map[string]any)["total"] != 33.0 {
		t.Fatalf("unexpected order payload %v", data)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/orders/missing", nil)
	req.Header.Set("Authorization", "Bearer staff-token")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestOrderHandlersUnavailableWithoutServices(t *testing.T) {
	router := newOrderRouter(NewOrderHandlers(OrderHandlersDeps{}))
	req := httptest.NewRequest(http.MethodPost, "/api/orders/prepare", strings.NewReader(preparePayload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
