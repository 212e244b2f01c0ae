package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/auth"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/httpx"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

// OrderHandlers exposes the public checkout endpoints and the staff order lookup.
type OrderHandlers struct {
	preparation  services.OrderPreparationService
	payments     services.PaymentInitiationService
	confirmation services.OrderConfirmationService
	orders       services.OrderService
	authn        *auth.Authenticator
	idempotency  func(http.Handler) http.Handler
}

// OrderHandlersDeps groups the services behind the order endpoints.
type OrderHandlersDeps struct {
	Preparation  services.OrderPreparationService
	Payments     services.PaymentInitiationService
	Confirmation services.OrderConfirmationService
	Orders       services.OrderService
	Authn        *auth.Authenticator
	// Idempotency guards POST /orders/confirm. Nil disables replay protection at the HTTP layer.
	Idempotency func(http.Handler) http.Handler
}

// NewOrderHandlers constructs order handlers.
func NewOrderHandlers(deps OrderHandlersDeps) *OrderHandlers {
	return &OrderHandlers{
		preparation:  deps.Preparation,
		payments:     deps.Payments,
		confirmation: deps.Confirmation,
		orders:       deps.Orders,
		authn:        deps.Authn,
		idempotency:  deps.Idempotency,
	}
}

// Routes registers order endpoints under /api.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/orders/prepare", h.prepareOrder)
	r.Post("/orders/{tempOrderNumber}/payment", h.initiatePayment)

	confirm := r
	if h.idempotency != nil {
		confirm = confirm.With(h.idempotency)
	}
	confirm.Post("/orders/confirm", h.confirmOrder)

	staff := r
	if h.authn != nil {
		staff = staff.With(h.authn.RequireFirebaseAuth(auth.RoleStaff, auth.RoleAdmin))
	}
	staff.Get("/orders/{orderId}", h.getOrder)
}

// prepareOrderRequest accepts the flat storefront payload. The nested delivery and pricing
// objects are also accepted and take precedence when present.
type prepareOrderRequest struct {
	CustomerName        string            `json:"customerName"`
	FirstName           string            `json:"firstName"`
	LastName            string            `json:"lastName"`
	CustomerEmail       string            `json:"customerEmail"`
	CustomerPhone       string            `json:"customerPhone"`
	DeliveryAddress     string            `json:"deliveryAddress"`
	DeliveryCity        string            `json:"deliveryCity"`
	SpecialInstructions string            `json:"specialInstructions"`
	DeliveryMethod      string            `json:"deliveryMethod"`
	PaymentMethod       string            `json:"paymentMethod"`
	Items               []domain.CartLine `json:"items"`
	Subtotal            *domain.Money     `json:"subtotal"`
	DeliveryFee         *domain.Money     `json:"deliveryFee"`
	VATRate             *domain.Rate      `json:"vatRate"`
	VATAmount           *domain.Money     `json:"vatAmount"`
	Total               *domain.Money     `json:"total"`

	Delivery *domain.DeliveryInfo    `json:"delivery"`
	Pricing  *domain.PricingSnapshot `json:"pricing"`
}

func (req prepareOrderRequest) command() services.PrepareOrderCommand {
	cmd := services.PrepareOrderCommand{
		CustomerName:  req.CustomerName,
		Items:         req.Items,
		PaymentMethod: req.PaymentMethod,
		Pricing:       req.Pricing,
	}
	if req.Delivery != nil {
		cmd.Delivery = *req.Delivery
	} else {
		first, last := strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)
		if first == "" && last == "" {
			first, last, _ = strings.Cut(strings.TrimSpace(req.CustomerName), " ")
		}
		cmd.Delivery = domain.DeliveryInfo{
			FirstName:           first,
			LastName:            strings.TrimSpace(last),
			Email:               req.CustomerEmail,
			Phone:               req.CustomerPhone,
			Address:             req.DeliveryAddress,
			City:                req.DeliveryCity,
			SpecialInstructions: req.SpecialInstructions,
			DeliveryMethod:      domain.DeliveryMethod(strings.ToLower(strings.TrimSpace(req.DeliveryMethod))),
		}
	}
	if cmd.Pricing == nil && req.Subtotal != nil && req.DeliveryFee != nil && req.VATAmount != nil && req.Total != nil {
		snapshot := domain.PricingSnapshot{
			Subtotal:    *req.Subtotal,
			DeliveryFee: *req.DeliveryFee,
			VATAmount:   *req.VATAmount,
			Total:       *req.Total,
		}
		if req.VATRate != nil {
			snapshot.VATRate = *req.VATRate
		}
		cmd.Pricing = &snapshot
	}
	return cmd
}

type prepareOrderResponse struct {
	TempOrderNumber string                 `json:"tempOrderNumber"`
	ExpiresAt       string                 `json:"expiresAt"`
	PaymentMethod   domain.PaymentMethod   `json:"paymentMethod"`
	Currency        string                 `json:"currency"`
	Pricing         domain.PricingSnapshot `json:"pricing"`
}

func (h *OrderHandlers) prepareOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.preparation == nil {
		serviceUnavailable(ctx, w, "order preparation")
		return
	}
	var req prepareOrderRequest
	if !decodeJSONBody(w, r, checkoutBodyLimit, &req) {
		return
	}

	prepared, err := h.preparation.Prepare(ctx, req.command())
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteData(w, http.StatusCreated, prepareOrderResponse{
		TempOrderNumber: prepared.TempOrderNumber,
		ExpiresAt:       prepared.ExpiresAt.UTC().Format(time.RFC3339),
		PaymentMethod:   prepared.PaymentMethod,
		Currency:        prepared.Currency,
		Pricing:         prepared.Pricing,
	})
}

type initiatePaymentRequest struct {
	PaymentMethod string `json:"paymentMethod"`
}

func (h *OrderHandlers) initiatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		serviceUnavailable(ctx, w, "payment initiation")
		return
	}
	var req initiatePaymentRequest
	if !decodeJSONBody(w, r, checkoutBodyLimit, &req) {
		return
	}

	initiation, err := h.payments.Initiate(ctx, services.InitiatePaymentCommand{
		TempOrderNumber: strings.TrimSpace(chi.URLParam(r, "tempOrderNumber")),
		PaymentMethod:   req.PaymentMethod,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, initiation)
}

// confirmOrderRequest also accepts provider/reference as short aliases.
type confirmOrderRequest struct {
	PaymentProvider  string `json:"paymentProvider"`
	PaymentReference string `json:"paymentReference"`
	Provider         string `json:"provider"`
	Reference        string `json:"reference"`
	OrderData        struct {
		TempOrderNumber string        `json:"tempOrderNumber"`
		Total           *domain.Money `json:"total"`
	} `json:"orderData"`
}

type confirmOrderResponse struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
}

func (h *OrderHandlers) confirmOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.confirmation == nil {
		serviceUnavailable(ctx, w, "order confirmation")
		return
	}
	var req confirmOrderRequest
	if !decodeJSONBody(w, r, checkoutBodyLimit, &req) {
		return
	}

	result, err := h.confirmation.Confirm(ctx, services.ConfirmOrderCommand{
		Provider:  firstNonBlank(req.PaymentProvider, req.Provider),
		Reference: firstNonBlank(req.PaymentReference, req.Reference),
		OrderData: services.ConfirmOrderData{
			TempOrderNumber: req.OrderData.TempOrderNumber,
			Total:           req.OrderData.Total,
		},
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, confirmOrderResponse{OrderID: result.OrderID, OrderNumber: result.OrderNumber})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "orders")
		return
	}
	order, err := h.orders.GetOrder(ctx, strings.TrimSpace(chi.URLParam(r, "orderId")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, order)
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
