package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/auth"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/httpx"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/storage"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

// InvoiceLinker re-signs stored invoices. *storage.InvoiceStore satisfies it.
type InvoiceLinker interface {
	InvoiceURL(ctx context.Context, orderNumber string, identity *auth.Identity) (storage.SignedURL, error)
}

// AdminOrderHandlers expose fulfilment actions for staff.
type AdminOrderHandlers struct {
	orders   services.OrderService
	invoices InvoiceLinker
	authn    *auth.Authenticator
}

// NewAdminOrderHandlers constructs admin order handlers. invoices may be nil when storage is disabled.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService, invoices InvoiceLinker) *AdminOrderHandlers {
	return &AdminOrderHandlers{orders: orders, invoices: invoices, authn: authn}
}

// Routes registers admin order endpoints under /api.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	staff := r
	if h.authn != nil {
		staff = staff.With(h.authn.RequireFirebaseAuth(auth.RoleStaff, auth.RoleAdmin))
	}
	staff.Patch("/admin/orders/{orderId}/status", h.transitionStatus)
	staff.Get("/admin/orders/{orderId}/invoice", h.invoiceLink)
}

type transitionStatusRequest struct {
	Status         string `json:"status"`
	ExpectedStatus string `json:"expectedStatus"`
}

func (h *AdminOrderHandlers) transitionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "orders")
		return
	}
	var req transitionStatusRequest
	if !decodeJSONBody(w, r, maxSettingsBody, &req) {
		return
	}
	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		OrderID:        strings.TrimSpace(chi.URLParam(r, "orderId")),
		TargetStatus:   req.Status,
		ExpectedStatus: req.ExpectedStatus,
		ActorID:        actorID(r),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, order)
}

func (h *AdminOrderHandlers) invoiceLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil || h.invoices == nil {
		serviceUnavailable(ctx, w, "invoices")
		return
	}
	order, err := h.orders.GetOrder(ctx, strings.TrimSpace(chi.URLParam(r, "orderId")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	identity, _ := auth.IdentityFromContext(ctx)
	signed, err := h.invoices.InvoiceURL(ctx, order.OrderNumber, identity)
	if err != nil {
		if errors.Is(err, storage.ErrPermissionDenied) {
			httpx.WriteError(ctx, w, httpx.NewError("insufficient_role", "identity may not read invoices", http.StatusForbidden))
			return
		}
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, signed)
}
