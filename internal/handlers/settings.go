package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/auth"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/httpx"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

const maxSettingsBody = 4 * 1024

// SettingsHandlers serve the delivery-fee and VAT settings. Reads are public; writes need admin.
type SettingsHandlers struct {
	settings services.SettingsService
	authn    *auth.Authenticator
}

// NewSettingsHandlers constructs settings handlers.
func NewSettingsHandlers(authn *auth.Authenticator, settings services.SettingsService) *SettingsHandlers {
	return &SettingsHandlers{settings: settings, authn: authn}
}

// Routes registers settings endpoints under /api.
func (h *SettingsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/admin/settings/delivery-fee", h.getDeliveryFees)
	r.Get("/settings/vat", h.getVAT)

	admin := r
	if h.authn != nil {
		admin = admin.With(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	admin.Put("/admin/settings/delivery-fee", h.putDeliveryFees)
	admin.Put("/admin/settings/vat", h.putVAT)
}

func (h *SettingsHandlers) getDeliveryFees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		serviceUnavailable(ctx, w, "settings")
		return
	}
	fees, err := h.settings.DeliveryFees(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, fees)
}

func (h *SettingsHandlers) getVAT(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		serviceUnavailable(ctx, w, "settings")
		return
	}
	vat, err := h.settings.VAT(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, vat)
}

func (h *SettingsHandlers) putDeliveryFees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		serviceUnavailable(ctx, w, "settings")
		return
	}
	var req domain.DeliveryFeeTable
	if !decodeJSONBody(w, r, maxSettingsBody, &req) {
		return
	}
	fees, err := h.settings.UpdateDeliveryFees(ctx, services.UpdateDeliveryFeesCommand{Fees: req, ActorID: actorID(r)})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, fees)
}

func (h *SettingsHandlers) putVAT(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		serviceUnavailable(ctx, w, "settings")
		return
	}
	var req domain.VATConfig
	if !decodeJSONBody(w, r, maxSettingsBody, &req) {
		return
	}
	vat, err := h.settings.UpdateVAT(ctx, services.UpdateVATCommand{VAT: req, ActorID: actorID(r)})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, vat)
}

func actorID(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity != nil {
		return identity.UID
	}
	return ""
}
