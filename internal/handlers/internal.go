package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/httpx"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

// InternalHandlers serve scheduler-triggered maintenance endpoints.
type InternalHandlers struct {
	maintenance services.MaintenanceService
}

// NewInternalHandlers constructs internal handlers.
func NewInternalHandlers(maintenance services.MaintenanceService) *InternalHandlers {
	return &InternalHandlers{maintenance: maintenance}
}

// Routes registers endpoints under /internal.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/maintenance/purge-staged", h.purgeStaged)
}

type purgeStagedRequest struct {
	Limit int `json:"limit"`
}

func (h *InternalHandlers) purgeStaged(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.maintenance == nil {
		serviceUnavailable(ctx, w, "maintenance")
		return
	}

	// Cloud Scheduler may send an empty body.
	var req purgeStagedRequest
	if r.Body != nil {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxSettingsBody))
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidRequest, "unable to read body", http.StatusBadRequest))
			return
		}
		if strings.TrimSpace(string(data)) != "" {
			if err := json.Unmarshal(data, &req); err != nil {
				httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidRequest, "request body must be valid JSON", http.StatusBadRequest))
				return
			}
		}
	}

	result, err := h.maintenance.PurgeStagedOrders(ctx, services.PurgeStagedOrdersCommand{Limit: req.Limit})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, result)
}
